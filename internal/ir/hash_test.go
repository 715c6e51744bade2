package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTopology() Topology {
	return Topology{
		Audios: []AudioSpec{
			{Name: "osc", AudioChannels: 1, OutputPads: 1},
			{Name: "mix", AudioChannels: 1, OutputPads: 1, InputPads: 2},
		},
		Links: []LinkSpec{
			{Input: "mix", InputLine: 1, Output: "osc"},
			{Input: "mix", InputLine: 0, Output: "osc"},
		},
	}
}

func TestTopologyHash_OrderIndependent(t *testing.T) {
	a := sampleTopology()
	b := Topology{
		Audios: []AudioSpec{a.Audios[1], a.Audios[0]},
		Links:  []LinkSpec{a.Links[1], a.Links[0]},
	}

	ha, err := TopologyHash(a)
	require.NoError(t, err)
	hb, err := TopologyHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestTopologyHash_SensitiveToGeometry(t *testing.T) {
	a := sampleTopology()
	b := sampleTopology()
	b.Audios[1].InputPads = 3

	ha, err := TopologyHash(a)
	require.NoError(t, err)
	hb, err := TopologyHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestTopologyValue(t *testing.T) {
	got, err := MarshalCanonical(sampleTopology().Value())
	require.NoError(t, err)
	assert.Equal(t,
		`{"audio":{"mix":{"audio_channels":1,"input_pads":2,"output_pads":1},"osc":{"audio_channels":1,"input_pads":0,"output_pads":1}},`+
			`"link":[{"input":"mix","input_line":0,"output":"osc","output_line":0},{"input":"mix","input_line":1,"output":"osc","output_line":0}]}`,
		string(got))
}

func TestTaskID(t *testing.T) {
	args := Object{"audio": Str("synth"), "pad": Int(1)}

	id1, err := TaskID("note_on", args, 3)
	require.NoError(t, err)
	id2, err := TaskID("note_on", args, 3)
	require.NoError(t, err)
	id3, err := TaskID("note_on", args, 4)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestHashWithDomain_Separates(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, hashWithDomain(DomainTask, data), hashWithDomain(DomainTopology, data))
}
