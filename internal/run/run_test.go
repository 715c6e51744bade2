package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
)

// fill gives every input line of a one signal holding frame value line+1.
func fill(t *testing.T, a *channel.Audio) {
	t.Helper()
	for _, ch := range a.Lines(recall.OrientationInput) {
		sig := recycling.NewAudioSignal()
		v := float32(ch.Line() + 1)
		sig.Append([]float32{v, v})
		ch.Recycling().AddSignal(sig)
	}
}

func bind(t *testing.T, gen recall.IDGenerator, first, last *recycling.Recycling) *recall.ID {
	t.Helper()
	c, err := recall.FromRange(first, last)
	require.NoError(t, err)
	id := recall.NewID(gen, recall.OrientationInput, recall.ScopePlayback)
	c.SetRecallID(id)
	return id
}

func TestChannelRun_ResolvesThroughContainer(t *testing.T) {
	a, err := channel.NewAudio("synth", 1, 1, 3)
	require.NoError(t, err)
	fill(t, a)
	gen := recall.NewSequenceGenerator("ctx")

	first, last := a.PadRange(recall.OrientationInput, 1)
	id := bind(t, gen, first, last)

	inside := NewChannelRun(id, a.Line(recall.OrientationInput, 1), 1)
	outside := NewChannelRun(id, a.Line(recall.OrientationInput, 2), 1)

	assert.Same(t, first, inside.Resolve())
	assert.Nil(t, outside.Resolve())

	dst := make([]float32, 2)
	assert.True(t, inside.Render(0, dst))
	assert.False(t, outside.Render(0, dst))
	assert.Equal(t, []float32{2, 2}, dst)

	inside.Disconnect()
	assert.False(t, inside.IsConnected())
	assert.False(t, inside.Render(0, dst))
}

func TestChannelRun_DuplicateForAnotherContext(t *testing.T) {
	a, err := channel.NewAudio("synth", 1, 1, 3)
	require.NoError(t, err)
	fill(t, a)
	gen := recall.NewSequenceGenerator("ctx")

	first, last := a.PadRange(recall.OrientationInput, 0)
	narrow := bind(t, gen, first, last)
	first, last = a.Range(recall.OrientationInput)
	wide := bind(t, gen, first, last)

	run := NewChannelRun(narrow, a.Line(recall.OrientationInput, 2), 1)
	run.Disconnect()
	dup := run.Duplicate(wide)

	assert.Same(t, wide, dup.RecallID())
	assert.True(t, dup.IsConnected())
	assert.Nil(t, run.Resolve())
	assert.Same(t, a.Line(recall.OrientationInput, 2).Recycling(), dup.Resolve())
}

func TestAudioRun_LeafMixesAllLines(t *testing.T) {
	a, err := channel.NewAudio("synth", 1, 1, 3)
	require.NoError(t, err)
	fill(t, a)
	first, last := a.Range(recall.OrientationInput)
	id := bind(t, recall.NewSequenceGenerator("ctx"), first, last)

	r := NewAudioRun(id, 1)
	dst := make([]float32, 2)
	r.Render(0, dst)

	assert.Equal(t, []float32{6, 6}, dst)
	channels, children := r.Duplicates()
	assert.Equal(t, 3, channels)
	assert.Equal(t, 0, children)
}

func TestAudioRun_ParentRendersVoicesOnly(t *testing.T) {
	a, err := channel.NewAudio("synth", 1, 1, 3)
	require.NoError(t, err)
	fill(t, a)
	gen := recall.NewSequenceGenerator("ctx")

	first, last := a.Range(recall.OrientationInput)
	parent := bind(t, gen, first, last)
	vf, vl := a.PadRange(recall.OrientationInput, 2)
	voice := bind(t, gen, vf, vl)
	require.NoError(t, recall.AddChild(parent.Container(), voice.Container()))

	r := NewAudioRun(parent, 0.5)
	dst := make([]float32, 2)
	r.Render(0, dst)
	assert.Equal(t, []float32{1.5, 1.5}, dst)

	voice.Release()
	dst = make([]float32, 2)
	r.Render(0, dst)
	assert.Equal(t, []float32{3, 3}, dst, "gain 0.5 over lines 1+2+3")
	_, children := r.Duplicates()
	assert.Equal(t, 0, children)
}

func TestAudioRun_FollowsReset(t *testing.T) {
	a, err := channel.NewAudio("synth", 1, 1, 1)
	require.NoError(t, err)
	fill(t, a)
	first, last := a.Range(recall.OrientationInput)
	id := bind(t, recall.NewSequenceGenerator("ctx"), first, last)
	r := NewAudioRun(id, 1)

	added := a.AddPad(recall.OrientationInput)
	sig := recycling.NewAudioSignal()
	sig.Append([]float32{10, 10})
	added[0].Recycling().AddSignal(sig)

	_, err = recall.ResetRecycling(id.Container(), nil, nil, added[0].Recycling(), added[0].Recycling())
	require.NoError(t, err)

	dst := make([]float32, 2)
	r.Render(0, dst)
	assert.Equal(t, []float32{11, 11}, dst)
}

func TestMix_LinkedSourceAndShortFrames(t *testing.T) {
	up := recycling.New("up")
	upSig := recycling.NewAudioSignal()
	upSig.Append([]float32{4})
	up.AddSignal(upSig)

	node := recycling.New("node")
	node.SetSource(up)
	own := recycling.NewAudioSignal()
	own.Append([]float32{1, 1, 1})
	node.AddSignal(own)

	dst := make([]float32, 2)
	mixRecycling(node, 0, 1, dst, nil)
	assert.Equal(t, []float32{5, 1}, dst)

	mixRecycling(node, 5, 1, dst, nil)
	assert.Equal(t, []float32{5, 1}, dst, "past the end of the stream adds nothing")
}

func TestMix_ScaledFramesReuseScratch(t *testing.T) {
	node := recycling.New("node")
	sig := recycling.NewAudioSignal()
	sig.Append([]float32{2, 4})
	node.AddSignal(sig)

	dst := make([]float32, 2)
	scratch := mixRecycling(node, 0, 0.5, dst, nil)
	require.Len(t, scratch, 2)
	assert.Equal(t, []float32{1, 2}, dst)
	assert.Equal(t, []float32{2, 4}, sig.Frame(0), "source frame is not scaled in place")

	again := mixRecycling(node, 0, 0.5, dst, scratch)
	assert.Same(t, &scratch[0], &again[0])
	assert.Equal(t, []float32{2, 4}, dst)
}
