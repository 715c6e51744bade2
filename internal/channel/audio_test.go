package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
	"github.com/roach88/agsrecall/internal/testutil"
)

func newAudio(t *testing.T, name string, audioChannels, outputPads, inputPads int) *Audio {
	t.Helper()
	a, err := NewAudio(name, audioChannels, outputPads, inputPads)
	require.NoError(t, err)
	return a
}

func chainOf(t *testing.T, a *Audio, o recall.Orientation) string {
	t.Helper()
	first, last := a.Range(o)
	if first == nil {
		return ""
	}
	recs, err := recycling.Collect(first, last)
	require.NoError(t, err)
	return testutil.Join(recs)
}

func TestNewAudio_ChainsLinesInPadOrder(t *testing.T) {
	a := newAudio(t, "synth", 2, 1, 2)

	assert.Equal(t, 1, a.Pads(recall.OrientationOutput))
	assert.Equal(t, 2, a.Pads(recall.OrientationInput))
	assert.Equal(t, "synth.o0 synth.o1", chainOf(t, a, recall.OrientationOutput))
	assert.Equal(t, "synth.i0 synth.i1 synth.i2 synth.i3", chainOf(t, a, recall.OrientationInput))

	line := a.Line(recall.OrientationInput, 3)
	require.NotNil(t, line)
	assert.Equal(t, 1, line.Pad())
	assert.Equal(t, 1, line.AudioChannel())
	assert.Equal(t, "synth.in.3", line.String())
	assert.Same(t, line, line.Recycling().Owner())
}

func TestNewAudio_InvalidGeometry(t *testing.T) {
	_, err := NewAudio("x", 0, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	_, err = NewAudio("", 1, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	_, err = NewAudio("x", 1, -1, 1)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestPadRange(t *testing.T) {
	a := newAudio(t, "drum", 2, 0, 3)

	first, last := a.PadRange(recall.OrientationInput, 1)
	assert.Equal(t, "drum.i2", first.Name())
	assert.Equal(t, "drum.i3", last.Name())

	first, last = a.PadRange(recall.OrientationInput, 3)
	assert.Nil(t, first)
	assert.Nil(t, last)
}

func TestAddPad_NotifiesInsertion(t *testing.T) {
	a := newAudio(t, "synth", 1, 1, 2)
	var changes []Change
	a.Observe(ObserverFunc(func(c Change) { changes = append(changes, c) }))

	added := a.AddPad(recall.OrientationInput)

	require.Len(t, added, 1)
	assert.Equal(t, 2, added[0].Line())
	assert.Equal(t, "synth.i0 synth.i1 synth.i2", chainOf(t, a, recall.OrientationInput))

	require.Len(t, changes, 1)
	c := changes[0]
	assert.Equal(t, Inserted, c.Kind)
	assert.Equal(t, recall.OrientationInput, c.Orientation)
	assert.Nil(t, c.OldFirst)
	assert.Equal(t, "synth.i2", c.NewFirst.Name())
	assert.Same(t, c.NewFirst, c.NewLast)
	assert.Equal(t, "synth.i0", c.ChainFirst.Name())
	assert.Same(t, c.NewLast, c.ChainLast)
}

func TestRemovePad_NotifiesRemoval(t *testing.T) {
	a := newAudio(t, "synth", 2, 1, 2)
	var changes []Change
	a.Observe(ObserverFunc(func(c Change) { changes = append(changes, c) }))

	require.NoError(t, a.RemovePad(recall.OrientationInput))

	assert.Equal(t, "synth.i0 synth.i1", chainOf(t, a, recall.OrientationInput))
	require.Len(t, changes, 1)
	c := changes[0]
	assert.Equal(t, Removed, c.Kind)
	assert.Equal(t, "synth.i2", c.OldFirst.Name())
	assert.Equal(t, "synth.i3", c.OldLast.Name())
	assert.Nil(t, c.OldFirst.Prev())
	assert.Nil(t, c.ChainLast.Next())

	require.NoError(t, a.RemovePad(recall.OrientationInput))
	assert.Nil(t, changes[1].ChainFirst)
	assert.ErrorIs(t, a.RemovePad(recall.OrientationInput), ErrNoPads)
}

func TestLink_SplicesSourcedNode(t *testing.T) {
	osc := newAudio(t, "osc", 1, 1, 0)
	mix := newAudio(t, "mix", 1, 1, 3)
	var changes []Change
	mix.Observe(ObserverFunc(func(c Change) { changes = append(changes, c) }))

	in := mix.Line(recall.OrientationInput, 1)
	out := osc.Line(recall.OrientationOutput, 0)
	old := in.Recycling()

	require.NoError(t, Link(in, out))

	node := in.Recycling()
	assert.NotSame(t, old, node)
	assert.Same(t, out.Recycling(), node.Source())
	assert.Same(t, out, in.Link())
	assert.Equal(t, "mix.i0 mix.i1.2<osc.o0 mix.i2", chainOf(t, mix, recall.OrientationInput))
	assert.Nil(t, old.Next())
	assert.Nil(t, old.Prev())

	require.Len(t, changes, 1)
	assert.Equal(t, Replaced, changes[0].Kind)
	assert.Same(t, old, changes[0].OldFirst)
	assert.Same(t, node, changes[0].NewFirst)
}

func TestLink_Errors(t *testing.T) {
	a := newAudio(t, "a", 1, 1, 1)
	b := newAudio(t, "b", 1, 1, 1)

	assert.ErrorIs(t, Link(a.Line(recall.OrientationOutput, 0), b.Line(recall.OrientationOutput, 0)), ErrWrongDirection)
	assert.ErrorIs(t, Link(a.Line(recall.OrientationInput, 0), a.Line(recall.OrientationOutput, 0)), ErrSameAudio)
	assert.ErrorIs(t, Link(nil, nil), ErrWrongDirection)
	assert.ErrorIs(t, Unlink(a.Line(recall.OrientationInput, 0)), ErrNotLinked)
}

func TestUnlink_RestoresOwnNode(t *testing.T) {
	osc := newAudio(t, "osc", 1, 1, 0)
	mix := newAudio(t, "mix", 1, 1, 1)
	in := mix.Line(recall.OrientationInput, 0)
	require.NoError(t, Link(in, osc.Line(recall.OrientationOutput, 0)))

	require.NoError(t, Unlink(in))

	assert.Nil(t, in.Link())
	assert.Nil(t, in.Recycling().Source())
	assert.Equal(t, "mix.i0.3", chainOf(t, mix, recall.OrientationInput))
}

func TestGraph(t *testing.T) {
	g := NewGraph()
	var seen []string
	g.Observe(ObserverFunc(func(c Change) { seen = append(seen, c.Audio.Name()) }))

	a := newAudio(t, "b-audio", 1, 1, 1)
	b := newAudio(t, "a-audio", 1, 1, 1)
	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(b))
	assert.Error(t, g.Add(newAudio(t, "a-audio", 1, 1, 1)))

	assert.Same(t, a, g.Audio("b-audio"))
	assert.Nil(t, g.Audio("missing"))
	assert.Equal(t, []string{"a-audio", "b-audio"}, g.Names())
	assert.Equal(t, []*Audio{a, b}, g.Audios())

	b.AddPad(recall.OrientationInput)
	assert.Equal(t, []string{"a-audio"}, seen)
}

func TestGraphRemovePad_UnlinksFedInputs(t *testing.T) {
	g := NewGraph()
	osc := newAudio(t, "osc", 1, 1, 0)
	synth := newAudio(t, "synth", 1, 1, 2)
	require.NoError(t, g.Add(osc))
	require.NoError(t, g.Add(synth))

	in := synth.Line(recall.OrientationInput, 0)
	removedOut := osc.Line(recall.OrientationOutput, 0)
	require.NoError(t, Link(in, removedOut))

	var changes []Change
	synth.Observe(ObserverFunc(func(c Change) { changes = append(changes, c) }))

	require.NoError(t, g.RemovePad(osc, recall.OrientationOutput))

	assert.Equal(t, 0, osc.Pads(recall.OrientationOutput))
	assert.Nil(t, in.Link())
	assert.Nil(t, in.Recycling().Source())
	assert.Equal(t, "synth.i0.3 synth.i1", chainOf(t, synth, recall.OrientationInput))
	require.Len(t, changes, 1)
	assert.Equal(t, Replaced, changes[0].Kind)
}

func TestGraphRemovePad_InputLeavesOtherLinks(t *testing.T) {
	g := NewGraph()
	osc := newAudio(t, "osc", 1, 1, 0)
	synth := newAudio(t, "synth", 1, 1, 2)
	require.NoError(t, g.Add(osc))
	require.NoError(t, g.Add(synth))
	require.NoError(t, Link(synth.Line(recall.OrientationInput, 0), osc.Line(recall.OrientationOutput, 0)))

	require.NoError(t, g.RemovePad(synth, recall.OrientationInput))

	assert.Equal(t, "synth.i0.2<osc.o0", chainOf(t, synth, recall.OrientationInput))
	assert.ErrorIs(t, g.RemovePad(osc, recall.OrientationInput), ErrNoPads)
}
