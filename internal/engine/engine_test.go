package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
	"github.com/roach88/agsrecall/internal/store"
)

// testGraph holds synth (1 audio channel, 1 output pad, 2 input pads) and osc
// (1 output pad, no inputs).
func testGraph(t *testing.T) *channel.Graph {
	t.Helper()
	g := channel.NewGraph()
	for _, a := range []struct {
		name    string
		outputs int
		inputs  int
	}{
		{"synth", 1, 2},
		{"osc", 1, 0},
	} {
		audio, err := channel.NewAudio(a.name, 1, a.outputs, a.inputs)
		require.NoError(t, err)
		require.NoError(t, g.Add(audio))
	}
	return g
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithIDGenerator(recall.NewSequenceGenerator("ctx"))}, opts...)
	return New(testGraph(t), opts...)
}

func apply(t *testing.T, e *Engine, tasks ...Task) {
	t.Helper()
	for _, task := range tasks {
		require.NoError(t, e.Apply(context.Background(), task), "task %s", task.Kind())
	}
}

func contextByID(t *testing.T, e *Engine, id string) ContextInfo {
	t.Helper()
	info, ok := e.Context(id)
	require.True(t, ok, "context %s not live", id)
	return info
}

func TestStartPlayback_CreatesOutputAndInputContexts(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e, StartPlayback{Audio: "synth"})

	infos := e.Contexts()
	require.Len(t, infos, 2)

	out, in := infos[0], infos[1]
	assert.Equal(t, "ctx-1", out.ID)
	assert.Equal(t, RoleOutput, out.Role)
	assert.Equal(t, "output", out.Orientation)
	assert.Equal(t, "playback", out.Scope)
	assert.Empty(t, out.ParentID)
	assert.Equal(t, []string{"synth.o0"}, out.Recycling)

	assert.Equal(t, "ctx-2", in.ID)
	assert.Equal(t, RoleInput, in.Role)
	assert.Equal(t, "ctx-1", in.ParentID)
	assert.Equal(t, []string{"synth.i0", "synth.i1"}, in.Recycling)

	id, ok := e.PlaybackID("synth")
	require.True(t, ok)
	assert.Equal(t, "ctx-1", id)
	assert.Equal(t, []string{"synth"}, e.Playing())
	assert.Equal(t, 2, e.Quota().Live())
	assert.Equal(t, int64(1), e.Clock().Current())
	require.NoError(t, e.CheckTree())
}

func TestStartPlayback_EmptyInputChain(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e, StartPlayback{Audio: "osc"})

	in := contextByID(t, e, "ctx-2")
	assert.Empty(t, in.Recycling)
	require.NoError(t, e.CheckTree())
}

func TestStartPlayback_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Apply(ctx, StartPlayback{Audio: "missing"})
	assert.True(t, HasCode(err, ErrCodeUnknownAudio))

	require.NoError(t, e.Apply(ctx, StartPlayback{Audio: "synth"}))
	err = e.Apply(ctx, StartPlayback{Audio: "synth"})
	assert.True(t, HasCode(err, ErrCodeAlreadyPlaying))
	assert.Len(t, e.Contexts(), 2, "failed start must not leave contexts")
}

func TestNoteOn_NestsVoices(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 1, Velocity: 100},
		NoteOn{Audio: "synth", Pad: 0, Velocity: 100},
	)

	assert.Equal(t, []int{1, 0}, e.Voices("synth"))

	voice := contextByID(t, e, "ctx-3")
	assert.Equal(t, RoleVoice, voice.Role)
	assert.Equal(t, "ctx-2", voice.ParentID)
	assert.Equal(t, "midi", voice.Scope)
	assert.Equal(t, 1, voice.Pad)
	assert.Equal(t, []string{"synth.i1"}, voice.Recycling)
	require.NoError(t, e.CheckTree())
}

func TestNoteOff_StopsOldestVoiceOnPad(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 1},
		NoteOn{Audio: "synth", Pad: 0},
		NoteOn{Audio: "synth", Pad: 1},
		NoteOff{Audio: "synth", Pad: 1},
	)

	assert.Equal(t, []int{0, 1}, e.Voices("synth"))
	_, ok := e.Context("ctx-3")
	assert.False(t, ok, "oldest voice on the pad stops first")
	_, ok = e.Context("ctx-5")
	assert.True(t, ok)

	// A note off without a sounding voice is ignored.
	apply(t, e, NoteOff{Audio: "synth", Pad: 1}, NoteOff{Audio: "synth", Pad: 1})
	assert.Equal(t, []int{0}, e.Voices("synth"))
	assert.Equal(t, 3, e.Quota().Live())
	require.NoError(t, e.CheckTree())
}

func TestNoteOn_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Apply(ctx, NoteOn{Audio: "synth", Pad: 0})
	assert.True(t, IsNotPlaying(err))

	require.NoError(t, e.Apply(ctx, StartPlayback{Audio: "synth"}))
	err = e.Apply(ctx, NoteOn{Audio: "synth", Pad: 2})
	assert.True(t, HasCode(err, ErrCodeInvalidTask))
	assert.Empty(t, e.Voices("synth"))

	err = e.Apply(ctx, NoteOff{Audio: "osc", Pad: 0})
	assert.True(t, IsNotPlaying(err))
}

func TestQuota_BoundsLiveContexts(t *testing.T) {
	e := newTestEngine(t, WithMaxContexts(3))
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, StartPlayback{Audio: "synth"}))
	require.NoError(t, e.Apply(ctx, NoteOn{Audio: "synth", Pad: 0}))

	err := e.Apply(ctx, NoteOn{Audio: "synth", Pad: 1})
	assert.True(t, IsQuotaError(err))
	assert.Equal(t, []int{0}, e.Voices("synth"))

	err = e.Apply(ctx, StartPlayback{Audio: "osc"})
	assert.True(t, IsQuotaError(err), "playback needs two contexts")

	require.NoError(t, e.Apply(ctx, NoteOff{Audio: "synth", Pad: 0}))
	require.NoError(t, e.Apply(ctx, NoteOn{Audio: "synth", Pad: 1}))
	assert.Equal(t, 3, e.Quota().Live())
}

func TestStopPlayback_StopsWholeTree(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 0},
		NoteOn{Audio: "synth", Pad: 1},
	)
	id, _ := e.PlaybackID("synth")
	voice := e.contexts[2]
	container := voice.id.Container()

	apply(t, e, StopPlayback{Audio: "synth"})

	assert.Empty(t, e.Contexts())
	assert.Empty(t, e.Playing())
	assert.Equal(t, 0, e.Quota().Live())
	assert.True(t, voice.id.Released())
	assert.Nil(t, container.Parent(), "released voice is detached from the tree")

	_, err := e.Render(id, 0)
	assert.True(t, IsNotPlaying(err))

	err = e.Apply(context.Background(), StopPlayback{Audio: "synth"})
	assert.True(t, IsNotPlaying(err))

	// The audio can play again.
	apply(t, e, StartPlayback{Audio: "synth"})
	require.NoError(t, e.CheckTree())
}

func TestLink_ResetsContextsInPlace(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 1},
	)
	input := e.contexts[1]
	before := input.id.Container()

	apply(t, e, Link{Input: "synth", InputLine: 1, Output: "osc", OutputLine: 0})

	in := contextByID(t, e, "ctx-2")
	assert.Equal(t, []string{"synth.i0", "synth.i1.2<osc.o0"}, in.Recycling)
	voice := contextByID(t, e, "ctx-3")
	assert.Equal(t, []string{"synth.i1.2<osc.o0"}, voice.Recycling)

	assert.NotSame(t, before, input.id.Container(), "reset binds a new container")
	assert.Equal(t, []string{"synth.i0", "synth.i1"}, names(before.Recycling()), "old window is untouched")
	require.NoError(t, e.CheckTree())

	apply(t, e, Unlink{Input: "synth", InputLine: 1})
	voice = contextByID(t, e, "ctx-3")
	assert.Equal(t, []string{"synth.i1.3"}, voice.Recycling)
	require.NoError(t, e.CheckTree())
}

func TestRemoveOutputPad_UnlinksAndResetsFedContexts(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 1},
		Link{Input: "synth", InputLine: 1, Output: "osc", OutputLine: 0},
	)
	osc := e.graph.Audio("osc")
	fed := e.graph.Audio("synth").Line(recall.OrientationInput, 1)
	require.NotNil(t, fed.Link())

	apply(t, e, RemovePad{Audio: "osc", Orientation: recall.OrientationOutput})

	assert.Equal(t, 0, osc.Pads(recall.OrientationOutput))
	assert.Nil(t, fed.Link())
	assert.Nil(t, fed.Recycling().Source())
	in := contextByID(t, e, "ctx-2")
	assert.Equal(t, []string{"synth.i0", "synth.i1.3"}, in.Recycling)
	voice := contextByID(t, e, "ctx-3")
	assert.Equal(t, []string{"synth.i1.3"}, voice.Recycling)
	require.NoError(t, e.CheckTree())
}

func TestLink_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Apply(ctx, Link{Input: "synth", InputLine: 7, Output: "osc"})
	assert.True(t, HasCode(err, ErrCodeInvalidTask))

	err = e.Apply(ctx, Link{Input: "synth", InputLine: 0, Output: "synth", OutputLine: 0})
	assert.True(t, HasCode(err, ErrCodeTopology))
	assert.ErrorIs(t, err, channel.ErrSameAudio)

	err = e.Apply(ctx, Unlink{Input: "synth", InputLine: 0})
	assert.ErrorIs(t, err, channel.ErrNotLinked)
}

func TestAddPad_GrowsChainContexts(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 0},
		AddPad{Audio: "synth", Orientation: recall.OrientationInput},
	)

	in := contextByID(t, e, "ctx-2")
	assert.Equal(t, []string{"synth.i0", "synth.i1", "synth.i2"}, in.Recycling)
	voice := contextByID(t, e, "ctx-3")
	assert.Equal(t, []string{"synth.i0"}, voice.Recycling, "pad contexts are not grown")

	apply(t, e, NoteOn{Audio: "synth", Pad: 2})
	assert.Equal(t, []int{0, 2}, e.Voices("synth"))
	require.NoError(t, e.CheckTree())
}

func TestAddPad_FillsEmptyChain(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "osc"},
		AddPad{Audio: "osc", Orientation: recall.OrientationInput},
	)

	in := contextByID(t, e, "ctx-2")
	assert.Equal(t, []string{"osc.i0"}, in.Recycling)
	require.NoError(t, e.CheckTree())
}

func TestRemovePad_GraftsChainAndStopsVoices(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 0},
		NoteOn{Audio: "synth", Pad: 1},
		RemovePad{Audio: "synth", Orientation: recall.OrientationInput},
	)

	in := contextByID(t, e, "ctx-2")
	assert.Equal(t, []string{"synth.i0"}, in.Recycling)
	assert.Equal(t, []int{0}, e.Voices("synth"))
	_, ok := e.Context("ctx-4")
	assert.False(t, ok, "voice on the removed pad is stopped")
	require.NoError(t, e.CheckTree())

	apply(t, e, RemovePad{Audio: "synth", Orientation: recall.OrientationInput})
	_, ok = e.Context("ctx-2")
	assert.False(t, ok, "input context stops with its chain")
	assert.Empty(t, e.Voices("synth"))
	_, ok = e.PlaybackID("synth")
	assert.True(t, ok, "output context keeps playing")
	require.NoError(t, e.CheckTree())

	err := e.Apply(context.Background(), NoteOn{Audio: "synth", Pad: 0})
	assert.True(t, IsNotPlaying(err))
}

func TestRemovePad_EmptyOutputStopsPlayback(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 0},
		RemovePad{Audio: "synth", Orientation: recall.OrientationOutput},
	)

	assert.Empty(t, e.Playing())
	assert.Empty(t, e.Contexts())
	assert.Equal(t, 0, e.Quota().Live())

	err := e.Apply(context.Background(), RemovePad{Audio: "synth", Orientation: recall.OrientationOutput})
	assert.ErrorIs(t, err, channel.ErrNoPads)
}

func TestRender_MixesVoices(t *testing.T) {
	e := newTestEngine(t, WithBufferSize(2))
	for _, ch := range e.Graph().Audio("synth").Lines(recall.OrientationInput) {
		sig := recycling.NewAudioSignal()
		v := float32(ch.Line() + 1)
		sig.Append([]float32{v, v})
		ch.Recycling().AddSignal(sig)
	}
	apply(t, e, StartPlayback{Audio: "synth"})
	id, _ := e.PlaybackID("synth")

	buf, err := e.Render(id, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3}, buf, "without voices the input chain plays")

	apply(t, e, NoteOn{Audio: "synth", Pad: 1})
	buf, err = e.Render(id, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, buf)

	buf, err = e.Render(id, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, buf, "past the end of the signal")

	_, err = e.Render("missing", 0)
	assert.True(t, IsNotPlaying(err))

	dirty := []float32{9, 9}
	require.NoError(t, e.RenderInto(id, 0, dirty))
	assert.Equal(t, []float32{2, 2}, dirty, "buffer is cleared before mixing")
	assert.True(t, IsNotPlaying(e.RenderInto("missing", 0, dirty)))
	assert.Equal(t, 2, e.BufferSize())
}

func TestStartPlayback_JournalFailureStopsCreatedContexts(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	e := newTestEngine(t, WithStore(s))

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err = e.Apply(canceled, StartPlayback{Audio: "synth"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.Contexts())
	assert.Empty(t, e.Playing())
	assert.Equal(t, 0, e.Quota().Live())

	apply(t, e, StartPlayback{Audio: "synth"})
	assert.Equal(t, []string{"synth"}, e.Playing())
}

func TestStore_JournalsTasksContextsAndResets(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := newTestEngine(t, WithStore(s))
	ctx := context.Background()
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 1},
		Link{Input: "synth", InputLine: 1, Output: "osc", OutputLine: 0},
		NoteOff{Audio: "synth", Pad: 1},
	)
	require.Error(t, e.Apply(ctx, NoteOn{Audio: "osc", Pad: 0}))

	tasks, err := s.ReadTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	kinds := make([]string, len(tasks))
	for i, task := range tasks {
		kinds[i] = task.Kind
		assert.Equal(t, int64(i+1), task.Seq)
	}
	assert.Equal(t, []string{KindStartPlayback, KindNoteOn, KindLink, KindNoteOff, KindNoteOn}, kinds)
	assert.Empty(t, tasks[0].Error)
	assert.Contains(t, tasks[4].Error, string(ErrCodeNotPlaying))

	contexts, err := s.ReadContexts(ctx, false)
	require.NoError(t, err)
	require.Len(t, contexts, 3)
	assert.Equal(t, "ctx-2", contexts[2].ParentID)
	assert.Equal(t, 1, contexts[2].Pad)
	assert.Equal(t, int64(4), contexts[2].StoppedSeq)

	live, err := s.ReadContexts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, live, 2)

	resets, err := s.ReadResets(ctx, "ctx-2")
	require.NoError(t, err)
	require.Len(t, resets, 1)
	assert.Equal(t, int64(3), resets[0].Seq)
	assert.Equal(t, "infer", resets[0].Mode)
	assert.Equal(t, 2, resets[0].OldLen)
	assert.Equal(t, 2, resets[0].NewLen)
	assert.Equal(t, "synth.i0", resets[0].First)
	assert.Equal(t, "synth.i1.2<osc.o0", resets[0].Last)

	all, err := s.ReadResets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2, "input and voice contexts were reset")
}

func TestRun_DrainsQueueUntilStopped(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.Enqueue(StartPlayback{Audio: "synth"}))
	require.True(t, e.Enqueue(NoteOn{Audio: "missing", Pad: 0}))
	require.True(t, e.Enqueue(NoteOn{Audio: "synth", Pad: 0}))
	e.Stop()

	assert.False(t, e.Enqueue(NoteOn{Audio: "synth", Pad: 1}))
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, []int{0}, e.Voices("synth"), "a failing task does not stop the loop")
	assert.Equal(t, int64(3), e.Clock().Current())
}

func TestRun_StopsOnCancel(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.Enqueue(StartPlayback{Audio: "synth"})
	require.Eventually(t, func() bool {
		_, ok := e.PlaybackID("synth")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWalk_VisitsTreeDepthFirst(t *testing.T) {
	e := newTestEngine(t)
	apply(t, e,
		StartPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 0},
		StartPlayback{Audio: "osc"},
	)

	var got []string
	var depths []int
	e.Walk(func(info ContextInfo, depth int) {
		got = append(got, info.ID)
		depths = append(depths, depth)
	})
	assert.Equal(t, []string{"ctx-1", "ctx-2", "ctx-3", "ctx-4", "ctx-5"}, got)
	assert.Equal(t, []int{0, 1, 2, 0, 1}, depths)
}

func names(recs []*recycling.Recycling) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name()
	}
	return out
}
