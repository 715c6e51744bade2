package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/ir"
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/run"
	"github.com/roach88/agsrecall/internal/store"
)

// DefaultBufferSize is the default number of samples Render returns.
const DefaultBufferSize = 64

// Engine is the single-writer playback engine.
//
// Tasks (playback, notes, topology edits) are applied one at a time. Each
// task is stamped by the logical clock; topology changes it causes are
// propagated to the affected recall contexts before the next task runs.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Apply(): serialized with Run; meant for callers without a loop
//   - Render(), Contexts(), Walk(): safe from any goroutine
type Engine struct {
	graph       *channel.Graph
	store       *store.Store
	clock       *Clock
	queue       *taskQueue
	idGen       recall.IDGenerator
	quota       *QuotaEnforcer
	maxContexts int
	bufferSize  int

	applyMu sync.Mutex

	// mu guards the registry for concurrent readers. Only the applying
	// goroutine writes it.
	mu        sync.RWMutex
	contexts  []*recallContext // start order
	playbacks map[string]*playback
	order     []string // playback audio names in start order

	pendingMu sync.Mutex
	pending   []channel.Change
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxContexts bounds the number of live contexts.
// Default: DefaultMaxContexts. Zero disables the limit.
func WithMaxContexts(n int) EngineOption {
	return func(e *Engine) {
		e.maxContexts = n
	}
}

// WithStore journals tasks, contexts and resets to s.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithIDGenerator sets the recall id generator.
// Default: UUIDv7Generator. Tests use SequenceGenerator.
func WithIDGenerator(gen recall.IDGenerator) EngineOption {
	return func(e *Engine) {
		e.idGen = gen
	}
}

// WithClock resumes from an existing clock.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithBufferSize sets the number of samples Render returns.
func WithBufferSize(n int) EngineOption {
	return func(e *Engine) {
		e.bufferSize = n
	}
}

// New creates an engine over graph and starts observing its topology.
func New(graph *channel.Graph, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:       graph,
		clock:       NewClock(),
		queue:       newTaskQueue(),
		idGen:       recall.UUIDv7Generator{},
		maxContexts: DefaultMaxContexts,
		bufferSize:  DefaultBufferSize,
		playbacks:   make(map[string]*playback),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.quota = NewQuotaEnforcer(e.maxContexts)

	graph.Observe(channel.ObserverFunc(e.recyclingChanged))
	return e
}

// Graph returns the channel graph the engine plays.
func (e *Engine) Graph() *channel.Graph {
	return e.graph
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Quota returns the live context enforcer.
func (e *Engine) Quota() *QuotaEnforcer {
	return e.quota
}

// Enqueue submits a task for processing by the Run loop.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(t Task) bool {
	return e.queue.Enqueue(t)
}

// Run starts the single-writer task loop.
// Blocks until ctx is cancelled or Stop is called.
//
// A failing task is logged with its arguments and the loop continues;
// the journal records the failure next to the task.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		task, ok := e.queue.TryDequeue()
		if ok {
			if err := e.Apply(ctx, task); err != nil {
				logTaskError(task, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue.
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the task queue; Run returns once it has drained it.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Apply applies one task synchronously and propagates the topology changes
// it caused.
func (e *Engine) Apply(ctx context.Context, t Task) error {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	seq := e.clock.Next()
	slog.Debug("applying task", "kind", t.Kind(), "seq", seq)

	err := e.apply(ctx, seq, t)
	if perr := e.propagate(ctx, seq); perr != nil {
		err = errors.Join(err, perr)
	}
	if jerr := e.journalTask(ctx, seq, t, err); jerr != nil {
		return errors.Join(err, jerr)
	}
	return err
}

func (e *Engine) apply(ctx context.Context, seq int64, t Task) error {
	switch t := t.(type) {
	case StartPlayback:
		return e.startPlayback(ctx, seq, t)
	case StopPlayback:
		pb, err := e.playbackFor(t.Kind(), t.Audio)
		if err != nil {
			return err
		}
		return e.stopPlayback(ctx, seq, pb)
	case NoteOn:
		return e.noteOn(ctx, seq, t)
	case NoteOff:
		return e.noteOff(ctx, seq, t)
	case AddPad:
		a, err := e.audio(t.Kind(), t.Audio)
		if err != nil {
			return err
		}
		a.AddPad(t.Orientation)
		return nil
	case RemovePad:
		a, err := e.audio(t.Kind(), t.Audio)
		if err != nil {
			return err
		}
		if err := e.graph.RemovePad(a, t.Orientation); err != nil {
			return topologyError(t.Kind(), t.Audio, err)
		}
		return nil
	case Link:
		return e.link(t)
	case Unlink:
		in, err := e.line(t.Kind(), t.Input, recall.OrientationInput, t.InputLine)
		if err != nil {
			return err
		}
		if err := channel.Unlink(in); err != nil {
			return topologyError(t.Kind(), t.Input, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown task type %T", t)
	}
}

func (e *Engine) startPlayback(ctx context.Context, seq int64, t StartPlayback) error {
	a, err := e.audio(t.Kind(), t.Audio)
	if err != nil {
		return err
	}
	e.mu.RLock()
	_, playing := e.playbacks[a.Name()]
	e.mu.RUnlock()
	if playing {
		return &RuntimeError{Code: ErrCodeAlreadyPlaying, Message: "audio is already playing", Task: t.Kind(), Audio: t.Audio}
	}
	if err := e.quota.Check(2); err != nil {
		return err
	}

	out, err := e.startContext(ctx, seq, a, RoleOutput, -1, nil)
	if err != nil {
		return e.abortStart(ctx, seq, out, err)
	}
	in, err := e.startContext(ctx, seq, a, RoleInput, -1, out)
	if err != nil {
		return e.abortStart(ctx, seq, out, err)
	}

	pb := &playback{audio: a, output: out, input: in, run: run.NewAudioRun(out.id, 1)}
	e.mu.Lock()
	e.playbacks[a.Name()] = pb
	e.order = append(e.order, a.Name())
	e.mu.Unlock()

	slog.Info("playback started", "audio", a.Name(), "recall_id", out.id.String(), "seq", seq)
	return nil
}

// abortStart stops the contexts a failed start already created below and
// including rc. A nil rc was never registered.
func (e *Engine) abortStart(ctx context.Context, seq int64, rc *recallContext, err error) error {
	if rc == nil {
		return err
	}
	return errors.Join(err, e.stopContext(ctx, seq, rc))
}

func (e *Engine) stopPlayback(ctx context.Context, seq int64, pb *playback) error {
	pb.run.Disconnect()
	err := e.stopContext(ctx, seq, pb.output)

	e.mu.Lock()
	delete(e.playbacks, pb.audio.Name())
	for i, name := range e.order {
		if name == pb.audio.Name() {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	slog.Info("playback stopped", "audio", pb.audio.Name(), "seq", seq)
	return err
}

func (e *Engine) noteOn(ctx context.Context, seq int64, t NoteOn) error {
	pb, err := e.playbackFor(t.Kind(), t.Audio)
	if err != nil {
		return err
	}
	if pb.input == nil {
		return notPlaying(t.Kind(), t.Audio)
	}
	if first, _ := pb.audio.PadRange(recall.OrientationInput, t.Pad); first == nil {
		return invalidTask(t.Kind(), t.Audio, "input pad %d out of range", t.Pad)
	}
	voice, err := e.startContext(ctx, seq, pb.audio, RoleVoice, t.Pad, pb.input)
	if err != nil {
		return e.abortStart(ctx, seq, voice, err)
	}
	slog.Debug("voice started", "audio", t.Audio, "pad", t.Pad, "velocity", t.Velocity, "recall_id", voice.id.String())
	return nil
}

func (e *Engine) noteOff(ctx context.Context, seq int64, t NoteOff) error {
	pb, err := e.playbackFor(t.Kind(), t.Audio)
	if err != nil {
		return err
	}
	for _, v := range pb.voices() {
		if v.pad == t.Pad {
			return e.stopContext(ctx, seq, v)
		}
	}
	slog.Debug("note off without voice", "audio", t.Audio, "pad", t.Pad)
	return nil
}

func (e *Engine) link(t Link) error {
	in, err := e.line(t.Kind(), t.Input, recall.OrientationInput, t.InputLine)
	if err != nil {
		return err
	}
	out, err := e.line(t.Kind(), t.Output, recall.OrientationOutput, t.OutputLine)
	if err != nil {
		return err
	}
	if err := channel.Link(in, out); err != nil {
		return topologyError(t.Kind(), t.Input, err)
	}
	return nil
}

// startContext creates a context over the audio's chain, or over one pad for
// voices, and nests it under parent.
func (e *Engine) startContext(ctx context.Context, seq int64, a *channel.Audio, role Role, pad int, parent *recallContext) (*recallContext, error) {
	if err := e.quota.Acquire(); err != nil {
		return nil, err
	}

	orientation, scope := recall.OrientationInput, recall.ScopePlayback
	var container *recall.Container
	var err error
	switch role {
	case RoleOutput:
		orientation = recall.OrientationOutput
		container, err = chainContainer(a, orientation)
	case RoleInput:
		container, err = chainContainer(a, orientation)
	default:
		scope = recall.ScopeMIDI
		container, err = recall.FromRange(a.PadRange(orientation, pad))
	}
	if err != nil {
		e.quota.Release()
		return nil, err
	}

	id := recall.NewID(e.idGen, orientation, scope)
	container.SetRecallID(id)
	rc := &recallContext{id: id, audio: a, role: role, pad: pad, seq: seq, parent: parent}

	if parent != nil {
		if err := recall.AddChild(parent.id.Container(), container); err != nil {
			e.quota.Release()
			return nil, err
		}
	}

	e.mu.Lock()
	e.contexts = append(e.contexts, rc)
	if parent != nil {
		parent.children = append(parent.children, rc)
	}
	e.mu.Unlock()

	if err := e.journalContext(ctx, rc); err != nil {
		return rc, err
	}
	return rc, nil
}

func chainContainer(a *channel.Audio, o recall.Orientation) (*recall.Container, error) {
	first, last := a.Range(o)
	if first == nil {
		return recall.New(0), nil
	}
	return recall.FromRange(first, last)
}

// stopContext stops rc and every context below it, children first.
func (e *Engine) stopContext(ctx context.Context, seq int64, rc *recallContext) error {
	var errs []error
	for i := len(rc.children) - 1; i >= 0; i-- {
		if err := e.stopContext(ctx, seq, rc.children[i]); err != nil {
			errs = append(errs, err)
		}
	}

	container := rc.id.Container()
	rc.id.Release()
	container.Unref()
	e.quota.Release()

	e.mu.Lock()
	for i, c := range e.contexts {
		if c == rc {
			e.contexts = append(e.contexts[:i], e.contexts[i+1:]...)
			break
		}
	}
	if rc.parent != nil {
		rc.parent.removeChild(rc)
	}
	if pb := e.playbacks[rc.audio.Name()]; pb != nil && pb.input == rc {
		pb.input = nil
	}
	e.mu.Unlock()

	slog.Debug("context stopped", "recall_id", rc.id.String(), "role", string(rc.role), "seq", seq)
	if e.store != nil {
		if err := e.store.CloseContext(ctx, rc.id.String(), seq); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) audio(task, name string) (*channel.Audio, error) {
	a := e.graph.Audio(name)
	if a == nil {
		return nil, unknownAudio(task, name)
	}
	return a, nil
}

func (e *Engine) line(task, audio string, o recall.Orientation, line int) (*channel.Channel, error) {
	a, err := e.audio(task, audio)
	if err != nil {
		return nil, err
	}
	ch := a.Line(o, line)
	if ch == nil {
		return nil, invalidTask(task, audio, "%s line %d out of range", o, line)
	}
	return ch, nil
}

func (e *Engine) playbackFor(task, audio string) (*playback, error) {
	if _, err := e.audio(task, audio); err != nil {
		return nil, err
	}
	e.mu.RLock()
	pb := e.playbacks[audio]
	e.mu.RUnlock()
	if pb == nil {
		return nil, notPlaying(task, audio)
	}
	return pb, nil
}

func (e *Engine) journalTask(ctx context.Context, seq int64, t Task, taskErr error) error {
	if e.store == nil {
		return nil
	}
	args := t.Args()
	id, err := ir.TaskID(t.Kind(), args, seq)
	if err != nil {
		return err
	}
	rec := ir.TaskRecord{ID: id, Seq: seq, Kind: t.Kind(), Args: args}
	if taskErr != nil {
		rec.Error = taskErr.Error()
	}
	return e.store.WriteTask(ctx, rec)
}

func (e *Engine) journalContext(ctx context.Context, rc *recallContext) error {
	if e.store == nil {
		return nil
	}
	rec := ir.ContextRecord{
		RecallID:    rc.id.String(),
		Audio:       rc.audio.Name(),
		Orientation: rc.id.Orientation().String(),
		Scope:       string(rc.id.Scope()),
		Pad:         rc.pad,
		StartedSeq:  rc.seq,
	}
	if rc.parent != nil {
		rec.ParentID = rc.parent.id.String()
	}
	return e.store.WriteContext(ctx, rec)
}

// logTaskError logs a task failure with its arguments for later replay.
func logTaskError(t Task, err error) {
	attrs := []any{"kind", t.Kind(), "error", err}
	for _, k := range t.Args().SortedKeys() {
		attrs = append(attrs, k, t.Args()[k])
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		attrs = append(attrs, "code", string(re.Code))
	}
	slog.Error("task failed", attrs...)
}
