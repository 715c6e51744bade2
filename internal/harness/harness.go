package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/agsrecall/internal/compiler"
	"github.com/roach88/agsrecall/internal/engine"
	"github.com/roach88/agsrecall/internal/ir"
	"github.com/roach88/agsrecall/internal/midiin"
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/store"
)

// DefaultIDPrefix prefixes recall ids when the scenario sets none.
const DefaultIDPrefix = "ctx"

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh graph built from its topology and a
// fresh in-memory journal. Recall ids come from a sequence generator, so the
// same scenario always yields the same tree.
//
// A malformed scenario (invalid topology, unknown task kind, bad MIDI) is
// returned as an error; unmet expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	topo, verrs, err := compiler.Load(scenario.Topology)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology: %w", err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("invalid topology: %s", verrs[0].Error())
	}
	graph, err := compiler.Build(topo)
	if err != nil {
		return nil, fmt.Errorf("failed to build topology: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	opts := []engine.EngineOption{
		engine.WithStore(st),
		engine.WithIDGenerator(recall.NewSequenceGenerator(prefix)),
	}
	if scenario.MaxContexts != 0 {
		opts = append(opts, engine.WithMaxContexts(scenario.MaxContexts))
	}
	eng := engine.New(graph, opts...)

	ctx := context.Background()
	hash, err := ir.TopologyHash(*topo)
	if err != nil {
		return nil, err
	}
	if err := st.SetMeta(ctx, "topology_hash", hash); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		task, err := StepTask(eng, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		applyErr := eng.Apply(ctx, task)
		sr := StepResult{
			Seq:  eng.Clock().Current(),
			Kind: task.Kind(),
			Args: FormatArgs(task.Args()),
		}
		if applyErr != nil {
			sr.Error = ErrorCode(applyErr)
		}
		result.Steps = append(result.Steps, sr)

		if sr.Error != step.ExpectError {
			result.AddError(fmt.Sprintf("step %d (%s): expected error %q, got %q (%v)",
				i, task.Kind(), step.ExpectError, sr.Error, applyErr))
		}
	}

	result.Contexts = eng.Contexts()
	result.Tree = Tree(eng)

	actx := &AssertionContext{Engine: eng, Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// StepTask builds the engine task for a step. MIDI steps are translated
// against the input pad count of the step's audio.
func StepTask(eng *engine.Engine, step Step) (engine.Task, error) {
	if step.MIDI == "" {
		args, err := convertArgs(step.Args)
		if err != nil {
			return nil, err
		}
		return engine.ParseTask(step.Task, args)
	}

	msg, err := midiin.ParseHex(step.MIDI)
	if err != nil {
		return nil, err
	}
	a := eng.Graph().Audio(step.Audio)
	if a == nil {
		return nil, fmt.Errorf("midi audio %q not in topology", step.Audio)
	}
	task, ok := midiin.Translate(msg, step.Audio, a.Pads(recall.OrientationInput))
	if !ok {
		return nil, fmt.Errorf("midi message %q is not a note for %s", step.MIDI, step.Audio)
	}
	return task, nil
}

// convertArgs converts YAML-decoded args to an ir.Object.
func convertArgs(args map[string]any) (ir.Object, error) {
	if args == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromAny(args)
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	return v.(ir.Object), nil
}

// ErrorCode returns the runtime error code of err, or "ERROR" for errors
// without one.
func ErrorCode(err error) string {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "ERROR"
}

// FormatArgs renders args as "k=v" pairs in canonical key order.
func FormatArgs(args ir.Object) string {
	parts := make([]string, 0, len(args))
	for _, k := range args.SortedKeys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, " ")
}
