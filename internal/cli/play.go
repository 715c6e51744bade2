package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/agsrecall/internal/config"
	"github.com/roach88/agsrecall/internal/engine"
	"github.com/roach88/agsrecall/internal/harness"
	"github.com/roach88/agsrecall/internal/midiin"
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/store"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Script   string
	Database string
	Ticks    int
}

// Script is a task list for play. Steps use the scenario step format
// without expectations.
type Script struct {
	Steps []harness.Step `yaml:"steps"`
}

// PlayStep is the outcome of one script step.
type PlayStep struct {
	Seq     int64  `json:"seq,omitempty"`
	Kind    string `json:"kind"`
	Args    string `json:"args,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// PlayRender is the rendered peak of one playback per tick.
type PlayRender struct {
	Audio string    `json:"audio"`
	Peaks []float32 `json:"peaks"`
}

// PlayResult is the outcome of a play run.
type PlayResult struct {
	Hash     string               `json:"hash"`
	Steps    []PlayStep           `json:"steps"`
	Failed   int                  `json:"failed"`
	Contexts []engine.ContextInfo `json:"contexts"`
	Tree     string               `json:"tree"`
	Renders  []PlayRender         `json:"renders,omitempty"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <topology>",
		Short: "Apply a task script to a topology",
		Long: `Build the topology, apply every step of a YAML task script, and print
the resulting recall context tree.

Script format:
  steps:
    - task: start_playback
      args: { audio: synth }
    - midi: "90 3c 64"      # note on, routed to midi.audio from the config
    - task: link
      args: { input: synth, input_line: 1, output: osc, output_line: 0 }

With --db every task, context and reset is journaled for trace and replay.
Failed steps are reported and make the command exit 1.

Examples:
  agsrecall play ./session.cue --script ./notes.yaml
  agsrecall play ./session.cue --script ./notes.yaml --db ./session.db --ticks 4`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "path to YAML task script (required)")
	_ = cmd.MarkFlagRequired("script")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal to a new SQLite database")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "render this many ticks of every playback")

	return cmd
}

func runPlay(opts *PlayOptions, topologyPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	script, err := LoadScript(opts.Script)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScript, err.Error(), nil)
	}
	lt, graph, err := buildTopology(formatter, topologyPath)
	if err != nil {
		return err
	}

	engineOpts := cfg.EngineOptions()
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.DB
	}
	if dbPath != "" {
		st, err := openJournal(ctx, dbPath, lt.Hash)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		defer st.Close()
		engineOpts = append(engineOpts, engine.WithStore(st))
		formatter.VerboseLog("Journaling to %s", dbPath)
	}
	eng := engine.New(graph, engineOpts...)

	result := PlayResult{Hash: lt.Hash, Steps: make([]PlayStep, 0, len(script.Steps))}
	for i, step := range script.Steps {
		task, err := scriptTask(eng, cfg, step)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeScript, fmt.Sprintf("steps[%d]: %v", i, err), nil)
		}
		if task == nil {
			result.Steps = append(result.Steps, PlayStep{Kind: "midi", Args: step.MIDI, Skipped: true})
			continue
		}

		ps := PlayStep{Kind: task.Kind(), Args: harness.FormatArgs(task.Args())}
		applyErr := eng.Apply(ctx, task)
		ps.Seq = eng.Clock().Current()
		if applyErr != nil {
			ps.Code = harness.ErrorCode(applyErr)
			ps.Message = applyErr.Error()
			result.Failed++
		}
		result.Steps = append(result.Steps, ps)
	}

	result.Contexts = eng.Contexts()
	result.Tree = harness.Tree(eng)
	for _, audio := range eng.Playing() {
		render, err := renderTicks(eng, audio, opts.Ticks)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		if render != nil {
			result.Renders = append(result.Renders, *render)
		}
	}

	return outputPlay(formatter, result)
}

// LoadScript reads a play script. Unknown keys are rejected.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, errors.New("script has no steps")
	}
	for i, step := range script.Steps {
		switch {
		case step.Task != "" && step.MIDI != "":
			return nil, fmt.Errorf("steps[%d]: task and midi are exclusive", i)
		case step.Task == "" && step.MIDI == "":
			return nil, fmt.Errorf("steps[%d]: task or midi is required", i)
		case step.ExpectError != "":
			return nil, fmt.Errorf("steps[%d]: expect_error belongs in test scenarios", i)
		}
	}
	return &script, nil
}

// scriptTask builds the task for a step. MIDI steps default to the audio
// and channel of the config; a nil task means the message was filtered.
func scriptTask(eng *engine.Engine, cfg config.Config, step harness.Step) (engine.Task, error) {
	if step.MIDI == "" {
		return harness.StepTask(eng, step)
	}

	audio := step.Audio
	if audio == "" {
		audio = cfg.MIDI.Audio
	}
	if audio == "" {
		return nil, errors.New("midi step needs an audio (step audio or midi.audio in config)")
	}
	a := eng.Graph().Audio(audio)
	if a == nil {
		return nil, fmt.Errorf("midi audio %q not in topology", audio)
	}
	msg, err := midiin.ParseHex(step.MIDI)
	if err != nil {
		return nil, err
	}

	tr := midiin.New(audio, a.Pads(recall.OrientationInput))
	if cfg.MIDI.Channel != nil {
		tr.Channel = *cfg.MIDI.Channel
	}
	task, ok := tr.Translate(msg)
	if !ok {
		return nil, nil
	}
	return task, nil
}

// openJournal opens a fresh journal and records the topology hash. A
// journal that already holds tasks is refused.
func openJournal(ctx context.Context, path, hash string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	tasks, err := st.ReadTasks(ctx)
	if err == nil && len(tasks) > 0 {
		err = fmt.Errorf("journal %s already holds %d task(s)", path, len(tasks))
	}
	if err == nil {
		err = st.SetMeta(ctx, "topology_hash", hash)
	}
	if err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// renderTicks renders ticks of audio's playback and keeps the peak of each.
func renderTicks(eng *engine.Engine, audio string, ticks int) (*PlayRender, error) {
	if ticks <= 0 {
		return nil, nil
	}
	id, ok := eng.PlaybackID(audio)
	if !ok {
		return nil, nil
	}
	render := &PlayRender{Audio: audio, Peaks: make([]float32, ticks)}
	buf := make([]float32, eng.BufferSize())
	for tick := range ticks {
		if err := eng.RenderInto(id, tick, buf); err != nil {
			return nil, err
		}
		if len(buf) > 0 {
			render.Peaks[tick] = slices.Max(buf)
		}
	}
	return render, nil
}

func outputPlay(formatter *OutputFormatter, result PlayResult) error {
	var exitErr error
	if result.Failed > 0 {
		exitErr = NewExitError(ExitFailure, fmt.Sprintf("%d step(s) failed", result.Failed))
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if exitErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_STEP_FAILED", Message: exitErr.Error()}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	for _, s := range result.Steps {
		switch {
		case s.Skipped:
			fmt.Fprintf(w, "- midi %s (filtered)\n", s.Args)
		case s.Code != "":
			fmt.Fprintf(w, "✗ %d %s %s\n  %s\n", s.Seq, s.Kind, s.Args, s.Message)
		default:
			fmt.Fprintf(w, "✓ %d %s %s\n", s.Seq, s.Kind, s.Args)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Contexts (%d live):\n", len(result.Contexts))
	fmt.Fprint(w, result.Tree)

	for _, r := range result.Renders {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Render %s:", r.Audio)
		for _, p := range r.Peaks {
			fmt.Fprintf(w, " %g", p)
		}
		fmt.Fprintln(w)
	}
	return exitErr
}
