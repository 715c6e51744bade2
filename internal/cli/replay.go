package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/agsrecall/internal/engine"
	"github.com/roach88/agsrecall/internal/ir"
	"github.com/roach88/agsrecall/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// Divergence is one point where the replay differs from the journal.
type Divergence struct {
	Seq     int64  `json:"seq"`
	Field   string `json:"field"`
	Journal string `json:"journal"`
	Replay  string `json:"replay"`
}

// ReplayResult holds the replay verdict.
type ReplayResult struct {
	Hash          string       `json:"hash"`
	Tasks         int          `json:"tasks"`
	Resets        int          `json:"resets"`
	LiveContexts  int          `json:"live_contexts"`
	Deterministic bool         `json:"deterministic"`
	Divergences   []Divergence `json:"divergences,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <topology>",
		Short: "Re-apply a journal and verify the outcome",
		Long: `Re-apply every journaled task to a fresh engine and compare.

The topology must hash to the one the journal recorded. Tasks must fail
or succeed exactly as journaled, every reset must repeat with the same
window, and the same number of contexts must be live at the end. Recall
ids are not compared, so journals written with UUID ids replay too.

Pass the --config used for play: quota limits change outcomes.

Examples:
  agsrecall replay ./session.cue --db ./session.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, topologyPath string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	journal, err := openExistingJournal(opts.Database)
	if err != nil {
		return err
	}
	defer journal.Close()

	lt, graph, err := buildTopology(formatter, topologyPath)
	if err != nil {
		return err
	}
	recorded, err := journal.Meta(ctx, "topology_hash")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if recorded != lt.Hash {
		return formatter.Fail(ExitFailure, ErrCodeHashMismatch,
			fmt.Sprintf("journal recorded topology %q, %s hashes to %q", truncateID(recorded), topologyPath, truncateID(lt.Hash)), nil)
	}

	replayStore, err := store.Open(":memory:")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open replay store", err)
	}
	defer replayStore.Close()

	eng := engine.New(graph, append(cfg.EngineOptions(), engine.WithStore(replayStore))...)
	tasks, err := journal.ReadTasks(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := ReplayResult{Hash: lt.Hash, Tasks: len(tasks)}
	for _, rec := range tasks {
		task, err := engine.ParseTask(rec.Kind, rec.Args)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDiverged, fmt.Sprintf("task %d: %v", rec.Seq, err), nil)
		}
		// The error is journaled by the replay store and compared below.
		_ = eng.Apply(ctx, task)
	}
	formatter.VerboseLog("Replayed %d task(s)", len(tasks))

	divergences, err := compareJournals(ctx, journal, replayStore)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compare journals", err)
	}
	result.Divergences = divergences
	result.Deterministic = len(divergences) == 0
	if resets, err := replayStore.ReadResets(ctx, ""); err == nil {
		result.Resets = len(resets)
	}
	result.LiveContexts = len(eng.Contexts())

	return outputReplay(formatter, result)
}

// compareJournals diffs tasks, resets and live contexts of two journals.
// Resets are matched by the geometry of their context, not its recall id.
func compareJournals(ctx context.Context, a, b *store.Store) ([]Divergence, error) {
	var divs []Divergence

	tasksA, err := a.ReadTasks(ctx)
	if err != nil {
		return nil, err
	}
	tasksB, err := b.ReadTasks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range max(len(tasksA), len(tasksB)) {
		ta, tb := taskAt(tasksA, i), taskAt(tasksB, i)
		if ta.ID != tb.ID {
			divs = append(divs, Divergence{Seq: ta.Seq, Field: "task", Journal: ta.Kind, Replay: tb.Kind})
			continue
		}
		if ta.Error != tb.Error {
			divs = append(divs, Divergence{Seq: ta.Seq, Field: "error", Journal: ta.Error, Replay: tb.Error})
		}
	}

	resetsA, err := describeResets(ctx, a)
	if err != nil {
		return nil, err
	}
	resetsB, err := describeResets(ctx, b)
	if err != nil {
		return nil, err
	}
	for i := range max(len(resetsA), len(resetsB)) {
		ra, rb := resetAt(resetsA, i), resetAt(resetsB, i)
		if ra.desc != rb.desc {
			divs = append(divs, Divergence{Seq: max(ra.seq, rb.seq), Field: "reset", Journal: ra.desc, Replay: rb.desc})
		}
	}

	liveA, err := a.ReadContexts(ctx, true)
	if err != nil {
		return nil, err
	}
	liveB, err := b.ReadContexts(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(liveA) != len(liveB) {
		divs = append(divs, Divergence{
			Field:   "live_contexts",
			Journal: fmt.Sprintf("%d", len(liveA)),
			Replay:  fmt.Sprintf("%d", len(liveB)),
		})
	}
	return divs, nil
}

type resetDesc struct {
	seq  int64
	desc string
}

func describeResets(ctx context.Context, st *store.Store) ([]resetDesc, error) {
	contexts, err := st.ReadContexts(ctx, false)
	if err != nil {
		return nil, err
	}
	geometry := make(map[string]string, len(contexts))
	for _, c := range contexts {
		geometry[c.RecallID] = fmt.Sprintf("%s/%s/%s/%d", c.Audio, c.Orientation, c.Scope, c.Pad)
	}

	resets, err := st.ReadResets(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]resetDesc, len(resets))
	for i, r := range resets {
		out[i] = resetDesc{
			seq:  r.Seq,
			desc: fmt.Sprintf("%d %s %s %d→%d %s..%s", r.Seq, geometry[r.RecallID], r.Mode, r.OldLen, r.NewLen, r.First, r.Last),
		}
	}
	return out, nil
}

func taskAt(tasks []ir.TaskRecord, i int) ir.TaskRecord {
	if i < len(tasks) {
		return tasks[i]
	}
	return ir.TaskRecord{Kind: "<none>"}
}

func resetAt(resets []resetDesc, i int) resetDesc {
	if i < len(resets) {
		return resets[i]
	}
	return resetDesc{desc: "<none>"}
}

func outputReplay(formatter *OutputFormatter, result ReplayResult) error {
	var exitErr error
	if !result.Deterministic {
		exitErr = NewExitError(ExitFailure, "replay diverged from journal")
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if exitErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeDiverged, Message: exitErr.Error()}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Replay Summary: %d task(s), %d reset(s), %d live context(s)\n",
		result.Tasks, result.Resets, result.LiveContexts)
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay matches journal")
		return nil
	}
	for _, d := range result.Divergences {
		fmt.Fprintf(w, "  [%d] %s: journal %q, replay %q\n", d.Seq, d.Field, d.Journal, d.Replay)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "✗ Replay diverged from journal")
	return exitErr
}
