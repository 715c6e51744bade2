package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/agsrecall/internal/harness"
	"github.com/roach88/agsrecall/internal/ir"
	"github.com/roach88/agsrecall/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Context  string // filter by recall id
	Live     bool   // only contexts still live at the end of the journal
}

// TraceResult holds the journal view.
type TraceResult struct {
	Hash     string             `json:"hash,omitempty"`
	Tasks    []ir.TaskRecord    `json:"tasks"`
	Contexts []ir.ContextRecord `json:"contexts"`
	Resets   []ir.ResetRecord   `json:"resets"`
	Stats    TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the journal.
type TraceStats struct {
	Tasks        int `json:"tasks"`
	FailedTasks  int `json:"failed_tasks"`
	Contexts     int `json:"contexts"`
	LiveContexts int `json:"live_contexts"`
	Resets       int `json:"resets"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a play session",
		Long: `Show what a play session journaled.

The output includes:
- Tasks: every applied task by seq, with its error if it failed
- Contexts: when each recall context started and stopped, and its parent
- Resets: every container reset with the window length before and after

With --context the view narrows to one recall context: its record, its
direct children, its resets and the tasks applied while it was live.

Examples:
  agsrecall trace --db ./session.db
  agsrecall trace --db ./session.db --context ctx-2
  agsrecall trace --db ./session.db --live --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Context, "context", "", "show one recall context")
	cmd.Flags().BoolVar(&opts.Live, "live", false, "only live contexts")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExistingJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := readTrace(ctx, st, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts)
}

// openExistingJournal opens a journal that must already exist, so a typo in
// --db does not create an empty database.
func openExistingJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func readTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (TraceResult, error) {
	var result TraceResult

	hash, err := st.Meta(ctx, "topology_hash")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return result, err
	}
	result.Hash = hash

	if result.Tasks, err = st.ReadTasks(ctx); err != nil {
		return result, err
	}
	if result.Contexts, err = st.ReadContexts(ctx, opts.Live); err != nil {
		return result, err
	}
	if result.Resets, err = st.ReadResets(ctx, opts.Context); err != nil {
		return result, err
	}

	if opts.Context != "" {
		if result, err = narrowTrace(result, opts.Context); err != nil {
			return result, err
		}
	}

	result.Stats = TraceStats{
		Tasks:    len(result.Tasks),
		Contexts: len(result.Contexts),
		Resets:   len(result.Resets),
	}
	for _, t := range result.Tasks {
		if t.Error != "" {
			result.Stats.FailedTasks++
		}
	}
	for _, c := range result.Contexts {
		if c.Live() {
			result.Stats.LiveContexts++
		}
	}
	return result, nil
}

// narrowTrace keeps the context id, its direct children and the tasks
// applied during its lifetime.
func narrowTrace(result TraceResult, id string) (TraceResult, error) {
	var self *ir.ContextRecord
	contexts := []ir.ContextRecord{}
	for i, c := range result.Contexts {
		if c.RecallID == id {
			self = &result.Contexts[i]
		}
		if c.RecallID == id || c.ParentID == id {
			contexts = append(contexts, c)
		}
	}
	if self == nil {
		return result, fmt.Errorf("context %s not in journal", id)
	}

	tasks := []ir.TaskRecord{}
	for _, t := range result.Tasks {
		if t.Seq < self.StartedSeq || (!self.Live() && t.Seq > self.StoppedSeq) {
			continue
		}
		tasks = append(tasks, t)
	}
	result.Contexts = contexts
	result.Tasks = tasks
	return result, nil
}

func outputTraceText(w io.Writer, result TraceResult, opts *TraceOptions) error {
	if opts.Context != "" {
		fmt.Fprintf(w, "Context: %s\n", opts.Context)
	}
	if result.Hash != "" {
		fmt.Fprintf(w, "Topology: %s\n", truncateID(result.Hash))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Tasks (%d):\n", len(result.Tasks))
	for _, t := range result.Tasks {
		fmt.Fprintf(w, "  [%d] %s %s", t.Seq, t.Kind, harness.FormatArgs(t.Args))
		if t.Error != "" {
			fmt.Fprintf(w, " ✗ %s", t.Error)
		}
		if opts.Verbose {
			fmt.Fprintf(w, " (%s)", truncateID(t.ID))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Contexts (%d):\n", len(result.Contexts))
	for _, c := range result.Contexts {
		fmt.Fprintf(w, "  %s %s %s %s pad=%d", c.RecallID, c.Audio, c.Orientation, c.Scope, c.Pad)
		if c.ParentID != "" {
			fmt.Fprintf(w, " parent=%s", c.ParentID)
		}
		fmt.Fprintf(w, " [%d-%s]\n", c.StartedSeq, stoppedAt(c))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Resets (%d):\n", len(result.Resets))
	for _, r := range result.Resets {
		fmt.Fprintf(w, "  [%d] %s %s %d → %d", r.Seq, r.RecallID, r.Mode, r.OldLen, r.NewLen)
		if r.First != "" {
			fmt.Fprintf(w, " %s..%s", r.First, r.Last)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	s := result.Stats
	fmt.Fprintf(w, "Stats: %d task(s) (%d failed), %d context(s) (%d live), %d reset(s)\n",
		s.Tasks, s.FailedTasks, s.Contexts, s.LiveContexts, s.Resets)
	return nil
}

func stoppedAt(c ir.ContextRecord) string {
	if c.Live() {
		return "live"
	}
	return fmt.Sprintf("%d", c.StoppedSeq)
}

// truncateID shortens a hash or id for display.
func truncateID(id string) string {
	if len(id) > 16 {
		return id[:16] + "..."
	}
	return id
}
