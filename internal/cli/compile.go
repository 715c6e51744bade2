package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/agsrecall/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled topology and its hash.
type CompilationResult struct {
	Hash     string       `json:"hash"`
	Topology *ir.Topology `json:"topology"`
	Output   string       `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <topology>",
		Short: "Compile a topology to canonical JSON",
		Long: `Compile a CUE topology to canonical JSON.

The canonical form sorts keys and links, so two topologies that declare the
same graph in a different order compile to identical bytes and share a hash.
play records this hash in the journal; replay checks it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	lt, err := loadTopology(path)
	if err != nil {
		return failLoad(formatter, err)
	}
	if !lt.Valid() {
		return outputValidationErrors(formatter, ValidationResult{Errors: lt.Errors})
	}

	data, err := ir.MarshalCanonical(lt.Topology.Value())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("marshal topology: %v", err), nil)
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	result := CompilationResult{Hash: lt.Hash, Topology: lt.Topology, Output: opts.Output}
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d audio(s), %d link(s)\n\n", len(lt.Topology.Audios), len(lt.Topology.Links))
	fmt.Fprintln(w, "Audios:")
	for _, a := range lt.Topology.Audios {
		fmt.Fprintf(w, "  %s: %d channel(s), %d output pad(s), %d input pad(s)\n",
			a.Name, a.AudioChannels, a.OutputPads, a.InputPads)
	}
	if len(lt.Topology.Links) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Links:")
		for _, l := range lt.Topology.Links {
			fmt.Fprintf(w, "  %s.o%d → %s.i%d\n", l.Output, l.OutputLine, l.Input, l.InputLine)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Hash: %s\n", lt.Hash)
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote canonical topology to %s\n", opts.Output)
	} else if opts.Verbose {
		fmt.Fprintf(w, "%s\n", data)
	}
	return nil
}
