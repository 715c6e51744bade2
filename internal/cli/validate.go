package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/agsrecall/internal/compiler"
)

// ValidationResult holds the result of validation.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Hash   string                     `json:"hash,omitempty"`
	Audios int                        `json:"audios"`
	Links  int                        `json:"links"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <topology>",
		Short: "Validate a topology",
		Long: `Validate a CUE topology (a .cue file or a directory of them).

Checks audio geometry and links: unknown audios, lines out of range,
self links and input lines linked twice. Every error is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	lt, err := loadTopology(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	result := ValidationResult{Valid: lt.Valid(), Hash: lt.Hash, Errors: lt.Errors}
	if lt.Topology != nil {
		result.Audios = len(lt.Topology.Audios)
		result.Links = len(lt.Topology.Links)
	}
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Topology valid (%d audios, %d links)\n", result.Audios, result.Links)
	formatter.VerboseLog("hash: %s", result.Hash)
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
