package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds the outcome of an index integrity check.
type ValidationResult struct {
	Valid bool `json:"valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check index integrity without repairing",
		Long: `Check the nested-set index for integrity violations.

Runs three independent checks: interval bounds (no NULL, inverted, or
parent-escaping intervals), per-scope edge uniqueness, and strictly
increasing root intervals. Detects only; run rebuild to repair.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	eng, s, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ok, err := eng.Validate(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "validate", err)
	}

	if !ok {
		if formatter.Format == "json" {
			_ = formatter.Success(ValidationResult{Valid: false})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Index invalid")
		}
		return NewExitError(ExitFailure, "index integrity check failed")
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Index valid")
	return nil
}
