package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/internal/tree"
)

// ImportResult reports a completed payload import.
type ImportResult struct {
	Imported int `json:"imported"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var anchorID int64
	var scopePairs []string

	cmd := &cobra.Command{
		Use:   "import <payload.yaml>",
		Short: "Map a hierarchical payload onto the index",
		Long: `Map a YAML payload of nested entries onto the index in one
transaction.

Entries with an id are located (or created under that id); entries
without one are created fresh. Payload attributes overwrite stored ones,
and parent changes go through the move engine. Nodes under the anchor
(or in the whole scope, without --anchor) that the payload does not
mention are deleted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, anchorID, scopePairs, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&anchorID, "anchor", 0, "node whose descendant set the payload replaces (0 = whole scope)")
	cmd.Flags().StringArrayVar(&scopePairs, "scope", nil, "scope column pair col=value (repeatable, ignored with --anchor)")

	return cmd
}

func runImport(opts *RootOptions, anchorID int64, scopePairs []string, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	entries, err := LoadPayload(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Error(), nil)
			return WrapExitError(ExitCommandError, "load payload", err)
		}
		return WrapExitError(ExitCommandError, "load payload", err)
	}

	scope, err := parseScope(scopePairs)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse scope", err)
	}

	eng, s, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := eng.ImportTree(cmd.Context(), anchorID, scope, entries); err != nil {
		if tree.IsImpossibleMove(err) {
			_ = formatter.Error(string(tree.MoveErrorCodeOf(err)), err.Error(), nil)
			return WrapExitError(ExitFailure, "import rejected", err)
		}
		return WrapExitError(ExitCommandError, "import", err)
	}

	count := countEntries(entries)
	formatter.VerboseLog("Imported %d entr%s from %s", count, plural(count, "y", "ies"), path)

	if formatter.Format == "json" {
		return formatter.Success(ImportResult{Imported: count})
	}
	fmt.Fprintf(formatter.Writer, "✓ Imported %d entr%s\n", count, plural(count, "y", "ies"))
	return nil
}

func countEntries(entries []tree.Entry) int {
	n := len(entries)
	for _, e := range entries {
		n += countEntries(e.Children)
	}
	return n
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
