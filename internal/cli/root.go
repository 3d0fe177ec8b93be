package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/internal/engine"
	"github.com/roach88/arbor/internal/store"
	"github.com/roach88/arbor/internal/tree"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath  string
	Verbose bool
	Format  string // "json" | "text"

	ScopeColumns []string
	AttrColumns  []string
	OrderColumn  string
	SoftDelete   bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the arbor CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "arbor",
		Short: "arbor - nested-set tree index maintenance",
		Long:  "Maintains an ordered hierarchical index over flat SQLite records using the nested-set encoding.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.DBPath == "" {
				return fmt.Errorf("--db is required")
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to the SQLite database")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringSliceVar(&opts.ScopeColumns, "scope-columns", nil, "scope columns partitioning the forest")
	cmd.PersistentFlags().StringSliceVar(&opts.AttrColumns, "attr-columns", nil, "caller-defined attribute columns")
	cmd.PersistentFlags().StringVar(&opts.OrderColumn, "order-column", "", "explicit sibling ordering column")
	cmd.PersistentFlags().BoolVar(&opts.SoftDelete, "soft-delete", false, "tombstone deleted nodes instead of removing them")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRebuildCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openEngine opens the store per the root flags and wraps it in an
// engine with no notification sink. Callers must Close the store.
func openEngine(opts *RootOptions) (*engine.Engine, *store.Store, error) {
	s, err := store.Open(opts.DBPath, store.Options{
		ScopeColumns: opts.ScopeColumns,
		AttrColumns:  opts.AttrColumns,
		OrderColumn:  opts.OrderColumn,
		SoftDelete:   opts.SoftDelete,
	})
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return engine.New(s, nil), s, nil
}

// parseScope parses repeated col=value pairs into a scope tuple. The
// literal value NULL selects the SQL NULL partition.
func parseScope(pairs []string) (tree.Scope, error) {
	scope := tree.Scope{}
	for _, pair := range pairs {
		col, val, found := strings.Cut(pair, "=")
		if !found || col == "" {
			return nil, fmt.Errorf("invalid scope pair %q: want col=value", pair)
		}
		if val == "NULL" {
			scope[col] = nil
		} else {
			scope[col] = tree.ScopeValue(val)
		}
	}
	return scope, nil
}
