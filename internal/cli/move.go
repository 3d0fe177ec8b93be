package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/internal/tree"
)

// MoveResult reports the node's placement after a move.
type MoveResult struct {
	NodeID   int64  `json:"node_id"`
	ParentID *int64 `json:"parent_id"`
	Left     int64  `json:"lft"`
	Right    int64  `json:"rgt"`
	Depth    int64  `json:"depth"`
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <node> <position> [target]",
		Short: "Relocate a node and its subtree",
		Long: `Relocate a node (and its whole subtree) within its scope partition.

Positions taking a target: child-of, left-of, right-of.
Positions taking no target: root (promote to last root), left and right
(swap with the adjacent sibling).

Moves that would break the index are rejected: moving an unsaved node,
targeting a node in another scope, or moving a node inside its own
subtree.`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runMove(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	nodeID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse node id", err)
	}

	position := tree.Position(args[1])
	var targetID int64
	if len(args) == 3 {
		targetID, err = strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse target id", err)
		}
	}

	eng, s, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	var n *tree.Node
	switch position {
	case "left":
		n, err = eng.MoveLeft(ctx, nodeID)
	case "right":
		n, err = eng.MoveRight(ctx, nodeID)
	default:
		if position.NeedsTarget() && targetID == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("position %q requires a target node", position))
		}
		n, err = eng.Move(ctx, nodeID, targetID, position)
	}
	if err != nil {
		if tree.IsImpossibleMove(err) {
			_ = formatter.Error(string(tree.MoveErrorCodeOf(err)), err.Error(), nil)
			return WrapExitError(ExitFailure, "move rejected", err)
		}
		return WrapExitError(ExitCommandError, "move", err)
	}

	result := MoveResult{
		NodeID: n.ID,
		Left:   n.Left,
		Right:  n.Right,
		Depth:  n.Depth,
	}
	if n.ParentID.Valid {
		pid := n.ParentID.Int64
		result.ParentID = &pid
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Moved node %d [%d,%d] depth %d\n", n.ID, n.Left, n.Right, n.Depth)
	return nil
}
