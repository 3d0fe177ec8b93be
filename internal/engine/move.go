package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/arbor/internal/tree"
)

// Move relocates a node (and its whole subtree) relative to a target:
// left-of, right-of, child-of, or root (targetID ignored). It returns
// the reloaded node after relocation and depth propagation.
//
// Precondition violations return *tree.ImpossibleMoveError and leave the
// store unmodified. A Moving veto abandons the move silently: the node
// is returned unchanged and no Moved notification fires. A move that
// resolves to the node's current position is a no-op: nothing is
// written, but Moved still fires.
func (e *Engine) Move(ctx context.Context, nodeID, targetID int64, position tree.Position) (*tree.Node, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	n, ev, err := e.moveInTx(ctx, tx, nodeID, targetID, position)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		// Vetoed: nothing was written, the rollback is a formality.
		return n, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.notifier.Moved(ctx, *ev)
	return n, nil
}

// MoveLeft relocates a node to the left of its nearest left sibling.
func (e *Engine) MoveLeft(ctx context.Context, nodeID int64) (*tree.Node, error) {
	return e.moveAdjacent(ctx, nodeID, tree.PositionLeft)
}

// MoveRight relocates a node to the right of its nearest right sibling.
func (e *Engine) MoveRight(ctx context.Context, nodeID int64) (*tree.Node, error) {
	return e.moveAdjacent(ctx, nodeID, tree.PositionRight)
}

func (e *Engine) moveAdjacent(ctx context.Context, nodeID int64, position tree.Position) (*tree.Node, error) {
	n, err := e.store.GetNode(ctx, e.store.DB(), nodeID)
	if err != nil {
		return nil, err
	}

	var sibling *tree.Node
	if position == tree.PositionLeft {
		sibling, err = e.store.LeftSibling(ctx, e.store.DB(), n)
	} else {
		sibling, err = e.store.RightSibling(ctx, e.store.DB(), n)
	}
	if errors.Is(err, tree.ErrNotFound) {
		direction := "left"
		if position == tree.PositionRight {
			direction = "right"
		}
		return nil, tree.NewImpossibleMove(tree.ErrCodeUnresolvedTarget,
			fmt.Sprintf("could not resolve target node: no further sibling exists to the %s", direction),
			nodeID, 0)
	}
	if err != nil {
		return nil, err
	}

	return e.Move(ctx, nodeID, sibling.ID, position)
}

// moveInTx runs the full move algorithm inside an existing transaction.
//
// It returns the post-move node and the event to raise as Moved after
// the caller commits. A nil event with a nil error means the move was
// vetoed; the returned node is the pre-move state.
func (e *Engine) moveInTx(ctx context.Context, tx *sql.Tx, nodeID, targetID int64, position tree.Position) (*tree.Node, *tree.MoveEvent, error) {
	if nodeID == 0 {
		return nil, nil, tree.NewImpossibleMove(tree.ErrCodeUnsavedNode,
			"a new node cannot be moved until it is persisted", nodeID, targetID)
	}
	if !position.Valid() {
		return nil, nil, tree.NewImpossibleMove(tree.ErrCodeInvalidPosition,
			fmt.Sprintf("unrecognized position %q", position), nodeID, targetID)
	}

	n, err := e.store.GetNode(ctx, tx, nodeID)
	if err != nil {
		return nil, nil, err
	}

	var target *tree.Node
	if position.NeedsTarget() {
		if targetID == 0 {
			return nil, nil, tree.NewImpossibleMove(tree.ErrCodeUnresolvedTarget,
				"could not resolve target node", nodeID, targetID)
		}
		target, err = e.store.GetNode(ctx, tx, targetID)
		if errors.Is(err, tree.ErrNotFound) {
			return nil, nil, tree.NewImpossibleMove(tree.ErrCodeUnresolvedTarget,
				"could not resolve target node", nodeID, targetID)
		}
		if err != nil {
			return nil, nil, err
		}
		if target.IsTombstoned() {
			return nil, nil, tree.NewImpossibleMove(tree.ErrCodeUnresolvedTarget,
				"could not resolve target node: target is tombstoned", nodeID, targetID)
		}

		if err := e.guardTarget(n, target); err != nil {
			return nil, nil, err
		}
	}

	bound1, err := e.resolveBound1(ctx, tx, n, target, position)
	if err != nil {
		return nil, nil, err
	}

	ev := tree.MoveEvent{
		OpID:     tree.NewOpID(),
		NodeID:   nodeID,
		TargetID: targetID,
		Position: position,
	}

	// Moving strictly precedes any write. A veto abandons the move with
	// the node returned unchanged.
	if !e.notifier.Moving(ctx, ev) {
		return n, nil, nil
	}

	// bound1 landing on the node's own edge means the node is already in
	// the requested position: nothing to write.
	if bound1 == n.Left || bound1 == n.Right {
		return n, &ev, nil
	}

	// The opposite edge of the vacated interval: when the insertion edge
	// lies right of the moved block, the block travels right and the
	// range between node.rgt+1 and bound1 shifts left into the gap;
	// otherwise the block travels left.
	var bound2 int64
	if bound1 > n.Right {
		bound2 = n.Right + 1
	} else {
		bound2 = n.Left - 1
	}

	boundaries := []int64{n.Left, n.Right, bound1, bound2}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i] < boundaries[j] })
	a, b, c, d := boundaries[0], boundaries[1], boundaries[2], boundaries[3]

	newParent := e.resolveNewParent(target, position)

	if err := e.store.LockRange(ctx, tx, n.Scope, a, d); err != nil {
		return nil, nil, err
	}
	if err := e.store.ApplyBoundaryShift(ctx, tx, n.Scope, a, b, c, d, n.ID, newParent); err != nil {
		return nil, nil, err
	}

	// Reload both sides of the move, then propagate depth.
	moved, err := e.store.GetNode(ctx, tx, n.ID)
	if err != nil {
		return nil, nil, err
	}
	if target != nil {
		if _, err := e.store.GetNode(ctx, tx, target.ID); err != nil {
			return nil, nil, err
		}
	}

	newDepth := int64(0)
	if newParent.Valid {
		parent, err := e.store.GetNode(ctx, tx, newParent.Int64)
		if err != nil {
			return nil, nil, err
		}
		newDepth = parent.Depth + 1
	}

	delta := newDepth - moved.Depth
	if delta != 0 {
		if err := e.store.SetDepth(ctx, tx, moved.ID, newDepth); err != nil {
			return nil, nil, err
		}
		// Relative nesting inside the subtree is unchanged, so one bulk
		// increment covers every descendant.
		if !moved.IsLeaf() {
			if err := e.store.ShiftDepth(ctx, tx, moved.Scope, moved.Left, moved.Right, delta); err != nil {
				return nil, nil, err
			}
		}
		moved.Depth = newDepth
	}

	return moved, &ev, nil
}

// guardTarget enforces the target-related move preconditions.
func (e *Engine) guardTarget(n, target *tree.Node) error {
	if n.ID == target.ID {
		return tree.NewImpossibleMove(tree.ErrCodeSelfTarget,
			"a node cannot be moved relative to itself", n.ID, target.ID)
	}
	scopeCols := e.store.Options().ScopeColumns
	if !n.Scope.Equal(target.Scope, scopeCols) {
		return tree.NewImpossibleMove(tree.ErrCodeScopeMismatch,
			"node and target belong to different scopes", n.ID, target.ID)
	}
	if n.Contains(target) {
		return tree.NewImpossibleMove(tree.ErrCodeInsideSubtree,
			"target lies inside the node's own subtree", n.ID, target.ID)
	}
	return nil
}

// resolveBound1 computes the insertion edge for the requested position
// and applies the past-the-block adjustment: once the moved block is
// excised, every slot right of node.rgt is counted one early, so a raw
// edge past node.rgt overshoots by exactly 1.
func (e *Engine) resolveBound1(ctx context.Context, tx *sql.Tx, n, target *tree.Node, position tree.Position) (int64, error) {
	var bound1 int64
	switch position {
	case tree.PositionChild:
		bound1 = target.Right
	case tree.PositionLeft:
		bound1 = target.Left
	case tree.PositionRight:
		bound1 = target.Right + 1
	case tree.PositionRoot:
		max, err := e.store.MaxRight(ctx, tx, n.Scope)
		if err != nil {
			return 0, err
		}
		bound1 = max + 1
	}

	if bound1 > n.Right {
		bound1--
	}
	return bound1, nil
}

// resolveNewParent derives the rewritten parent reference: NULL for
// promotion to root, the target for child-of, the target's own parent
// for sibling positions.
func (e *Engine) resolveNewParent(target *tree.Node, position tree.Position) sql.NullInt64 {
	switch position {
	case tree.PositionRoot:
		return sql.NullInt64{}
	case tree.PositionChild:
		return sql.NullInt64{Int64: target.ID, Valid: true}
	default:
		return target.ParentID
	}
}
