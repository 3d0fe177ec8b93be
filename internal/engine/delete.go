package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/roach88/arbor/internal/tree"
)

// Delete removes a node and its entire subtree and renumbers every node
// whose interval lies to the right of the removed range, inside one
// transaction. The whole tail (lft >= the deleted left edge) is locked
// before any decrement.
//
// With soft delete enabled, the subtree is tombstoned instead: rows keep
// their intervals so Restore is a pure un-tombstone, and no renumbering
// happens. Tombstones never violate the index invariants; they are
// simply invisible to the read side.
func (e *Engine) Delete(ctx context.Context, nodeID int64) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.deleteInTx(ctx, tx, nodeID); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) deleteInTx(ctx context.Context, tx *sql.Tx, nodeID int64) error {
	n, err := e.store.GetNode(ctx, tx, nodeID)
	if err != nil {
		return err
	}

	if e.store.Options().SoftDelete {
		at := time.Now().UTC().Format(time.RFC3339)
		return e.store.TombstoneSubtree(ctx, tx, n.Scope, n.Left, n.Right, at)
	}

	if err := e.store.LockTail(ctx, tx, n.Scope, n.Left); err != nil {
		return err
	}
	if err := e.store.DeleteSubtree(ctx, tx, n.Scope, n.Left, n.Right); err != nil {
		return err
	}
	return e.store.CloseGap(ctx, tx, n.Scope, n.Right, n.Width())
}

// Restore clears the tombstones of a soft-deleted subtree. The node's
// intervals were retained at deletion time, so no renumbering is needed.
// Restoring a node restores its tombstoned descendants with it.
func (e *Engine) Restore(ctx context.Context, nodeID int64) (*tree.Node, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	n, err := e.store.GetNode(ctx, tx, nodeID)
	if err != nil {
		return nil, err
	}
	if err := e.store.RestoreSubtree(ctx, tx, n.Scope, n.Left, n.Right); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	n.DeletedAt = sql.NullString{}
	return n, nil
}
