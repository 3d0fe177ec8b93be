package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/arbor/internal/tree"
)

// ImportTree maps an externally supplied hierarchical payload onto the
// store, replacing the descendant set of the anchor node, or the whole
// scope when anchorID is 0 (a fresh, unpersisted anchor).
//
// Entries are applied recursively in pre-order: located by primary key
// when one is given (created with that key if missing), created blank
// otherwise; payload attributes are copied with the attribute guard
// lifted for the duration; the parent reference is rewritten through the
// normal parent-change lifecycle, so relocations go through the move
// engine. Afterwards every node in the pruning scope whose id was not
// recorded as affected is deleted, renumbering as usual.
//
// The whole operation runs in a single transaction; any failure aborts
// the import with no partial writes. Moved notifications are buffered
// and raised only after commit.
func (e *Engine) ImportTree(ctx context.Context, anchorID int64, scope tree.Scope, entries []tree.Entry) error {
	// A payload naming the same node twice has no single well-defined
	// placement for it; reject before touching the store.
	seen := map[int64]bool{}
	for _, id := range tree.Flatten(entries) {
		if seen[id] {
			return fmt.Errorf("payload declares entry id %d more than once", id)
		}
		seen[id] = true
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var anchor *tree.Node
	if anchorID != 0 {
		anchor, err = e.store.GetNode(ctx, tx, anchorID)
		if err != nil {
			return err
		}
		scope = anchor.Scope
	}

	affected := map[int64]bool{}
	if anchor != nil {
		affected[anchor.ID] = true
	}

	var events []tree.MoveEvent
	err = e.store.Unguarded(func() error {
		return e.mapEntries(ctx, tx, anchor, scope, entries, affected, &events)
	})
	if err != nil {
		return err
	}

	if err := e.pruneUnaffected(ctx, tx, anchorID, scope, affected); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	e.flushMoved(ctx, events)
	return nil
}

// mapEntries applies one payload level and recurses into children.
// parent is nil for top-level entries of an unpersisted anchor.
func (e *Engine) mapEntries(ctx context.Context, tx *sql.Tx, parent *tree.Node, scope tree.Scope, entries []tree.Entry, affected map[int64]bool, events *[]tree.MoveEvent) error {
	for _, entry := range entries {
		var n *tree.Node
		var err error
		if entry.ID != 0 {
			n, err = e.store.GetNode(ctx, tx, entry.ID)
			if errors.Is(err, tree.ErrNotFound) {
				n, err = e.store.InsertNode(ctx, tx, entry.ID, scope, nil)
			}
		} else {
			n, err = e.store.InsertNode(ctx, tx, 0, scope, nil)
		}
		if err != nil {
			return err
		}

		if len(entry.Attrs) > 0 {
			if err := e.store.UpdateAttrs(ctx, tx, n.ID, entry.Attrs); err != nil {
				return err
			}
		}

		// Parent-change lifecycle: relocate only when the payload parent
		// differs from the stored one, exactly as a caller-visible
		// parent change would.
		var wantParent int64
		if parent != nil {
			wantParent = parent.ID
		}
		var curParent int64
		if n.ParentID.Valid {
			curParent = n.ParentID.Int64
		}
		if curParent != wantParent {
			var ev *tree.MoveEvent
			if wantParent == 0 {
				n, ev, err = e.moveInTx(ctx, tx, n.ID, 0, tree.PositionRoot)
			} else {
				n, ev, err = e.moveInTx(ctx, tx, n.ID, wantParent, tree.PositionChild)
			}
			if err != nil {
				return err
			}
			if ev != nil {
				*events = append(*events, *ev)
			}
		}

		affected[n.ID] = true

		if len(entry.Children) > 0 {
			// Sibling moves above shifted intervals; recurse from a
			// fresh copy of this node.
			self, err := e.store.GetNode(ctx, tx, n.ID)
			if err != nil {
				return err
			}
			if err := e.mapEntries(ctx, tx, self, scope, entry.Children, affected, events); err != nil {
				return err
			}
		}
	}
	return nil
}

// pruneUnaffected deletes every node of the pruning scope whose id the
// payload did not touch. Victims are removed subtree-first one at a
// time so each deletion renumbers and the invariants hold throughout.
func (e *Engine) pruneUnaffected(ctx context.Context, tx *sql.Tx, anchorID int64, scope tree.Scope, affected map[int64]bool) error {
	for {
		victim, err := e.nextPruneVictim(ctx, tx, anchorID, scope, affected)
		if err != nil {
			return err
		}
		if victim == 0 {
			return nil
		}
		if err := e.deleteInTx(ctx, tx, victim); err != nil {
			return err
		}
	}
}

func (e *Engine) nextPruneVictim(ctx context.Context, tx *sql.Tx, anchorID int64, scope tree.Scope, affected map[int64]bool) (int64, error) {
	var candidates []*tree.Node
	var err error
	if anchorID != 0 {
		anchor, err := e.store.GetNode(ctx, tx, anchorID)
		if err != nil {
			return 0, err
		}
		candidates, err = e.store.Descendants(ctx, tx, anchor)
		if err != nil {
			return 0, err
		}
	} else {
		candidates, err = e.store.ScopeNodes(ctx, tx, scope)
		if err != nil {
			return 0, err
		}
	}

	for _, c := range candidates {
		if c.IsTombstoned() {
			continue
		}
		if !affected[c.ID] {
			return c.ID, nil
		}
	}
	return 0, nil
}
