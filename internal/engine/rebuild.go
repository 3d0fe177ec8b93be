package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/arbor/internal/tree"
)

// Rebuild recomputes lft, rgt and depth for every scope of the forest
// from parent pointers alone, discarding stored interval values. It runs
// in one all-or-nothing transaction: a failure anywhere leaves the prior
// index state intact.
//
// Applied twice in a row with unchanged parent pointers it yields
// identical intervals both times.
func (e *Engine) Rebuild(ctx context.Context) error {
	scopes, err := e.store.DistinctScopes(ctx, e.store.DB())
	if err != nil {
		return err
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, scope := range scopes {
		if err := e.rebuildScopeInTx(ctx, tx, scope); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RebuildScope recomputes the index for a single scope partition.
func (e *Engine) RebuildScope(ctx context.Context, scope tree.Scope) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.rebuildScopeInTx(ctx, tx, scope); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) rebuildScopeInTx(ctx context.Context, tx *sql.Tx, scope tree.Scope) error {
	// Loaded in (lft, rgt, id) order: roots are discovered in stored
	// order, stable even when intervals are stale.
	nodes, err := e.store.ScopeNodes(ctx, tx, scope)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}

	children := make(map[int64][]*tree.Node)
	var roots []*tree.Node
	byID := make(map[int64]*tree.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, n := range nodes {
		if !n.ParentID.Valid {
			roots = append(roots, n)
			continue
		}
		if _, ok := byID[n.ParentID.Int64]; !ok {
			return fmt.Errorf("rebuild: node %d references parent %d outside scope", n.ID, n.ParentID.Int64)
		}
		children[n.ParentID.Int64] = append(children[n.ParentID.Int64], n)
	}

	orderCol := e.store.Options().OrderColumn
	for _, siblings := range children {
		sortSiblings(siblings, orderCol)
	}

	var counter int64
	var walkErr error
	var walk func(n *tree.Node, depth int64)
	walk = func(n *tree.Node, depth int64) {
		if walkErr != nil {
			return
		}
		counter++
		lft := counter
		for _, child := range children[n.ID] {
			walk(child, depth+1)
		}
		counter++
		rgt := counter

		if n.Left != lft || n.Right != rgt || n.Depth != depth {
			if err := e.store.WriteIndex(ctx, tx, n.ID, lft, rgt, depth); err != nil {
				walkErr = err
			}
		}
	}

	for _, root := range roots {
		walk(root, 0)
	}
	return walkErr
}

// sortSiblings orders children by the configured order column when one
// exists, then by interval, then by id for determinism when intervals
// are missing or stale.
func sortSiblings(siblings []*tree.Node, orderCol string) {
	sort.SliceStable(siblings, func(i, j int) bool {
		a, b := siblings[i], siblings[j]
		if orderCol != "" {
			if c := compareAttr(a.Attrs[orderCol], b.Attrs[orderCol]); c != 0 {
				return c < 0
			}
		}
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		if a.Right != b.Right {
			return a.Right < b.Right
		}
		return a.ID < b.ID
	})
}

// compareAttr compares two order-column values. SQLite hands back int64,
// float64, string or nil; nil sorts first, mixed types compare by their
// string form.
func compareAttr(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if ai, aok := a.(int64); aok {
		if bi, bok := b.(int64); bok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			}
			return 0
		}
	}
	if af, aok := a.(float64); aok {
		if bf, bok := b.(float64); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
