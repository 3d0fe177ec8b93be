package engine

import (
	"context"
	"fmt"
	"strings"
)

// Validate checks index integrity. It never repairs, only detects:
// callers decide whether a failure warrants a Rebuild.
//
// Three independent checks must all pass:
//   - bounds: no NULL or inverted interval, no interval escaping its
//     parent's interval (tombstoned rows are excluded from containment);
//   - duplicates: no two nodes of one scope share a lft or a rgt value
//     (tombstoned rows keep their intervals and stay in this universe);
//   - roots: per scope partition, root intervals strictly increase.
func (e *Engine) Validate(ctx context.Context) (bool, error) {
	ok, err := e.validateBounds(ctx)
	if err != nil || !ok {
		return false, err
	}

	ok, err = e.validateDuplicates(ctx)
	if err != nil || !ok {
		return false, err
	}

	return e.validateRoots(ctx)
}

// validateBounds counts rows with a broken interval or a row escaping
// its parent, via a self-join against the parent row. Scope agreement
// with the parent is part of the check: a child filed under a parent in
// another partition is a violation, not a different tree.
func (e *Engine) validateBounds(ctx context.Context) (bool, error) {
	conds := []string{
		"n.lft IS NULL",
		"n.rgt IS NULL",
		"n.lft >= n.rgt",
		"(n.parent_id IS NOT NULL AND p.id IS NULL)",
		"(n.parent_id IS NOT NULL AND (n.lft <= p.lft OR n.rgt >= p.rgt))",
	}
	for _, col := range e.store.Options().ScopeColumns {
		conds = append(conds, fmt.Sprintf("(n.parent_id IS NOT NULL AND n.%s IS NOT p.%s)", col, col))
	}

	var count int
	err := e.store.DB().QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM nodes n
		LEFT JOIN nodes p ON n.parent_id = p.id
		WHERE n.deleted_at IS NULL
		  AND (`+strings.Join(conds, " OR ")+`)
	`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("validate bounds: %w", err)
	}
	return count == 0, nil
}

// validateDuplicates checks lft and rgt uniqueness per scope.
func (e *Engine) validateDuplicates(ctx context.Context) (bool, error) {
	scopeCols := e.store.Options().ScopeColumns

	for _, edge := range []string{"lft", "rgt"} {
		group := edge
		if len(scopeCols) > 0 {
			group = strings.Join(scopeCols, ", ") + ", " + edge
		}
		var count int
		err := e.store.DB().QueryRowContext(ctx, `
			SELECT COUNT(*) FROM (
				SELECT 1 FROM nodes
				GROUP BY `+group+`
				HAVING COUNT(*) > 1
			)
		`).Scan(&count)
		if err != nil {
			return false, fmt.Errorf("validate duplicates (%s): %w", edge, err)
		}
		if count > 0 {
			return false, nil
		}
	}
	return true, nil
}

// validateRoots walks each scope partition's roots in sibling order and
// requires every root interval to lie strictly beyond the previous
// root's right edge, the first compared against 0. Partitions are keyed
// by the literal scope tuple; NULL is a valid, distinct key.
func (e *Engine) validateRoots(ctx context.Context) (bool, error) {
	scopes, err := e.store.DistinctScopes(ctx, e.store.DB())
	if err != nil {
		return false, err
	}

	scopeCols := e.store.Options().ScopeColumns
	seen := map[string]bool{}
	for _, scope := range scopes {
		key := scope.Key(scopeCols)
		if seen[key] {
			continue
		}
		seen[key] = true

		roots, err := e.store.Roots(ctx, e.store.DB(), scope)
		if err != nil {
			return false, err
		}

		// Each root's whole interval must lie beyond the previous root's
		// right edge; anything less is an overlap.
		var max int64
		for _, root := range roots {
			if root.Left <= max || root.Right <= max {
				return false, nil
			}
			max = root.Right
		}
	}
	return true, nil
}
