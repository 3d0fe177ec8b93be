package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/arbor/internal/tree"
)

// Derived-relationship queries. These are pure read-side range filters
// over an already-valid index: they assume the nested-set invariants hold
// and are not responsible for maintaining them. Tombstoned rows are
// excluded everywhere.

// AncestorsAndSelf returns the chain from the root down to n: every node
// in n's scope whose interval contains n's left edge, ordered by lft.
func (s *Store) AncestorsAndSelf(ctx context.Context, q Querier, n *tree.Node) ([]*tree.Node, error) {
	where, args := s.scopeWhere("", n.Scope)
	args = append(args, n.Left, n.Left)
	return s.collectNodes(ctx, q, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE `+where+` AND deleted_at IS NULL
		  AND lft <= ? AND rgt >= ?
		ORDER BY lft ASC
	`, args...)
}

// Ancestors returns AncestorsAndSelf without n itself.
func (s *Store) Ancestors(ctx context.Context, q Querier, n *tree.Node) ([]*tree.Node, error) {
	all, err := s.AncestorsAndSelf(ctx, q, n)
	if err != nil {
		return nil, err
	}
	out := []*tree.Node{}
	for _, m := range all {
		if m.ID != n.ID {
			out = append(out, m)
		}
	}
	return out, nil
}

// DescendantsAndSelf returns n's subtree in pre-order:
// lft >= n.lft AND lft < n.rgt.
func (s *Store) DescendantsAndSelf(ctx context.Context, q Querier, n *tree.Node) ([]*tree.Node, error) {
	where, args := s.scopeWhere("", n.Scope)
	args = append(args, n.Left, n.Right)
	return s.collectNodes(ctx, q, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE `+where+` AND deleted_at IS NULL
		  AND lft >= ? AND lft < ?
		ORDER BY lft ASC
	`, args...)
}

// Descendants returns DescendantsAndSelf without n itself.
func (s *Store) Descendants(ctx context.Context, q Querier, n *tree.Node) ([]*tree.Node, error) {
	all, err := s.DescendantsAndSelf(ctx, q, n)
	if err != nil {
		return nil, err
	}
	out := []*tree.Node{}
	for _, m := range all {
		if m.ID != n.ID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Children returns n's immediate children in sibling order.
func (s *Store) Children(ctx context.Context, q Querier, n *tree.Node) ([]*tree.Node, error) {
	return s.collectNodes(ctx, q, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE parent_id = ? AND deleted_at IS NULL
		ORDER BY `+s.orderExpr("")+` ASC, lft ASC
	`, n.ID)
}

// SiblingsAndSelf returns the nodes sharing n's parent (roots of n's
// scope when n is a root), in sibling order.
func (s *Store) SiblingsAndSelf(ctx context.Context, q Querier, n *tree.Node) ([]*tree.Node, error) {
	if n.IsRoot() {
		return s.Roots(ctx, q, n.Scope)
	}
	return s.collectNodes(ctx, q, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE parent_id = ? AND deleted_at IS NULL
		ORDER BY `+s.orderExpr("")+` ASC, lft ASC
	`, n.ParentID.Int64)
}

// LeftSibling returns the nearest sibling to the left of n, or
// tree.ErrNotFound when no further sibling exists in that direction.
func (s *Store) LeftSibling(ctx context.Context, q Querier, n *tree.Node) (*tree.Node, error) {
	return s.adjacentSibling(ctx, q, n, "lft < ?", "lft DESC")
}

// RightSibling returns the nearest sibling to the right of n, or
// tree.ErrNotFound when no further sibling exists in that direction.
func (s *Store) RightSibling(ctx context.Context, q Querier, n *tree.Node) (*tree.Node, error) {
	return s.adjacentSibling(ctx, q, n, "lft > ?", "lft ASC")
}

func (s *Store) adjacentSibling(ctx context.Context, q Querier, n *tree.Node, cmp, order string) (*tree.Node, error) {
	var parentCond string
	var args []any
	if n.IsRoot() {
		where, scopeArgs := s.scopeWhere("", n.Scope)
		parentCond = "parent_id IS NULL AND " + where
		args = scopeArgs
	} else {
		parentCond = "parent_id = ?"
		args = []any{n.ParentID.Int64}
	}
	args = append(args, n.Left)

	row := q.QueryRowContext(ctx, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE `+parentCond+` AND deleted_at IS NULL AND `+cmp+`
		ORDER BY `+order+`
		LIMIT 1
	`, args...)

	sib, err := s.scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tree.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("adjacent sibling: %w", err)
	}
	return sib, nil
}

// Roots returns the root nodes of a scope in sibling order.
func (s *Store) Roots(ctx context.Context, q Querier, scope tree.Scope) ([]*tree.Node, error) {
	where, args := s.scopeWhere("", scope)
	return s.collectNodes(ctx, q, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE parent_id IS NULL AND deleted_at IS NULL AND `+where+`
		ORDER BY `+s.orderExpr("")+` ASC, lft ASC
	`, args...)
}

// Leaves returns every childless node of a scope (rgt - lft = 1).
func (s *Store) Leaves(ctx context.Context, q Querier, scope tree.Scope) ([]*tree.Node, error) {
	where, args := s.scopeWhere("", scope)
	return s.collectNodes(ctx, q, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE `+where+` AND deleted_at IS NULL
		  AND rgt - lft = 1
		ORDER BY lft ASC
	`, args...)
}

// Trunks returns every node of a scope that has a parent and is not a
// leaf.
func (s *Store) Trunks(ctx context.Context, q Querier, scope tree.Scope) ([]*tree.Node, error) {
	where, args := s.scopeWhere("", scope)
	return s.collectNodes(ctx, q, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE `+where+` AND deleted_at IS NULL
		  AND parent_id IS NOT NULL AND rgt - lft <> 1
		ORDER BY lft ASC
	`, args...)
}

// DistinctScopes enumerates every scope tuple present in the table,
// tombstones included, so maintenance passes can cover stale partitions.
func (s *Store) DistinctScopes(ctx context.Context, q Querier) ([]tree.Scope, error) {
	if len(s.opts.ScopeColumns) == 0 {
		return []tree.Scope{{}}, nil
	}

	cols := ""
	for i, c := range s.opts.ScopeColumns {
		if i > 0 {
			cols += ", "
		}
		cols += c
	}

	rows, err := q.QueryContext(ctx, `SELECT DISTINCT `+cols+` FROM nodes ORDER BY `+cols)
	if err != nil {
		return nil, fmt.Errorf("distinct scopes: %w", err)
	}
	defer rows.Close()

	scopes := []tree.Scope{}
	for rows.Next() {
		vals := make([]sql.NullString, len(s.opts.ScopeColumns))
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scope := tree.Scope{}
		for i, col := range s.opts.ScopeColumns {
			if vals[i].Valid {
				v := vals[i].String
				scope[col] = &v
			} else {
				scope[col] = nil
			}
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return scopes, nil
}

// ScopeNodes returns every node of a scope ordered by lft, rgt, id,
// tombstones included: maintenance passes (rebuild) must renumber stale
// rows too, or their retained intervals would collide.
func (s *Store) ScopeNodes(ctx context.Context, q Querier, scope tree.Scope) ([]*tree.Node, error) {
	where, args := s.scopeWhere("", scope)
	return s.collectNodes(ctx, q, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE `+where+`
		ORDER BY lft ASC, rgt ASC, id ASC
	`, args...)
}
