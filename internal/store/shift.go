package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/arbor/internal/tree"
)

// Boundary-shift helpers: the only writers of the lft/rgt/depth columns.
// Every function here requires a transaction started by Begin; none of
// them commit or roll back.

// LockRange claims every row of the scope whose interval falls within
// [a, d] before any boundary arithmetic is applied. On SQLite the BEGIN
// IMMEDIATE transaction already holds the database write lock, so this
// read doubles as a consistency check; on a row-locking backend the same
// statement would carry FOR UPDATE.
func (s *Store) LockRange(ctx context.Context, tx *sql.Tx, scope tree.Scope, a, d int64) error {
	where, args := s.scopeWhere("", scope)
	args = append(args, a, d, a, d)

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM nodes
		WHERE `+where+`
		  AND (lft BETWEEN ? AND ? OR rgt BETWEEN ? AND ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("lock range [%d,%d]: %w", a, d, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("lock range: scan: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock range: iterate: %w", err)
	}
	return nil
}

// LockTail claims every row of the scope with lft >= from. Deletion-time
// renumbering locks the tail before decrementing.
func (s *Store) LockTail(ctx context.Context, tx *sql.Tx, scope tree.Scope, from int64) error {
	where, args := s.scopeWhere("", scope)
	args = append(args, from)

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM nodes WHERE `+where+` AND lft >= ?
	`, args...)
	if err != nil {
		return fmt.Errorf("lock tail from %d: %w", from, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("lock tail: scan: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock tail: iterate: %w", err)
	}
	return nil
}

// ApplyBoundaryShift performs the single-pass piecewise interval update
// of a move. With sorted boundaries a <= b <= c <= d, every edge in
// [a, b] shifts by +(d-b), every edge in [c, d] shifts by +(a-c), and the
// moved node's parent_id is rewritten in the same statement so no reader
// of a later snapshot can observe a half-moved row.
//
// newParent carries the rewritten parent reference: nil for promotion to
// root, otherwise the target-derived parent id.
func (s *Store) ApplyBoundaryShift(ctx context.Context, tx *sql.Tx, scope tree.Scope, a, b, c, d, nodeID int64, newParent sql.NullInt64) error {
	where, scopeArgs := s.scopeWhere("", scope)

	shiftAB := d - b
	shiftCD := a - c

	var parentVal any
	if newParent.Valid {
		parentVal = newParent.Int64
	}

	args := []any{
		a, b, shiftAB, c, d, shiftCD, // lft CASE
		a, b, shiftAB, c, d, shiftCD, // rgt CASE
		nodeID, parentVal, // parent CASE
	}
	args = append(args, scopeArgs...)
	args = append(args, a, d, a, d)

	_, err := tx.ExecContext(ctx, `
		UPDATE nodes SET
			lft = CASE
				WHEN lft BETWEEN ? AND ? THEN lft + ?
				WHEN lft BETWEEN ? AND ? THEN lft + ?
				ELSE lft END,
			rgt = CASE
				WHEN rgt BETWEEN ? AND ? THEN rgt + ?
				WHEN rgt BETWEEN ? AND ? THEN rgt + ?
				ELSE rgt END,
			parent_id = CASE WHEN id = ? THEN ? ELSE parent_id END
		WHERE `+where+`
		  AND (lft BETWEEN ? AND ? OR rgt BETWEEN ? AND ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("boundary shift [%d,%d,%d,%d]: %w", a, b, c, d, err)
	}
	return nil
}

// CloseGap renumbers everything to the right of a removed interval
// [lft, rgt]: edges past rgt are decremented by the removed width.
func (s *Store) CloseGap(ctx context.Context, tx *sql.Tx, scope tree.Scope, rgt, width int64) error {
	where, scopeArgs := s.scopeWhere("", scope)

	args := append([]any{width}, scopeArgs...)
	args = append(args, rgt)
	if _, err := tx.ExecContext(ctx, `
		UPDATE nodes SET lft = lft - ? WHERE `+where+` AND lft > ?
	`, args...); err != nil {
		return fmt.Errorf("close gap (lft): %w", err)
	}

	args = append([]any{width}, scopeArgs...)
	args = append(args, rgt)
	if _, err := tx.ExecContext(ctx, `
		UPDATE nodes SET rgt = rgt - ? WHERE `+where+` AND rgt > ?
	`, args...); err != nil {
		return fmt.Errorf("close gap (rgt): %w", err)
	}
	return nil
}

// ShiftDepth applies a uniform depth delta to the strict descendants of
// the interval [lft, rgt]. Relative nesting inside a relocated subtree is
// unchanged, so one bulk increment covers every descendant.
func (s *Store) ShiftDepth(ctx context.Context, tx *sql.Tx, scope tree.Scope, lft, rgt, delta int64) error {
	if delta == 0 {
		return nil
	}
	where, scopeArgs := s.scopeWhere("", scope)
	args := append([]any{delta}, scopeArgs...)
	args = append(args, lft, rgt)

	_, err := tx.ExecContext(ctx, `
		UPDATE nodes SET depth = depth + ?
		WHERE `+where+` AND lft > ? AND rgt < ?
	`, args...)
	if err != nil {
		return fmt.Errorf("shift depth: %w", err)
	}
	return nil
}

// SetDepth writes one node's depth.
func (s *Store) SetDepth(ctx context.Context, tx *sql.Tx, id, depth int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET depth = ? WHERE id = ?`, depth, id); err != nil {
		return fmt.Errorf("set depth: %w", err)
	}
	return nil
}

// WriteIndex persists rebuilt lft/rgt/depth values for one node.
// Only the rebuilder calls this.
func (s *Store) WriteIndex(ctx context.Context, tx *sql.Tx, id, lft, rgt, depth int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE nodes SET lft = ?, rgt = ?, depth = ? WHERE id = ?
	`, lft, rgt, depth, id)
	if err != nil {
		return fmt.Errorf("write index for %d: %w", id, err)
	}
	return nil
}

// DeleteSubtree physically removes every row of the scope whose interval
// lies within [lft, rgt]. parent_id cascades cover intra-statement
// ordering.
func (s *Store) DeleteSubtree(ctx context.Context, tx *sql.Tx, scope tree.Scope, lft, rgt int64) error {
	where, args := s.scopeWhere("", scope)
	args = append(args, lft, rgt)

	_, err := tx.ExecContext(ctx, `
		DELETE FROM nodes WHERE `+where+` AND lft BETWEEN ? AND ?
	`, args...)
	if err != nil {
		return fmt.Errorf("delete subtree [%d,%d]: %w", lft, rgt, err)
	}
	return nil
}

// TombstoneSubtree marks every live row of the interval deleted without
// touching its boundaries; intervals are retained for restoration.
func (s *Store) TombstoneSubtree(ctx context.Context, tx *sql.Tx, scope tree.Scope, lft, rgt int64, at string) error {
	where, args := s.scopeWhere("", scope)
	args = append([]any{at}, args...)
	args = append(args, lft, rgt)

	_, err := tx.ExecContext(ctx, `
		UPDATE nodes SET deleted_at = ?
		WHERE `+where+` AND lft BETWEEN ? AND ? AND deleted_at IS NULL
	`, args...)
	if err != nil {
		return fmt.Errorf("tombstone subtree [%d,%d]: %w", lft, rgt, err)
	}
	return nil
}

// RestoreSubtree clears the tombstones of every row in the interval.
func (s *Store) RestoreSubtree(ctx context.Context, tx *sql.Tx, scope tree.Scope, lft, rgt int64) error {
	where, args := s.scopeWhere("", scope)
	args = append(args, lft, rgt)

	_, err := tx.ExecContext(ctx, `
		UPDATE nodes SET deleted_at = NULL
		WHERE `+where+` AND lft BETWEEN ? AND ? AND deleted_at IS NOT NULL
	`, args...)
	if err != nil {
		return fmt.Errorf("restore subtree [%d,%d]: %w", lft, rgt, err)
	}
	return nil
}
