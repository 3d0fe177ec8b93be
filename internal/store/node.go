package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/arbor/internal/tree"
)

// coreColumns are selected for every node, in scan order, before the
// configured scope and attribute columns.
var coreColumns = []string{"id", "parent_id", "lft", "rgt", "depth", "deleted_at"}

// attrColumns is AttrColumns plus the order column when one is
// configured, so sibling sort keys always ride along in Attrs.
func (s *Store) attrColumns() []string {
	cols := s.opts.AttrColumns
	if s.opts.OrderColumn == "" {
		return cols
	}
	for _, c := range cols {
		if c == s.opts.OrderColumn {
			return cols
		}
	}
	out := make([]string, len(cols), len(cols)+1)
	copy(out, cols)
	return append(out, s.opts.OrderColumn)
}

// columnList renders the SELECT list for nodes, optionally qualified
// with a table alias.
func (s *Store) columnList(alias string) string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	attrs := s.attrColumns()
	cols := make([]string, 0, len(coreColumns)+len(s.opts.ScopeColumns)+len(attrs))
	for _, c := range coreColumns {
		cols = append(cols, prefix+c)
	}
	for _, c := range s.opts.ScopeColumns {
		cols = append(cols, prefix+c)
	}
	for _, c := range attrs {
		cols = append(cols, prefix+c)
	}
	return strings.Join(cols, ", ")
}

// scanner is the common Scan surface of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanNode scans one row produced by columnList into a tree.Node.
func (s *Store) scanNode(sc scanner) (*tree.Node, error) {
	n := &tree.Node{
		Scope: tree.Scope{},
		Attrs: map[string]any{},
	}

	attrCols := s.attrColumns()
	scopeVals := make([]sql.NullString, len(s.opts.ScopeColumns))
	attrVals := make([]any, len(attrCols))

	dest := []any{&n.ID, &n.ParentID, &n.Left, &n.Right, &n.Depth, &n.DeletedAt}
	for i := range scopeVals {
		dest = append(dest, &scopeVals[i])
	}
	for i := range attrVals {
		dest = append(dest, &attrVals[i])
	}

	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	for i, col := range s.opts.ScopeColumns {
		if scopeVals[i].Valid {
			v := scopeVals[i].String
			n.Scope[col] = &v
		} else {
			n.Scope[col] = nil
		}
	}
	for i, col := range attrCols {
		if b, ok := attrVals[i].([]byte); ok {
			n.Attrs[col] = string(b)
		} else {
			n.Attrs[col] = attrVals[i]
		}
	}

	return n, nil
}

// scopeWhere builds the equality predicate for a scope tuple. An unset or
// nil column value matches IS NULL; NULL is a distinct partition key.
func (s *Store) scopeWhere(alias string, scope tree.Scope) (string, []any) {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	clauses := make([]string, 0, len(s.opts.ScopeColumns)+1)
	var args []any
	for _, col := range s.opts.ScopeColumns {
		v := scope[col]
		if v == nil {
			clauses = append(clauses, prefix+col+" IS NULL")
		} else {
			clauses = append(clauses, prefix+col+" = ?")
			args = append(args, *v)
		}
	}
	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

// orderExpr is the sibling ordering expression: the configured order
// column when set, lft otherwise.
func (s *Store) orderExpr(alias string) string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	if s.opts.OrderColumn != "" {
		return prefix + s.opts.OrderColumn
	}
	return prefix + "lft"
}

// GetNode retrieves a node by id, tombstoned or not.
// Returns tree.ErrNotFound if no such row exists.
func (s *Store) GetNode(ctx context.Context, q Querier, id int64) (*tree.Node, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+s.columnList("")+`
		FROM nodes
		WHERE id = ?
	`, id)

	n, err := s.scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get node %d: %w", id, tree.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %d: %w", id, err)
	}
	return n, nil
}

// MaxRight returns the largest rgt value in a scope, or 0 when the scope
// is empty. Tombstoned rows count: their intervals stay reserved.
func (s *Store) MaxRight(ctx context.Context, q Querier, scope tree.Scope) (int64, error) {
	where, args := s.scopeWhere("", scope)
	var max int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(rgt), 0) FROM nodes WHERE `+where,
		args...,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max right: %w", err)
	}
	return max, nil
}

// InsertNode appends a new leaf slot at the right edge of the scope:
// lft = max(rgt)+1, rgt = lft+1, depth 0, no parent. The engine relocates
// it afterwards when a parent was requested. A non-zero id preserves a
// caller-supplied primary key (the importer's locate-or-create path);
// zero lets SQLite assign one.
func (s *Store) InsertNode(ctx context.Context, q Querier, id int64, scope tree.Scope, attrs map[string]any) (*tree.Node, error) {
	if err := s.assertWritable(attrs); err != nil {
		return nil, fmt.Errorf("insert node: %w", err)
	}

	max, err := s.MaxRight(ctx, q, scope)
	if err != nil {
		return nil, fmt.Errorf("insert node: %w", err)
	}

	cols := []string{"parent_id", "lft", "rgt", "depth"}
	args := []any{nil, max + 1, max + 2, 0}
	if id != 0 {
		cols = append(cols, "id")
		args = append(args, id)
	}
	for _, col := range s.opts.ScopeColumns {
		cols = append(cols, col)
		if v := scope[col]; v != nil {
			args = append(args, *v)
		} else {
			args = append(args, nil)
		}
	}
	for col, v := range attrs {
		cols = append(cols, col)
		args = append(args, v)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	res, err := q.ExecContext(ctx, `
		INSERT INTO nodes (`+strings.Join(cols, ", ")+`)
		VALUES (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("insert node: %w", err)
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert node: last insert id: %w", err)
	}

	return s.GetNode(ctx, q, newID)
}

// UpdateAttrs writes attribute columns on an existing node. Subject to
// the attribute guard unless lifted via Unguarded.
func (s *Store) UpdateAttrs(ctx context.Context, q Querier, id int64, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	if err := s.assertWritable(attrs); err != nil {
		return fmt.Errorf("update attrs: %w", err)
	}

	sets := make([]string, 0, len(attrs))
	args := make([]any, 0, len(attrs)+1)
	for col, v := range attrs {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	args = append(args, id)

	res, err := q.ExecContext(ctx, `
		UPDATE nodes SET `+strings.Join(sets, ", ")+` WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("update attrs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attrs: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update attrs %d: %w", id, tree.ErrNotFound)
	}
	return nil
}

// collectNodes drains a query into a slice, returning an empty slice
// (not nil) when there are no rows.
func (s *Store) collectNodes(ctx context.Context, q Querier, query string, args ...any) ([]*tree.Node, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []*tree.Node{}
	for rows.Next() {
		n, err := s.scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}
