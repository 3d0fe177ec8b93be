package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arbor/internal/store"
	"github.com/roach88/arbor/internal/tree"
)

// recorder captures notifications and optionally vetoes every move.
type recorder struct {
	veto   bool
	moving []tree.MoveEvent
	moved  []tree.MoveEvent
}

func (r *recorder) Moving(_ context.Context, ev tree.MoveEvent) bool {
	r.moving = append(r.moving, ev)
	return !r.veto
}

func (r *recorder) Moved(_ context.Context, ev tree.MoveEvent) {
	r.moved = append(r.moved, ev)
}

func newTestEngine(t *testing.T, opts store.Options, notifier tree.Notifier) *Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, notifier)
}

// placement is one node's derived state, for whole-forest assertions.
type placement struct {
	Left, Right, Depth int64
	Parent             int64 // 0 = no parent
}

func snapshot(t *testing.T, e *Engine) map[int64]placement {
	t.Helper()
	rows, err := e.store.DB().Query("SELECT id, parent_id, lft, rgt, depth FROM nodes")
	require.NoError(t, err)
	defer rows.Close()

	out := map[int64]placement{}
	for rows.Next() {
		var id, lft, rgt, depth int64
		var parent *int64
		require.NoError(t, rows.Scan(&id, &parent, &lft, &rgt, &depth))
		p := placement{Left: lft, Right: rgt, Depth: depth}
		if parent != nil {
			p.Parent = *parent
		}
		out[id] = p
	}
	require.NoError(t, rows.Err())
	return out
}

// buildFixture creates the canonical two-tree forest:
//
//	A[1,10] > C[2,9] > D[3,4], E[5,6], F[7,8]
//	B[11,12]
//
// and returns ids by label.
func buildFixture(t *testing.T, e *Engine, scope tree.Scope) map[string]int64 {
	t.Helper()
	ctx := context.Background()

	a, err := e.Create(ctx, 0, scope, nil)
	require.NoError(t, err)
	c, err := e.Create(ctx, a.ID, scope, nil)
	require.NoError(t, err)
	d, err := e.Create(ctx, c.ID, scope, nil)
	require.NoError(t, err)
	eNode, err := e.Create(ctx, c.ID, scope, nil)
	require.NoError(t, err)
	f, err := e.Create(ctx, c.ID, scope, nil)
	require.NoError(t, err)
	b, err := e.Create(ctx, 0, scope, nil)
	require.NoError(t, err)

	return map[string]int64{
		"A": a.ID, "B": b.ID, "C": c.ID, "D": d.ID, "E": eNode.ID, "F": f.ID,
	}
}

func TestCreate_AssignsIntervalAtCreation(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ctx := context.Background()

	root, err := e.Create(ctx, 0, tree.Scope{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), root.Left)
	assert.Equal(t, int64(2), root.Right)
	assert.Equal(t, int64(0), root.Depth)
	assert.True(t, root.IsRoot())

	child, err := e.Create(ctx, root.ID, tree.Scope{}, nil)
	require.NoError(t, err)
	assert.Equal(t, root.ID, child.ParentID.Int64)
	assert.Equal(t, int64(2), child.Left)
	assert.Equal(t, int64(3), child.Right)
	assert.Equal(t, int64(1), child.Depth)

	reloaded, err := e.Node(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.Left)
	assert.Equal(t, int64(4), reloaded.Right)
}

func TestCreate_FixtureShape(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})

	got := snapshot(t, e)
	want := map[int64]placement{
		ids["A"]: {Left: 1, Right: 10, Depth: 0},
		ids["C"]: {Left: 2, Right: 9, Depth: 1, Parent: ids["A"]},
		ids["D"]: {Left: 3, Right: 4, Depth: 2, Parent: ids["C"]},
		ids["E"]: {Left: 5, Right: 6, Depth: 2, Parent: ids["C"]},
		ids["F"]: {Left: 7, Right: 8, Depth: 2, Parent: ids["C"]},
		ids["B"]: {Left: 11, Right: 12, Depth: 0},
	}
	assert.Equal(t, want, got)
}

func TestCreate_AdoptsParentScope(t *testing.T) {
	e := newTestEngine(t, store.Options{ScopeColumns: []string{"org"}}, nil)
	ctx := context.Background()

	acme := tree.Scope{"org": tree.ScopeValue("acme")}
	parent, err := e.Create(ctx, 0, acme, nil)
	require.NoError(t, err)

	// The caller's scope is ignored in favor of the parent's.
	child, err := e.Create(ctx, parent.ID, tree.Scope{"org": tree.ScopeValue("other")}, nil)
	require.NoError(t, err)
	assert.True(t, child.Scope.Equal(acme, []string{"org"}))
}

func TestSetParent(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	// Reparent D under B.
	d, err := e.SetParent(ctx, ids["D"], ids["B"])
	require.NoError(t, err)
	assert.Equal(t, ids["B"], d.ParentID.Int64)
	assert.Equal(t, int64(1), d.Depth)

	ok, err := e.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Promote D to root.
	d, err = e.SetParent(ctx, ids["D"], 0)
	require.NoError(t, err)
	assert.True(t, d.IsRoot())
	assert.Equal(t, int64(0), d.Depth)

	ok, err = e.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
