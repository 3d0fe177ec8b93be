package engine

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arbor/internal/store"
	"github.com/roach88/arbor/internal/tree"
)

func TestMove_RightOfSibling(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	// D [3,4] right-of F [7,8]: the sibling block E,F slides left into
	// the vacated slots, the enclosing intervals of A and C are fixed.
	d, err := e.Move(ctx, ids["D"], ids["F"], tree.PositionRight)
	require.NoError(t, err)
	assert.Equal(t, int64(7), d.Left)
	assert.Equal(t, int64(8), d.Right)
	assert.Equal(t, ids["C"], d.ParentID.Int64)

	got := snapshot(t, e)
	want := map[int64]placement{
		ids["A"]: {Left: 1, Right: 10, Depth: 0},
		ids["C"]: {Left: 2, Right: 9, Depth: 1, Parent: ids["A"]},
		ids["E"]: {Left: 3, Right: 4, Depth: 2, Parent: ids["C"]},
		ids["F"]: {Left: 5, Right: 6, Depth: 2, Parent: ids["C"]},
		ids["D"]: {Left: 7, Right: 8, Depth: 2, Parent: ids["C"]},
		ids["B"]: {Left: 11, Right: 12, Depth: 0},
	}
	assert.Equal(t, want, got)
}

func TestMove_LeftOfSibling(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	f, err := e.Move(ctx, ids["F"], ids["D"], tree.PositionLeft)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.Left)
	assert.Equal(t, int64(4), f.Right)

	got := snapshot(t, e)
	assert.Equal(t, placement{Left: 5, Right: 6, Depth: 2, Parent: ids["C"]}, got[ids["D"]])
	assert.Equal(t, placement{Left: 7, Right: 8, Depth: 2, Parent: ids["C"]}, got[ids["E"]])
}

func TestMove_SubtreeTravelsWhole(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	// C carries D, E, F with it under B; relative order inside the block
	// is preserved and depths shift by a uniform delta.
	c, err := e.Move(ctx, ids["C"], ids["B"], tree.PositionChild)
	require.NoError(t, err)
	assert.Equal(t, ids["B"], c.ParentID.Int64)
	assert.Equal(t, int64(1), c.Depth)

	got := snapshot(t, e)
	want := map[int64]placement{
		ids["A"]: {Left: 1, Right: 2, Depth: 0},
		ids["B"]: {Left: 3, Right: 12, Depth: 0},
		ids["C"]: {Left: 4, Right: 11, Depth: 1, Parent: ids["B"]},
		ids["D"]: {Left: 5, Right: 6, Depth: 2, Parent: ids["C"]},
		ids["E"]: {Left: 7, Right: 8, Depth: 2, Parent: ids["C"]},
		ids["F"]: {Left: 9, Right: 10, Depth: 2, Parent: ids["C"]},
	}
	assert.Equal(t, want, got)

	ok, err := e.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMove_RootPromotion(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	d, err := e.Move(ctx, ids["D"], 0, tree.PositionRoot)
	require.NoError(t, err)
	assert.True(t, d.IsRoot())
	assert.Equal(t, int64(0), d.Depth)

	got := snapshot(t, e)
	want := map[int64]placement{
		ids["A"]: {Left: 1, Right: 8, Depth: 0},
		ids["C"]: {Left: 2, Right: 7, Depth: 1, Parent: ids["A"]},
		ids["E"]: {Left: 3, Right: 4, Depth: 2, Parent: ids["C"]},
		ids["F"]: {Left: 5, Right: 6, Depth: 2, Parent: ids["C"]},
		ids["B"]: {Left: 9, Right: 10, Depth: 0},
		ids["D"]: {Left: 11, Right: 12, Depth: 0},
	}
	assert.Equal(t, want, got)
}

func TestMove_DepthPropagation(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	// Promoting C lifts D, E, F by the same delta.
	c, err := e.Move(ctx, ids["C"], 0, tree.PositionRoot)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Depth)

	got := snapshot(t, e)
	for _, label := range []string{"D", "E", "F"} {
		assert.Equal(t, int64(1), got[ids[label]].Depth, "depth of %s", label)
	}
}

func TestMove_NoOp(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, store.Options{}, rec)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	before := snapshot(t, e)
	rec.moving, rec.moved = nil, nil

	// F is already the last child of C: nothing to write, but the
	// notification pair still fires exactly once.
	_, err := e.Move(ctx, ids["F"], ids["C"], tree.PositionChild)
	require.NoError(t, err)

	assert.Equal(t, before, snapshot(t, e))
	assert.Len(t, rec.moving, 1)
	assert.Len(t, rec.moved, 1)
	assert.Equal(t, rec.moving[0].OpID, rec.moved[0].OpID)

	// Same for a sibling move that resolves to the current slot.
	rec.moving, rec.moved = nil, nil
	_, err = e.Move(ctx, ids["D"], ids["E"], tree.PositionLeft)
	require.NoError(t, err)
	assert.Equal(t, before, snapshot(t, e))
	assert.Len(t, rec.moved, 1)
}

func TestMove_Veto(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, store.Options{}, rec)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	before := snapshot(t, e)
	rec.veto = true
	rec.moving, rec.moved = nil, nil

	d, err := e.Move(ctx, ids["D"], ids["F"], tree.PositionRight)
	require.NoError(t, err)

	// Vetoed: no error, node unchanged, no Moved.
	assert.Equal(t, int64(3), d.Left)
	assert.Equal(t, before, snapshot(t, e))
	assert.Len(t, rec.moving, 1)
	assert.Empty(t, rec.moved)
}

func TestMove_AdjacentSiblings(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	eNode, err := e.MoveLeft(ctx, ids["E"])
	require.NoError(t, err)
	assert.Equal(t, int64(3), eNode.Left)

	got := snapshot(t, e)
	assert.Equal(t, placement{Left: 5, Right: 6, Depth: 2, Parent: ids["C"]}, got[ids["D"]])

	// Back to the right.
	eNode, err = e.MoveRight(ctx, ids["E"])
	require.NoError(t, err)
	assert.Equal(t, int64(5), eNode.Left)

	// No further neighbor in that direction.
	_, err = e.MoveLeft(ctx, ids["D"])
	require.Error(t, err)
	assert.Equal(t, tree.ErrCodeUnresolvedTarget, tree.MoveErrorCodeOf(err))
}

func TestMove_ImpossibleMoves(t *testing.T) {
	e := newTestEngine(t, store.Options{ScopeColumns: []string{"org"}}, nil)
	acme := tree.Scope{"org": tree.ScopeValue("acme")}
	ids := buildFixture(t, e, acme)
	ctx := context.Background()

	other, err := e.Create(ctx, 0, tree.Scope{"org": tree.ScopeValue("other")}, nil)
	require.NoError(t, err)

	before := snapshot(t, e)

	cases := []struct {
		name     string
		node     int64
		target   int64
		position tree.Position
		code     tree.MoveErrorCode
	}{
		{"unsaved node", 0, ids["B"], tree.PositionChild, tree.ErrCodeUnsavedNode},
		{"invalid position", ids["D"], ids["B"], tree.Position("sideways"), tree.ErrCodeInvalidPosition},
		{"missing target", ids["D"], 9999, tree.PositionChild, tree.ErrCodeUnresolvedTarget},
		{"zero target", ids["D"], 0, tree.PositionChild, tree.ErrCodeUnresolvedTarget},
		{"self target", ids["D"], ids["D"], tree.PositionLeft, tree.ErrCodeSelfTarget},
		{"inside own subtree", ids["C"], ids["E"], tree.PositionChild, tree.ErrCodeInsideSubtree},
		{"cross scope", ids["D"], other.ID, tree.PositionChild, tree.ErrCodeScopeMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Move(ctx, tc.node, tc.target, tc.position)
			require.Error(t, err)
			assert.True(t, tree.IsImpossibleMove(err))
			assert.Equal(t, tc.code, tree.MoveErrorCodeOf(err))
		})
	}

	// Every rejection leaves the store untouched.
	assert.Equal(t, before, snapshot(t, e))
}

func TestMove_CrossTreeWithinScope(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ids := buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	// Moves across trees of the same scope are ordinary moves.
	d, err := e.Move(ctx, ids["D"], ids["B"], tree.PositionChild)
	require.NoError(t, err)
	assert.Equal(t, ids["B"], d.ParentID.Int64)
	assert.Equal(t, int64(1), d.Depth)

	ok, err := e.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMove_RandomizedSweep(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(7))

	// Grow a random forest.
	var ids []int64
	for i := 0; i < 20; i++ {
		var parent int64
		if len(ids) > 0 && rng.Intn(3) > 0 {
			parent = ids[rng.Intn(len(ids))]
		}
		n, err := e.Create(ctx, parent, tree.Scope{}, nil)
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	positions := []tree.Position{
		tree.PositionChild, tree.PositionLeft, tree.PositionRight, tree.PositionRoot,
	}

	// Shake it: rejected moves are expected, anything else must keep the
	// index valid.
	for i := 0; i < 100; i++ {
		node := ids[rng.Intn(len(ids))]
		target := ids[rng.Intn(len(ids))]
		position := positions[rng.Intn(len(positions))]

		_, err := e.Move(ctx, node, target, position)
		if err != nil {
			require.True(t, tree.IsImpossibleMove(err), "unexpected error: %v", err)
			continue
		}

		ok, err := e.Validate(ctx)
		require.NoError(t, err)
		require.True(t, ok, "index invalid after move %d (node=%d target=%d %s)", i, node, target, position)
	}
}
