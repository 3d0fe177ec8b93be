package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arbor/internal/store"
	"github.com/roach88/arbor/internal/tree"
)

func TestRebuild_RepairsScrambledIntervals(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	want := snapshot(t, e)

	// Corrupt every derived column; parent pointers stay intact.
	_, err := e.store.DB().Exec("UPDATE nodes SET lft = id * 100, rgt = id * 100 + 1, depth = 9")
	require.NoError(t, err)

	ok, err := e.Validate(ctx)
	require.NoError(t, err)
	require.False(t, ok, "corrupted index should fail validation")

	require.NoError(t, e.Rebuild(ctx))

	// Sibling order follows the stored (scrambled) lft, which here is id
	// order, the same order the fixture was created in.
	assert.Equal(t, want, snapshot(t, e))

	ok, err = e.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRebuild_Idempotent(t *testing.T) {
	e := newTestEngine(t, store.Options{}, nil)
	buildFixture(t, e, tree.Scope{})
	ctx := context.Background()

	require.NoError(t, e.Rebuild(ctx))
	first := snapshot(t, e)

	require.NoError(t, e.Rebuild(ctx))
	assert.Equal(t, first, snapshot(t, e))
}

func TestRebuild_PerScopeNumbering(t *testing.T) {
	e := newTestEngine(t, store.Options{ScopeColumns: []string{"org"}}, nil)
	ctx := context.Background()

	acme := buildFixture(t, e, tree.Scope{"org": tree.ScopeValue("acme")})
	zeta := buildFixture(t, e, tree.Scope{"org": tree.ScopeValue("zeta")})

	require.NoError(t, e.Rebuild(ctx))

	got := snapshot(t, e)
	// Both partitions number from 1 independently.
	assert.Equal(t, int64(1), got[acme["A"]].Left)
	assert.Equal(t, int64(1), got[zeta["A"]].Left)
	assert.Equal(t, int64(11), got[acme["B"]].Left)
	assert.Equal(t, int64(11), got[zeta["B"]].Left)
}

func TestRebuildScope_LeavesOtherScopesAlone(t *testing.T) {
	e := newTestEngine(t, store.Options{ScopeColumns: []string{"org"}}, nil)
	ctx := context.Background()

	acmeScope := tree.Scope{"org": tree.ScopeValue("acme")}
	acme := buildFixture(t, e, acmeScope)
	zeta := buildFixture(t, e, tree.Scope{"org": tree.ScopeValue("zeta")})

	before := snapshot(t, e)

	// Scramble acme only, then rebuild acme only.
	_, err := e.store.DB().Exec(
		"UPDATE nodes SET lft = id * 100, rgt = id * 100 + 1 WHERE org = 'acme'")
	require.NoError(t, err)

	require.NoError(t, e.RebuildScope(ctx, acmeScope))

	got := snapshot(t, e)
	for label, id := range zeta {
		assert.Equal(t, before[id], got[id], "zeta %s must be untouched", label)
	}
	for label, id := range acme {
		assert.Equal(t, before[id], got[id], "acme %s must be repaired", label)
	}
}

func TestRebuild_OrderColumn(t *testing.T) {
	e := newTestEngine(t, store.Options{OrderColumn: "rank"}, nil)
	ctx := context.Background()

	root, err := e.Create(ctx, 0, tree.Scope{}, nil)
	require.NoError(t, err)

	// Created in rank order 3, 1, 2: intervals follow creation order
	// until a rebuild sorts siblings by rank.
	var kids []int64
	for _, rank := range []int{3, 1, 2} {
		n, err := e.Create(ctx, root.ID, tree.Scope{}, map[string]any{"rank": rank})
		require.NoError(t, err)
		kids = append(kids, n.ID)
	}

	require.NoError(t, e.Rebuild(ctx))

	got := snapshot(t, e)
	// rank 1 (second created) first, then rank 2, then rank 3.
	assert.Equal(t, int64(2), got[kids[1]].Left)
	assert.Equal(t, int64(4), got[kids[2]].Left)
	assert.Equal(t, int64(6), got[kids[0]].Left)
}

func TestRebuild_FailsOnParentOutsideScope(t *testing.T) {
	e := newTestEngine(t, store.Options{ScopeColumns: []string{"org"}}, nil)
	ctx := context.Background()

	acme := buildFixture(t, e, tree.Scope{"org": tree.ScopeValue("acme")})

	// File D under acme's C but in another partition.
	_, err := e.store.DB().Exec(
		"UPDATE nodes SET org = 'zeta' WHERE id = ?", acme["D"])
	require.NoError(t, err)

	err = e.Rebuild(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside scope")
}
