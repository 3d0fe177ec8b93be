package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/arbor/internal/tree"
)

func TestInsertNode_AppendsAtRightEdge(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	first, err := s.InsertNode(ctx, s.db, 0, tree.Scope{}, nil)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if first.Left != 1 || first.Right != 2 || first.Depth != 0 {
		t.Errorf("first node = [%d,%d] depth %d, want [1,2] depth 0", first.Left, first.Right, first.Depth)
	}
	if first.ParentID.Valid {
		t.Error("new node must have no parent")
	}

	second, err := s.InsertNode(ctx, s.db, 0, tree.Scope{}, nil)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if second.Left != 3 || second.Right != 4 {
		t.Errorf("second node = [%d,%d], want [3,4]", second.Left, second.Right)
	}
}

func TestInsertNode_PreservesExplicitID(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	n, err := s.InsertNode(ctx, s.db, 42, tree.Scope{}, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n.ID != 42 {
		t.Errorf("id = %d, want 42", n.ID)
	}
}

func TestInsertNode_ScopesAreIndependent(t *testing.T) {
	s := openTestStore(t, Options{ScopeColumns: []string{"org"}})
	ctx := context.Background()

	acme := tree.Scope{"org": tree.ScopeValue("acme")}
	other := tree.Scope{"org": tree.ScopeValue("other")}

	a, err := s.InsertNode(ctx, s.db, 0, acme, nil)
	if err != nil {
		t.Fatalf("insert acme: %v", err)
	}
	b, err := s.InsertNode(ctx, s.db, 0, other, nil)
	if err != nil {
		t.Fatalf("insert other: %v", err)
	}

	// Each scope numbers from 1 independently.
	if a.Left != 1 || b.Left != 1 {
		t.Errorf("scope intervals not independent: acme lft=%d, other lft=%d", a.Left, b.Left)
	}
}

func TestInsertNode_NullScopeIsAPartition(t *testing.T) {
	s := openTestStore(t, Options{ScopeColumns: []string{"org"}})
	ctx := context.Background()

	null := tree.Scope{"org": nil}
	named := tree.Scope{"org": tree.ScopeValue("acme")}

	n1, err := s.InsertNode(ctx, s.db, 0, null, nil)
	if err != nil {
		t.Fatalf("insert null: %v", err)
	}
	if _, err := s.InsertNode(ctx, s.db, 0, named, nil); err != nil {
		t.Fatalf("insert named: %v", err)
	}
	n2, err := s.InsertNode(ctx, s.db, 0, null, nil)
	if err != nil {
		t.Fatalf("insert null again: %v", err)
	}

	if n1.Left != 1 || n2.Left != 3 {
		t.Errorf("NULL partition numbering broken: %d then %d, want 1 then 3", n1.Left, n2.Left)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	s := openTestStore(t, Options{})

	_, err := s.GetNode(context.Background(), s.db, 999)
	if !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("GetNode(999) = %v, want ErrNotFound", err)
	}
}

func TestMaxRight(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	max, err := s.MaxRight(ctx, s.db, tree.Scope{})
	if err != nil {
		t.Fatalf("MaxRight: %v", err)
	}
	if max != 0 {
		t.Errorf("empty scope MaxRight = %d, want 0", max)
	}

	seedForest(t, s)

	max, err = s.MaxRight(ctx, s.db, tree.Scope{})
	if err != nil {
		t.Fatalf("MaxRight: %v", err)
	}
	if max != 12 {
		t.Errorf("MaxRight = %d, want 12", max)
	}
}

func TestUpdateAttrs(t *testing.T) {
	s := openTestStore(t, Options{AttrColumns: []string{"name"}})
	ctx := context.Background()

	n, err := s.InsertNode(ctx, s.db, 0, tree.Scope{}, map[string]any{"name": "alpha"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n.Attrs["name"] != "alpha" {
		t.Errorf("insert attrs not persisted: %v", n.Attrs)
	}

	if err := s.UpdateAttrs(ctx, s.db, n.ID, map[string]any{"name": "beta"}); err != nil {
		t.Fatalf("UpdateAttrs: %v", err)
	}
	got, err := s.GetNode(ctx, s.db, n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Attrs["name"] != "beta" {
		t.Errorf("name = %v, want beta", got.Attrs["name"])
	}

	err = s.UpdateAttrs(ctx, s.db, 999, map[string]any{"name": "x"})
	if !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("UpdateAttrs(999) = %v, want ErrNotFound", err)
	}
}
