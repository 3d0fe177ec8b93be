package engine

import (
	"context"

	"github.com/roach88/arbor/internal/tree"
)

// Read-side entry points. These delegate to the store's range filters
// and assume a valid index; run Validate when in doubt.

// Node loads a single node by id.
func (e *Engine) Node(ctx context.Context, id int64) (*tree.Node, error) {
	return e.store.GetNode(ctx, e.store.DB(), id)
}

// AncestorsAndSelf returns the root-to-node chain for id.
func (e *Engine) AncestorsAndSelf(ctx context.Context, id int64) ([]*tree.Node, error) {
	n, err := e.store.GetNode(ctx, e.store.DB(), id)
	if err != nil {
		return nil, err
	}
	return e.store.AncestorsAndSelf(ctx, e.store.DB(), n)
}

// DescendantsAndSelf returns id's subtree in pre-order.
func (e *Engine) DescendantsAndSelf(ctx context.Context, id int64) ([]*tree.Node, error) {
	n, err := e.store.GetNode(ctx, e.store.DB(), id)
	if err != nil {
		return nil, err
	}
	return e.store.DescendantsAndSelf(ctx, e.store.DB(), n)
}

// Siblings returns the nodes sharing id's parent, id included.
func (e *Engine) Siblings(ctx context.Context, id int64) ([]*tree.Node, error) {
	n, err := e.store.GetNode(ctx, e.store.DB(), id)
	if err != nil {
		return nil, err
	}
	return e.store.SiblingsAndSelf(ctx, e.store.DB(), n)
}

// Roots returns the root nodes of a scope in sibling order.
func (e *Engine) Roots(ctx context.Context, scope tree.Scope) ([]*tree.Node, error) {
	return e.store.Roots(ctx, e.store.DB(), scope)
}

// Leaves returns every childless node of a scope.
func (e *Engine) Leaves(ctx context.Context, scope tree.Scope) ([]*tree.Node, error) {
	return e.store.Leaves(ctx, e.store.DB(), scope)
}

// Trunks returns every node of a scope that has a parent and children.
func (e *Engine) Trunks(ctx context.Context, scope tree.Scope) ([]*tree.Node, error) {
	return e.store.Trunks(ctx, e.store.DB(), scope)
}
