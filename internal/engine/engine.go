package engine

import (
	"context"

	"github.com/roach88/arbor/internal/store"
	"github.com/roach88/arbor/internal/tree"
)

// Engine performs all structural mutations of a nested-set forest.
//
// The notification sink is bound at construction; there is no shared
// global dispatcher. A nil notifier observes nothing and vetoes nothing.
type Engine struct {
	store    *store.Store
	notifier tree.Notifier
}

// New creates an engine over the given store. notifier may be nil.
func New(s *store.Store, notifier tree.Notifier) *Engine {
	if notifier == nil {
		notifier = tree.NopNotifier{}
	}
	return &Engine{store: s, notifier: notifier}
}

// Store exposes the underlying store for read-side queries.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Create persists a new node. The interval is assigned automatically at
// creation: the node occupies a fresh rightmost root-level slot
// (lft = max(rgt in scope)+1, rgt = lft+1, depth 0) and is then
// immediately relocated under parentID when one is given, exactly as a
// caller-visible parent change would be.
func (e *Engine) Create(ctx context.Context, parentID int64, scope tree.Scope, attrs map[string]any) (*tree.Node, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if parentID != 0 {
		// Creating under a parent adopts the parent's scope; the two
		// must agree or the later move would fail SCOPE_MISMATCH anyway.
		parent, err := e.store.GetNode(ctx, tx, parentID)
		if err != nil {
			return nil, err
		}
		scope = parent.Scope
	}

	n, err := e.store.InsertNode(ctx, tx, 0, scope, attrs)
	if err != nil {
		return nil, err
	}

	var events []tree.MoveEvent
	if parentID != 0 {
		moved, ev, err := e.moveInTx(ctx, tx, n.ID, parentID, tree.PositionChild)
		if err != nil {
			return nil, err
		}
		n = moved
		if ev != nil {
			events = append(events, *ev)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.flushMoved(ctx, events)
	return n, nil
}

// SetParent records a parent change for an existing node and performs
// the relocation it implies: child-of the new parent, or promotion to
// root when parentID is 0.
func (e *Engine) SetParent(ctx context.Context, nodeID, parentID int64) (*tree.Node, error) {
	if parentID == 0 {
		return e.Move(ctx, nodeID, 0, tree.PositionRoot)
	}
	return e.Move(ctx, nodeID, parentID, tree.PositionChild)
}

// flushMoved raises Moved notifications after commit, in operation
// order.
func (e *Engine) flushMoved(ctx context.Context, events []tree.MoveEvent) {
	for _, ev := range events {
		e.notifier.Moved(ctx, ev)
	}
}
