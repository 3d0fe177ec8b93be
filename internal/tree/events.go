package tree

import (
	"context"

	"github.com/google/uuid"
)

// MoveEvent describes one relocation for the notification sink.
//
// OpID is a UUIDv7 operation identifier minted per mutation, so that a
// Moving event and its matching Moved event can be correlated by
// observers. UUIDv7 is time-sortable, which keeps event logs readable.
type MoveEvent struct {
	OpID     string
	NodeID   int64
	TargetID int64 // 0 for root promotion
	Position Position
}

// Notifier observes relocations. The move engine raises Moving strictly
// before any write; returning false vetoes the move, which is then
// abandoned with the node returned unchanged. Moved is raised after the
// transaction has committed and depth propagation has finished, for real
// moves and no-ops alike. Vetoed moves raise no Moved.
//
// The sink is injected at engine construction; there is no process-wide
// dispatcher.
type Notifier interface {
	Moving(ctx context.Context, ev MoveEvent) bool
	Moved(ctx context.Context, ev MoveEvent)
}

// NopNotifier accepts every move and observes nothing.
type NopNotifier struct{}

// Moving always allows the move.
func (NopNotifier) Moving(context.Context, MoveEvent) bool { return true }

// Moved does nothing.
func (NopNotifier) Moved(context.Context, MoveEvent) {}

// NewOpID mints the operation identifier carried by MoveEvent.
func NewOpID() string {
	return uuid.Must(uuid.NewV7()).String()
}
