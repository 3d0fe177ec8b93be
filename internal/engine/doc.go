// Package engine implements the arbor index-maintenance core.
//
// The engine owns every mutation of the derived nested-set columns:
// relocating a node and its subtree (move.go), rebuilding the whole
// index from parent pointers (rebuild.go), checking index integrity
// (validate.go), mapping an external hierarchical payload onto the store
// (import.go), and cascading deletion with renumbering (delete.go).
//
// ARCHITECTURE:
//
// Transaction-Scoped Mutations:
// Every structural change runs inside one BEGIN IMMEDIATE transaction:
// either all interval/parent updates of the operation commit, or none
// do. There are no background workers; callers invoke operations
// synchronously and the backing store serializes writers.
//
// Locking Discipline:
// Before computing or applying boundary shifts, the affected interval
// range [a, d] is locked in full (store.LockRange), not just the two
// intervals being swapped. Deletion locks the whole tail right of the
// removed range before decrementing.
//
// Notification Ordering:
// Within one move or import transaction, the Moving notification
// strictly precedes any write; the Moved notification strictly follows
// commit and depth propagation. A Moving veto abandons the operation
// with the store untouched.
//
// The engine is designed for correctness, not throughput: a single
// miscomputed boundary silently corrupts every containment query, so
// every shift is derived from the sorted four-boundary form and the
// validator can be run independently at any time.
package engine
