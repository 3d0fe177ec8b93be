// Package store provides SQLite-backed persistence for the arbor
// nested-set index.
//
// One table holds the forest: core columns (id, parent_id, lft, rgt,
// depth, deleted_at), optional scope columns partitioning the table into
// independent trees, and arbitrary caller-defined attribute columns that
// the index never interprets.
//
// # Writer discipline
//
// The interval and depth columns are the only shared mutable resource.
// They are written exclusively through the boundary-shift helpers in
// shift.go, and only inside a transaction opened by Begin. The DSN uses
// _txlock=immediate so every mutation transaction takes SQLite's write
// lock up front, serializing concurrent structural changes; on backends
// with row-level locking the same role is played by LockRange's
// SELECT ... FOR UPDATE. Readers stay unblocked via WAL, and snapshot
// isolation guarantees no transaction ever observes mid-shift rows.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: parent_id referential integrity
//
// # Attribute guard
//
// Writes to attribute columns are restricted to Options.AttrColumns.
// Unguarded temporarily lifts the restriction for bulk imports and
// restores it on every exit path.
package store
