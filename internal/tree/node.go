package tree

import "database/sql"

// Node is one row of the indexed table.
//
// ID and ParentID are caller-owned. Left, Right and Depth are derived by
// the engine and must never be set directly by callers. Scope holds the
// partition column values; Attrs holds any caller-defined columns that
// were selected along with the core columns.
type Node struct {
	ID       int64
	ParentID sql.NullInt64

	Left  int64
	Right int64
	Depth int64

	Scope Scope
	Attrs map[string]any

	// DeletedAt is the soft-delete tombstone. Invalid means live.
	DeletedAt sql.NullString
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return !n.ParentID.Valid
}

// IsLeaf reports whether the node has no children (rgt - lft = 1).
func (n *Node) IsLeaf() bool {
	return n.Right-n.Left == 1
}

// IsTrunk reports whether the node has a parent and is not a leaf.
func (n *Node) IsTrunk() bool {
	return !n.IsRoot() && !n.IsLeaf()
}

// Width is the number of interval slots the node's subtree occupies.
func (n *Node) Width() int64 {
	return n.Right - n.Left + 1
}

// SubtreeSize is the number of nodes in the subtree rooted at n,
// including n itself.
func (n *Node) SubtreeSize() int64 {
	return n.Width() / 2
}

// Contains reports whether other lies inside n's subtree (self included).
// Both nodes must belong to the same scope for the result to mean
// anything; interval comparison alone is only valid within one partition.
func (n *Node) Contains(other *Node) bool {
	return n.Left <= other.Left && other.Right <= n.Right
}

// IsDescendantOf reports whether n lies strictly inside other's subtree.
func (n *Node) IsDescendantOf(other *Node) bool {
	return other.Left < n.Left && n.Right < other.Right
}

// IsTombstoned reports whether the node is soft-deleted.
func (n *Node) IsTombstoned() bool {
	return n.DeletedAt.Valid
}
