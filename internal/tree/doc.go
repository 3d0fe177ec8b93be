// Package tree defines the domain types for the arbor nested-set index.
//
// A tree (or forest) of records is encoded as [lft, rgt] integer intervals
// such that interval containment implies the descendant relationship.
// The types here carry no persistence logic: internal/store owns the SQL
// and internal/engine owns every mutation of the derived interval/depth
// columns.
//
// INVARIANTS (per scope partition, after any committed mutation):
//
//  1. lft < rgt for every node.
//  2. A child's interval lies strictly inside its parent's interval.
//  3. Sibling intervals are disjoint and stored in sibling order.
//  4. No two nodes share a lft or a rgt value.
//  5. Root intervals are pairwise disjoint and strictly increasing.
//  6. depth equals the node's ancestor count (roots are depth 0).
//  7. rgt - lft = 1 exactly for leaves.
//
// parent_id is authoritative caller input; lft, rgt and depth are derived
// state that only the move engine, the rebuilder and cascading deletion
// may write.
package tree
