package tree

// Position names where a relocated node lands relative to its target.
type Position string

const (
	// PositionLeft places the node as the immediate left sibling of the
	// target.
	PositionLeft Position = "left-of"

	// PositionRight places the node as the immediate right sibling of the
	// target.
	PositionRight Position = "right-of"

	// PositionChild appends the node as the last child of the target.
	PositionChild Position = "child-of"

	// PositionRoot promotes the node to a new rightmost root of its scope.
	// Root moves take no target.
	PositionRoot Position = "root"
)

// Valid reports whether p is one of the four recognized positions.
func (p Position) Valid() bool {
	switch p {
	case PositionLeft, PositionRight, PositionChild, PositionRoot:
		return true
	}
	return false
}

// NeedsTarget reports whether the position requires a resolvable target
// node. Only root promotion is targetless.
func (p Position) NeedsTarget() bool {
	return p != PositionRoot
}
