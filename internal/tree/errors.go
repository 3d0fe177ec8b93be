package tree

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a node expected to exist cannot be loaded,
// for example the mid-move reload after a boundary shift.
var ErrNotFound = errors.New("node not found")

// MoveErrorCode categorizes move precondition violations.
type MoveErrorCode string

const (
	// ErrCodeUnsavedNode indicates the node to move was never persisted.
	ErrCodeUnsavedNode MoveErrorCode = "UNSAVED_NODE"

	// ErrCodeInvalidPosition indicates an unrecognized position token.
	ErrCodeInvalidPosition MoveErrorCode = "INVALID_POSITION"

	// ErrCodeUnresolvedTarget indicates the target node could not be
	// resolved, including the "no further neighbor in that direction"
	// case for sibling moves.
	ErrCodeUnresolvedTarget MoveErrorCode = "UNRESOLVED_TARGET"

	// ErrCodeSelfTarget indicates the node was targeted at itself.
	ErrCodeSelfTarget MoveErrorCode = "SELF_TARGET"

	// ErrCodeInsideSubtree indicates the target lies inside the moved
	// node's own subtree, which would create a cycle.
	ErrCodeInsideSubtree MoveErrorCode = "INSIDE_SUBTREE"

	// ErrCodeScopeMismatch indicates node and target belong to different
	// scope partitions.
	ErrCodeScopeMismatch MoveErrorCode = "SCOPE_MISMATCH"
)

// ImpossibleMoveError reports a move precondition violation. It is always
// surfaced to the caller and never retried; the store is guaranteed to be
// unmodified when one is returned.
type ImpossibleMoveError struct {
	// Code identifies the violated precondition.
	Code MoveErrorCode

	// Message is a human-readable description.
	Message string

	// NodeID identifies the node that was to be moved (0 if unsaved).
	NodeID int64

	// TargetID identifies the target node, when one was given.
	TargetID int64
}

// Error implements the error interface.
func (e *ImpossibleMoveError) Error() string {
	if e.TargetID != 0 {
		return fmt.Sprintf("%s: %s (node=%d, target=%d)", e.Code, e.Message, e.NodeID, e.TargetID)
	}
	return fmt.Sprintf("%s: %s (node=%d)", e.Code, e.Message, e.NodeID)
}

// IsImpossibleMove reports whether err is (or wraps) an
// ImpossibleMoveError.
func IsImpossibleMove(err error) bool {
	var me *ImpossibleMoveError
	return errors.As(err, &me)
}

// MoveErrorCodeOf extracts the move error code from err, or "" when err
// is not an ImpossibleMoveError.
func MoveErrorCodeOf(err error) MoveErrorCode {
	var me *ImpossibleMoveError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// NewImpossibleMove creates an ImpossibleMoveError.
func NewImpossibleMove(code MoveErrorCode, message string, nodeID, targetID int64) *ImpossibleMoveError {
	return &ImpossibleMoveError{Code: code, Message: message, NodeID: nodeID, TargetID: targetID}
}
