package types

import "errors"

// ErrMalformedOperation is returned when a decoded operation is missing
// required fields or carries values outside the allowed ranges. The transport
// layer must surface it, never silently drop the operation.
var ErrMalformedOperation = errors.New("malformed operation")

// Message is the interface implemented by every payload exchanged between
// replicas.
type Message interface {
	NewEmpty() Message
	Name() string
	String() string
}

const (
	CRDTInsertCharType = "crdt_insert_char"
	CRDTDeleteCharType = "crdt_delete_char"
)

// PathBase is the per-level capacity of a position path. Every path component
// lies in [0, PathBase).
const PathBase = 256

// PositionID identifies a single character across all replicas. Path is a
// fractional index: a sequence of components compared level by level, with
// missing components read as 0. Origin is the id of the replica that created
// the character and breaks ties between colliding paths. Clock is the
// creating replica's logical clock at insertion time; it is carried as
// metadata (tombstone GC reads it) and is never part of the sort key.
type PositionID struct {
	Path   []int  `json:"path"`
	Origin string `json:"origin"`
	Clock  uint64 `json:"clock"`
}

// CRDTOperation is the unit exchanged between replicas. Immutable once
// created. Character is set for inserts only and holds exactly one code
// point.
type CRDTOperation struct {
	Type      string     `json:"type"`
	ID        PositionID `json:"id"`
	Character string     `json:"character,omitempty"`
}

// CRDTOperationsMessage describes a message that contains a list of CRDT operations.
//
// - implements types.Message
type CRDTOperationsMessage struct {
	Operations []CRDTOperation `json:"operations"`
}
