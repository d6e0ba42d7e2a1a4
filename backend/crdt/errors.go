package crdt

import "errors"

var (
	// ErrIndexOutOfRange reports an Insert or Delete index outside the
	// visible range of the document.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNotFound reports a Delete whose target record does not exist or is
	// already a tombstone.
	ErrNotFound = errors.New("record not found")

	// ErrOrderingViolation reports two distinct characters comparing equal
	// under the position total order. It indicates a generator bug; the
	// offending operation is skipped and the document is left untouched.
	ErrOrderingViolation = errors.New("ordering invariant violation")
)
