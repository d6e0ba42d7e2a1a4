package types

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"golang.org/x/xerrors"
)

// -----------------------------------------------------------------------------
// CRDTOperationsMessage

// NewEmpty implements types.Message.
func (c CRDTOperationsMessage) NewEmpty() Message {
	return &CRDTOperationsMessage{}
}

// Name implements types.Message.
func (c CRDTOperationsMessage) Name() string {
	return "crdtoperations"
}

// String implements types.Message.
func (c CRDTOperationsMessage) String() string {
	return fmt.Sprintf("crdtoperations{%d operations}", len(c.Operations))
}

// -----------------------------------------------------------------------------
// PositionID

// String returns a readable id for the character, Clock@Origin style.
func (p PositionID) String() string {
	return fmt.Sprintf("%d@%s", p.Clock, p.Origin)
}

// Key returns a stable map key for exact-identity lookups. Clock@Origin is
// unique per character: a replica never reuses a clock value for two inserts.
func (p PositionID) Key() string {
	return p.String()
}

// Clone returns a deep copy of the id. Operations are immutable once created;
// callers that need to retain an id across mutations copy it first.
func (p PositionID) Clone() PositionID {
	path := make([]int, len(p.Path))
	copy(path, p.Path)
	return PositionID{Path: path, Origin: p.Origin, Clock: p.Clock}
}

// -----------------------------------------------------------------------------
// CRDTOperation

// Validate checks that the operation is well-formed. A violation is reported
// as ErrMalformedOperation; the operation must not be applied.
func (op CRDTOperation) Validate() error {
	switch op.Type {
	case CRDTInsertCharType:
		if utf8.RuneCountInString(op.Character) != 1 {
			return xerrors.Errorf("insert carries %q, want one code point: %w",
				op.Character, ErrMalformedOperation)
		}
	case CRDTDeleteCharType:
		if op.Character != "" {
			return xerrors.Errorf("delete carries a character: %w", ErrMalformedOperation)
		}
	default:
		return xerrors.Errorf("unknown operation type %q: %w", op.Type, ErrMalformedOperation)
	}

	if op.ID.Origin == "" {
		return xerrors.Errorf("empty origin: %w", ErrMalformedOperation)
	}
	if len(op.ID.Path) == 0 {
		return xerrors.Errorf("empty path: %w", ErrMalformedOperation)
	}
	for _, c := range op.ID.Path {
		if c < 0 || c >= PathBase {
			return xerrors.Errorf("path component %d outside [0, %d): %w",
				c, PathBase, ErrMalformedOperation)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (op CRDTOperation) String() string {
	if op.Type == CRDTInsertCharType {
		return fmt.Sprintf("%s{%s %q}", op.Type, op.ID, op.Character)
	}
	return fmt.Sprintf("%s{%s}", op.Type, op.ID)
}

// -----------------------------------------------------------------------------
// Codec
//
// The core has no wire protocol of its own; these helpers define the JSON
// shape a transport serializes.

// MarshalMessage encodes the message for a transport.
func MarshalMessage(msg CRDTOperationsMessage) ([]byte, error) {
	buf, err := json.Marshal(msg)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal %s: %v", msg.Name(), err)
	}
	return buf, nil
}

// UnmarshalMessage decodes and validates a message received from a transport.
// Any malformed operation fails the whole message with ErrMalformedOperation.
func UnmarshalMessage(buf []byte) (CRDTOperationsMessage, error) {
	var msg CRDTOperationsMessage
	if err := json.Unmarshal(buf, &msg); err != nil {
		return CRDTOperationsMessage{}, xerrors.Errorf("failed to decode message: %w",
			ErrMalformedOperation)
	}
	for _, op := range msg.Operations {
		if err := op.Validate(); err != nil {
			return CRDTOperationsMessage{}, err
		}
	}
	return msg, nil
}
