package peer

import (
	"time"

	"Syncrate/backend/types"

	"github.com/rs/zerolog"
)

// Factory is the type of function we are using to create new instances of
// editors.
type Factory func(Configuration) Editor

// Configuration carries everything an editor replica needs. The zero value is
// usable: a fresh replica id is generated, the background collector stays
// off, and operations are only returned to the caller.
type Configuration struct {
	// ReplicaID is the unique, stable id of this participant. Empty means a
	// fresh xid.
	ReplicaID string

	// GCInterval is the period of the background tombstone collector. Zero
	// disables it; CollectTombstones can still be called directly.
	GCInterval time.Duration

	// PendingDeleteLimit bounds each document's buffer of deletes that
	// arrived before their insert. Zero means the default.
	PendingDeleteLimit int

	// Broadcast, when set, receives every locally produced operation. The
	// transport behind it is external: it only has to deliver each message to
	// every peer's ApplyMessage at least once, in any order.
	Broadcast func(docID string, msg types.CRDTOperationsMessage)

	// LogLevel of the editor's loggers.
	LogLevel zerolog.Level
}

// Editor defines the interface of a collaborative text replica. Each document
// is an independent replicated sequence identified by docID. Indices are
// visible-character offsets: tombstoned characters do not count.
type Editor interface {
	// Start launches the background services of the editor.
	Start() error

	// Stop cancels them.
	Stop() error

	// ReplicaID returns the id of this replica.
	ReplicaID() string

	// Insert creates a character at a visible offset and returns the
	// operation to broadcast.
	Insert(docID string, index int, r rune) (types.CRDTOperation, error)

	// Delete tombstones the character at a visible offset and returns the
	// operation to broadcast.
	Delete(docID string, index int) (types.CRDTOperation, error)

	// ApplyRemote merges one operation received from a peer.
	ApplyRemote(docID string, op types.CRDTOperation) error

	// ApplyMessage merges a batch of operations received from a peer.
	ApplyMessage(docID string, msg types.CRDTOperationsMessage) error

	// Text returns the visible text of the document.
	Text(docID string) string

	// Clock returns the document's logical clock.
	Clock(docID string) uint64

	// AckPeerClock records the highest logical clock observed from a peer,
	// feeding the safety bound of the tombstone collector.
	AckPeerClock(origin string, clock uint64)

	// PeerClocks returns a copy of the acknowledged per-peer clocks.
	PeerClocks() map[string]uint64

	// CollectTombstones garbage-collects the document's tombstones that every
	// known peer has observed.
	CollectTombstones(docID string)

	// TombstoneCount returns the number of tombstoned records the document
	// still holds.
	TombstoneCount(docID string) int
}
