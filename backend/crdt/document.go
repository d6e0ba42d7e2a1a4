package crdt

import (
	"math"
	"strings"
	"unicode/utf8"

	"Syncrate/backend/types"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"
)

// DefaultPendingDeleteLimit bounds the buffer of deletes that arrived before
// their matching insert. The oldest entry is dropped beyond the cap.
const DefaultPendingDeleteLimit = 1024

// CharRecord is one character of the document. A deleted record is a
// tombstone: invisible in the rendered text but kept so that later-arriving
// operations referencing it still resolve, until the garbage collector proves
// every peer has seen it.
type CharRecord struct {
	ID      types.PositionID
	Value   rune
	Deleted bool
}

// Document is one replica's copy of the shared text. The chars sequence is
// always sorted under Compare. All state is owned by the Document value;
// callers that share a Document across goroutines synchronize externally
// (the editor layer does).
type Document struct {
	origin       string
	clock        uint64
	chars        []CharRecord
	pending      []types.PositionID // deletes waiting for their insert, FIFO
	pendingLimit int
	log          zerolog.Logger
}

// NewDocument returns an empty document owned by the given replica.
func NewDocument(origin string, log zerolog.Logger) *Document {
	return &Document{
		origin:       origin,
		pendingLimit: DefaultPendingDeleteLimit,
		log:          log,
	}
}

// SetPendingDeleteLimit overrides the pending-delete buffer cap. Values < 1
// are ignored.
func (d *Document) SetPendingDeleteLimit(n int) {
	if n >= 1 {
		d.pendingLimit = n
	}
}

// Origin returns the owning replica's id.
func (d *Document) Origin() string {
	return d.origin
}

// Clock returns the replica's logical clock.
func (d *Document) Clock() uint64 {
	return d.clock
}

// Length returns the number of visible (non-tombstoned) characters.
func (d *Document) Length() int {
	n := 0
	for _, c := range d.chars {
		if !c.Deleted {
			n++
		}
	}
	return n
}

// TombstoneCount returns the number of tombstoned records still held.
func (d *Document) TombstoneCount() int {
	n := 0
	for _, c := range d.chars {
		if c.Deleted {
			n++
		}
	}
	return n
}

// PendingDeleteCount returns the number of buffered deletes still waiting for
// their insert.
func (d *Document) PendingDeleteCount() int {
	return len(d.pending)
}

// Text renders the visible text: every non-tombstoned character in sequence
// order.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, c := range d.chars {
		if !c.Deleted {
			sb.WriteRune(c.Value)
		}
	}
	return sb.String()
}

// Insert creates a character at the given visible offset (0 <= index <=
// Length) and returns the operation to broadcast. The new position identifier
// is derived from the records adjacent to the splice point, tombstones
// included, so repeated typing at one spot keeps producing fresh positions.
func (d *Document) Insert(index int, r rune) (types.CRDTOperation, error) {
	if index < 0 || index > d.Length() {
		return types.CRDTOperation{}, xerrors.Errorf(
			"insert at %d with %d visible characters: %w", index, d.Length(), ErrIndexOutOfRange)
	}

	raw := d.rawIndex(index)
	var before, after *types.PositionID
	if raw > 0 {
		before = &d.chars[raw-1].ID
	}
	if raw < len(d.chars) {
		after = &d.chars[raw].ID
	}

	d.clock++
	id := Between(before, after, d.origin, d.clock)

	// When the neighbors carry the same path the midpoint is fixed, so
	// re-inserting where this replica already left a tombstone regenerates a
	// taken id. Descend a level at a time until the id is unused; each
	// extension sorts later than the previous candidate but stays inside the
	// same gap.
	at, found := d.search(id)
	for found {
		id.Path = append(id.Path, types.PathBase/2)
		at, found = d.search(id)
	}
	d.splice(at, CharRecord{ID: id, Value: r})

	return types.CRDTOperation{
		Type:      types.CRDTInsertCharType,
		ID:        id.Clone(),
		Character: string(r),
	}, nil
}

// Delete tombstones the character at the given visible offset (0 <= index <
// Length) and returns the operation to broadcast. The record is never
// physically removed here; only CollectTombstones shrinks the document.
func (d *Document) Delete(index int) (types.CRDTOperation, error) {
	if index < 0 || index >= d.Length() {
		return types.CRDTOperation{}, xerrors.Errorf(
			"delete at %d with %d visible characters: %w", index, d.Length(), ErrIndexOutOfRange)
	}

	raw := d.rawIndex(index)
	rec := &d.chars[raw]
	if rec.Deleted {
		return types.CRDTOperation{}, xerrors.Errorf(
			"record at %d is already a tombstone: %w", index, ErrNotFound)
	}
	rec.Deleted = true

	return types.CRDTOperation{
		Type: types.CRDTDeleteCharType,
		ID:   rec.ID.Clone(),
	}, nil
}

// Apply merges one remote operation. Apply is idempotent and tolerates
// arbitrary delivery order: duplicate inserts are skipped, duplicate deletes
// re-tombstone, and a delete arriving before its insert is buffered and
// replayed once the insert lands. Malformed operations are rejected without
// mutating state.
func (d *Document) Apply(op types.CRDTOperation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	switch op.Type {
	case types.CRDTInsertCharType:
		return d.applyInsert(op)
	case types.CRDTDeleteCharType:
		return d.applyDelete(op)
	}
	return xerrors.Errorf("unknown operation type %q: %w", op.Type, types.ErrMalformedOperation)
}

// ApplyMessage merges every operation of a message, stopping at the first
// error.
func (d *Document) ApplyMessage(msg types.CRDTOperationsMessage) error {
	for _, op := range msg.Operations {
		if err := d.Apply(op); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) applyInsert(op types.CRDTOperation) error {
	d.syncClock(op.ID.Clock)

	at, found := d.search(op.ID)
	if found {
		if d.chars[at].ID.Clock != op.ID.Clock {
			// Same path and origin but a different character: the generator
			// on the originating replica is broken. Skip, never corrupt.
			d.log.Error().Msgf("insert %s collides with record %s", op.ID, d.chars[at].ID)
			return xerrors.Errorf("insert %s collides with an existing record: %w",
				op.ID, ErrOrderingViolation)
		}
		// Duplicate delivery.
		return nil
	}

	r, _ := utf8.DecodeRuneInString(op.Character)
	d.splice(at, CharRecord{ID: op.ID.Clone(), Value: r})
	d.flushPending(op.ID)
	return nil
}

func (d *Document) applyDelete(op types.CRDTOperation) error {
	d.syncClock(op.ID.Clock)

	at, found := d.search(op.ID)
	if found {
		d.chars[at].Deleted = true
		return nil
	}

	// The delete outran its insert; hold it until the insert arrives.
	d.bufferDelete(op.ID)
	return nil
}

// CollectTombstones physically removes every tombstone that all known peers
// have provably observed: records whose clock is at or below the minimum of
// the supplied per-peer acknowledged clocks. Buffered deletes below the same
// bound are dropped too, since their insert can no longer arrive. With no
// known peers nothing is acknowledged and nothing is removed. The visible
// text is never affected.
func (d *Document) CollectTombstones(peerClocks map[string]uint64) {
	if len(peerClocks) == 0 {
		return
	}
	var minClock uint64 = math.MaxUint64
	for _, c := range peerClocks {
		if c < minClock {
			minClock = c
		}
	}

	kept := d.chars[:0]
	removed := 0
	for _, c := range d.chars {
		if c.Deleted && c.ID.Clock <= minClock {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	d.chars = kept

	pend := d.pending[:0]
	for _, id := range d.pending {
		if id.Clock > minClock {
			pend = append(pend, id)
		}
	}
	d.pending = pend

	if removed > 0 {
		d.log.Debug().Msgf("collected %d tombstones below clock %d", removed, minClock)
	}
}

// Records returns a copy of the full backing sequence, tombstones included.
func (d *Document) Records() []CharRecord {
	recs := make([]CharRecord, len(d.chars))
	copy(recs, d.chars)
	return recs
}

// -----------------------------------------------------------------------------
// internals

// rawIndex translates a visible offset into an index in the full backing
// sequence: the position of the index-th visible record, or the end of the
// sequence when index equals the visible length.
func (d *Document) rawIndex(index int) int {
	seen := 0
	for i, c := range d.chars {
		if c.Deleted {
			continue
		}
		if seen == index {
			return i
		}
		seen++
	}
	return len(d.chars)
}

// search locates id in the sorted sequence. found reports an exact match
// under Compare (same path and origin); otherwise the returned index is the
// order-preserving splice point.
func (d *Document) search(id types.PositionID) (int, bool) {
	return slices.BinarySearchFunc(d.chars, id, func(c CharRecord, target types.PositionID) int {
		return Compare(c.ID, target)
	})
}

func (d *Document) splice(at int, rec CharRecord) {
	d.chars = append(d.chars, CharRecord{})
	copy(d.chars[at+1:], d.chars[at:])
	d.chars[at] = rec
}

// syncClock keeps the local clock ahead of every observed operation.
func (d *Document) syncClock(remote uint64) {
	if remote > d.clock {
		d.clock = remote
	}
	d.clock++
}

func (d *Document) flushPending(id types.PositionID) {
	key := id.Key()
	for i, p := range d.pending {
		if p.Key() != key {
			continue
		}
		if at, found := d.search(id); found {
			d.chars[at].Deleted = true
		}
		d.pending = append(d.pending[:i], d.pending[i+1:]...)
		return
	}
}

func (d *Document) bufferDelete(id types.PositionID) {
	key := id.Key()
	for _, p := range d.pending {
		if p.Key() == key {
			return
		}
	}
	d.pending = append(d.pending, id.Clone())
	if len(d.pending) > d.pendingLimit {
		d.log.Warn().Msgf("pending delete buffer full, dropping %s", d.pending[0])
		d.pending = d.pending[1:]
	}
}
