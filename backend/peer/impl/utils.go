package impl

import (
	"sync"

	"Syncrate/backend/crdt"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DocMap holds one replicated document per document id, created lazily on
// first use. Every mutation of a document goes through WithDoc under the map
// lock; documents themselves are single-writer and carry no locking.
type DocMap struct {
	mu           sync.Mutex
	docs         map[string]*crdt.Document
	origin       string
	pendingLimit int
	log          zerolog.Logger
}

func newDocMap(origin string, pendingLimit int, log zerolog.Logger) *DocMap {
	return &DocMap{
		mu:           sync.Mutex{},
		docs:         make(map[string]*crdt.Document),
		origin:       origin,
		pendingLimit: pendingLimit,
		log:          log,
	}
}

// WithDoc runs fn on the document, creating it first if needed.
func (dm *DocMap) WithDoc(docID string, fn func(*crdt.Document) error) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, exists := dm.docs[docID]
	if !exists {
		doc = crdt.NewDocument(dm.origin, dm.log.With().Str("doc", docID).Logger())
		if dm.pendingLimit > 0 {
			doc.SetPendingDeleteLimit(dm.pendingLimit)
		}
		dm.docs[docID] = doc
	}
	return fn(doc)
}

// ReadDoc runs fn on the document if it exists and reports whether it did.
// Unlike WithDoc it never instantiates: reads on an unknown id leave the map
// untouched.
func (dm *DocMap) ReadDoc(docID string, fn func(*crdt.Document)) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, exists := dm.docs[docID]
	if !exists {
		return false
	}
	fn(doc)
	return true
}

// IDs returns the ids of the documents created so far, sorted.
func (dm *DocMap) IDs() []string {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	ids := maps.Keys(dm.docs)
	slices.Sort(ids)
	return ids
}

// ClockMap tracks, per peer, the highest logical clock this replica has
// observed. It feeds the safety bound of the tombstone collector.
type ClockMap struct {
	sync.Mutex
	clocks map[string]uint64
}

func newClockMap() *ClockMap {
	return &ClockMap{
		clocks: make(map[string]uint64),
	}
}

// Ack records an observed clock; older observations are kept.
func (c *ClockMap) Ack(origin string, clock uint64) {
	c.Lock()
	defer c.Unlock()

	if clock > c.clocks[origin] {
		c.clocks[origin] = clock
	}
}

// Snapshot returns a copy of the acknowledged clocks.
func (c *ClockMap) Snapshot() map[string]uint64 {
	c.Lock()
	defer c.Unlock()

	snap := make(map[string]uint64, len(c.clocks))
	for k, v := range c.clocks {
		snap[k] = v
	}
	return snap
}
