package impl

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"Syncrate/backend/peer"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

var logIO = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// NewEditor creates a new editor replica.
func NewEditor(conf peer.Configuration) peer.Editor {
	if conf.ReplicaID == "" {
		conf.ReplicaID = xid.New().String()
	}

	logger := newLogger(logIO, conf.LogLevel).With().Str("replica", conf.ReplicaID).Logger()
	loggerCRDT := newLogger(logIO, conf.LogLevel).With().Str("replica", conf.ReplicaID).Logger()

	docs := newDocMap(conf.ReplicaID, conf.PendingDeleteLimit, loggerCRDT)
	peerClocks := newClockMap()

	node := node{
		conf:       conf,
		mu:         sync.Mutex{},
		log:        logger,
		logCRDT:    loggerCRDT,
		docs:       docs,
		peerClocks: peerClocks,
	}

	return &node
}

// Helper functions

func newLogger(io io.Writer, level zerolog.Level) zerolog.Logger {
	logger := zerolog.New(io).With().Timestamp().Logger()
	return logger.Level(level)
}

// node implements a collaborative editor replica.
//
// - implements peer.Editor
type node struct {
	conf       peer.Configuration
	mu         sync.Mutex         // guards ctx and cancel across Start/Stop
	ctx        context.Context    // for managing the start/stop
	cancel     context.CancelFunc // to cancel the collector goroutine
	log        zerolog.Logger
	logCRDT    zerolog.Logger
	docs       *DocMap
	peerClocks *ClockMap
}

// Start implements peer.Editor
func (n *node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		n.cancel() // a restart supersedes the previous collector
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())

	// check if GCInterval is > 0
	if n.conf.GCInterval > 0 {
		go n.GCTicker(n.ctx)
	}

	return nil
}

// Stop implements peer.Editor
func (n *node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		n.cancel() // cancel the context to stop the collector goroutine
		n.cancel = nil
	}
	return nil
}

// ReplicaID implements peer.Editor
func (n *node) ReplicaID() string {
	return n.conf.ReplicaID
}

// GCTicker periodically collects the tombstones every known peer has
// observed.
func (n *node) GCTicker(ctx context.Context) {
	gcTicker := time.NewTicker(n.conf.GCInterval)
	defer gcTicker.Stop() // Ensure the ticker is stopped when the goroutine exits

	for {
		select {
		case <-ctx.Done():
			// exit the loop when the context is canceled (i.e., when Stop is called)
			n.log.Info().Msg("Stopping tombstone collector")
			return
		case <-gcTicker.C:
			for _, docID := range n.docs.IDs() {
				n.CollectTombstones(docID)
			}
		}
	}
}
