package unit

import (
	"sync"
	"testing"
	"time"

	"Syncrate/backend/crdt"
	"Syncrate/backend/peer"
	"Syncrate/backend/peer/tests"
	"Syncrate/backend/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestEditor(t *testing.T, conf peer.Configuration) peer.Editor {
	t.Helper()
	conf.LogLevel = zerolog.ErrorLevel
	ed := editorFac(conf)
	require.NoError(t, ed.Start())
	t.Cleanup(func() {
		require.NoError(t, ed.Stop())
	})
	return ed
}

// ----- Tests -----

// Local typing produces one operation per character and renders in order.
func Test_Editor_Local_Typing(t *testing.T) {
	ed := newTestEditor(t, peer.Configuration{ReplicaID: "alice"})

	for i, r := range "Hello" {
		op, err := ed.Insert("doc1", i, r)
		require.NoError(t, err)
		require.Equal(t, types.CRDTInsertCharType, op.Type)
		require.Equal(t, "alice", op.ID.Origin)
		require.Equal(t, string(r), op.Character)
	}
	require.Equal(t, "Hello", ed.Text("doc1"))
	require.Equal(t, uint64(5), ed.Clock("doc1"))

	op, err := ed.Delete("doc1", 0)
	require.NoError(t, err)
	require.Equal(t, types.CRDTDeleteCharType, op.Type)
	require.Equal(t, "ello", ed.Text("doc1"))
}

// A replica id left empty gets a generated one.
func Test_Editor_Generated_ReplicaID(t *testing.T) {
	ed1 := newTestEditor(t, peer.Configuration{})
	ed2 := newTestEditor(t, peer.Configuration{})

	require.NotEmpty(t, ed1.ReplicaID())
	require.NotEmpty(t, ed2.ReplicaID())
	require.NotEqual(t, ed1.ReplicaID(), ed2.ReplicaID())
}

// Every local operation reaches the broadcast hook.
func Test_Editor_Broadcast_Hook(t *testing.T) {
	var sent []types.CRDTOperation
	ed := newTestEditor(t, peer.Configuration{
		ReplicaID: "alice",
		Broadcast: func(docID string, msg types.CRDTOperationsMessage) {
			require.Equal(t, "doc1", docID)
			sent = append(sent, msg.Operations...)
		},
	})

	_, err := ed.Insert("doc1", 0, 'a')
	require.NoError(t, err)
	_, err = ed.Insert("doc1", 1, 'b')
	require.NoError(t, err)
	_, err = ed.Delete("doc1", 0)
	require.NoError(t, err)

	require.Len(t, sent, 3)

	// failed operations must not be broadcast
	_, err = ed.Insert("doc1", 99, 'x')
	require.ErrorIs(t, err, crdt.ErrIndexOutOfRange)
	require.Len(t, sent, 3)
}

// Documents are independent replicated sequences.
func Test_Editor_Multiple_Documents(t *testing.T) {
	ed := newTestEditor(t, peer.Configuration{ReplicaID: "alice"})

	for i, r := range "one" {
		_, err := ed.Insert("doc1", i, r)
		require.NoError(t, err)
	}
	for i, r := range "two" {
		_, err := ed.Insert("doc2", i, r)
		require.NoError(t, err)
	}

	require.Equal(t, "one", ed.Text("doc1"))
	require.Equal(t, "two", ed.Text("doc2"))
}

// Shuffled, duplicated remote delivery converges at the editor level.
func Test_Editor_ApplyRemote_Reordered(t *testing.T) {
	ops := tests.BuildInserts("bob", "shared text")

	edA := newTestEditor(t, peer.Configuration{ReplicaID: "alice"})
	edB := newTestEditor(t, peer.Configuration{ReplicaID: "carol"})

	for _, op := range tests.Reorder(ops, 4, 1) {
		require.NoError(t, edA.ApplyRemote("doc1", op))
	}
	for _, op := range tests.Reorder(ops, 4, 2) {
		require.NoError(t, edB.ApplyRemote("doc1", op))
	}

	require.Equal(t, "shared text", edA.Text("doc1"))
	require.Equal(t, edA.Text("doc1"), edB.Text("doc1"))
}

// Applying remote operations records the author's clock for GC.
func Test_Editor_PeerClock_Tracking(t *testing.T) {
	ops := tests.BuildInserts("bob", "abc")

	ed := newTestEditor(t, peer.Configuration{ReplicaID: "alice"})
	for _, op := range ops {
		require.NoError(t, ed.ApplyRemote("doc1", op))
	}

	clocks := ed.PeerClocks()
	require.Equal(t, uint64(3), clocks["bob"])

	// older observations never lower the ack
	ed.AckPeerClock("bob", 1)
	require.Equal(t, uint64(3), ed.PeerClocks()["bob"])

	ed.AckPeerClock("bob", 10)
	require.Equal(t, uint64(10), ed.PeerClocks()["bob"])
}

// The background collector physically removes acknowledged tombstones.
func Test_Editor_GC_Ticker(t *testing.T) {
	ed := newTestEditor(t, peer.Configuration{
		ReplicaID:  "alice",
		GCInterval: 10 * time.Millisecond,
	})

	for i, r := range "abc" {
		_, err := ed.Insert("doc1", i, r)
		require.NoError(t, err)
	}
	_, err := ed.Delete("doc1", 1)
	require.NoError(t, err)

	require.Equal(t, "ac", ed.Text("doc1"))
	require.Equal(t, 1, ed.TombstoneCount("doc1"))

	// every peer is past the deleted record's clock
	ed.AckPeerClock("bob", 99)

	require.Eventually(t, func() bool {
		return ed.TombstoneCount("doc1") == 0
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "ac", ed.Text("doc1"))
}

// Start and Stop are safe to call from multiple goroutines and in any order.
func Test_Editor_Start_Stop_Concurrent(t *testing.T) {
	ed := editorFac(peer.Configuration{
		ReplicaID:  "alice",
		GCInterval: time.Millisecond,
		LogLevel:   zerolog.ErrorLevel,
	})

	// Stop before any Start is a no-op.
	require.NoError(t, ed.Stop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			require.NoError(t, ed.Start())
		}()
		go func() {
			defer wg.Done()
			require.NoError(t, ed.Stop())
		}()
	}
	wg.Wait()
	require.NoError(t, ed.Stop())

	_, err := ed.Insert("doc1", 0, 'a')
	require.NoError(t, err)
	require.Equal(t, "a", ed.Text("doc1"))
}

// Malformed remote input is rejected without touching the document.
func Test_Editor_ApplyRemote_Malformed(t *testing.T) {
	ed := newTestEditor(t, peer.Configuration{ReplicaID: "alice"})

	_, err := ed.Insert("doc1", 0, 'a')
	require.NoError(t, err)

	err = ed.ApplyRemote("doc1", types.CRDTOperation{Type: "mystery"})
	require.ErrorIs(t, err, types.ErrMalformedOperation)
	require.Equal(t, "a", ed.Text("doc1"))
}
