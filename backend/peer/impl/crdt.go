package impl

import (
	"Syncrate/backend/crdt"
	"Syncrate/backend/types"
)

// Insert implements peer.Editor
func (n *node) Insert(docID string, index int, r rune) (types.CRDTOperation, error) {
	var op types.CRDTOperation
	err := n.docs.WithDoc(docID, func(d *crdt.Document) error {
		var err error
		op, err = d.Insert(index, r)
		return err
	})
	if err != nil {
		return types.CRDTOperation{}, err
	}

	n.logCRDT.Debug().Msgf("insert %s", op)
	n.broadcast(docID, op)
	return op, nil
}

// Delete implements peer.Editor
func (n *node) Delete(docID string, index int) (types.CRDTOperation, error) {
	var op types.CRDTOperation
	err := n.docs.WithDoc(docID, func(d *crdt.Document) error {
		var err error
		op, err = d.Delete(index)
		return err
	})
	if err != nil {
		return types.CRDTOperation{}, err
	}

	n.logCRDT.Debug().Msgf("delete %s", op)
	n.broadcast(docID, op)
	return op, nil
}

// ApplyRemote implements peer.Editor
func (n *node) ApplyRemote(docID string, op types.CRDTOperation) error {
	err := n.docs.WithDoc(docID, func(d *crdt.Document) error {
		return d.Apply(op)
	})
	if err != nil {
		return err
	}

	// The operation is an observation of its author's clock.
	n.peerClocks.Ack(op.ID.Origin, op.ID.Clock)
	return nil
}

// ApplyMessage implements peer.Editor
func (n *node) ApplyMessage(docID string, msg types.CRDTOperationsMessage) error {
	n.logCRDT.Debug().Msgf("ApplyMessage: %d operations", len(msg.Operations))
	for _, op := range msg.Operations {
		if err := n.ApplyRemote(docID, op); err != nil {
			return err
		}
	}
	return nil
}

// Text implements peer.Editor
func (n *node) Text(docID string) string {
	var text string
	n.docs.ReadDoc(docID, func(d *crdt.Document) {
		text = d.Text()
	})
	return text
}

// Clock implements peer.Editor
func (n *node) Clock(docID string) uint64 {
	var clock uint64
	n.docs.ReadDoc(docID, func(d *crdt.Document) {
		clock = d.Clock()
	})
	return clock
}

// AckPeerClock implements peer.Editor
func (n *node) AckPeerClock(origin string, clock uint64) {
	n.peerClocks.Ack(origin, clock)
}

// PeerClocks implements peer.Editor
func (n *node) PeerClocks() map[string]uint64 {
	return n.peerClocks.Snapshot()
}

// CollectTombstones implements peer.Editor
func (n *node) CollectTombstones(docID string) {
	clocks := n.peerClocks.Snapshot()
	n.docs.ReadDoc(docID, func(d *crdt.Document) {
		d.CollectTombstones(clocks)
	})
}

// TombstoneCount implements peer.Editor
func (n *node) TombstoneCount(docID string) int {
	var count int
	n.docs.ReadDoc(docID, func(d *crdt.Document) {
		count = d.TombstoneCount()
	})
	return count
}

func (n *node) broadcast(docID string, ops ...types.CRDTOperation) {
	if n.conf.Broadcast == nil {
		return
	}
	n.conf.Broadcast(docID, types.CRDTOperationsMessage{Operations: ops})
}
