package orchestrator

import (
	"io"

	"github.com/tad-chat/tad/internal/message"
	"github.com/tad-chat/tad/internal/model"
)

// ListPeers returns every known peer (spec §6 CLI surface "list peers").
func (n *Node) ListPeers() ([]*model.Peer, error) {
	return n.store.ListPeers()
}

// SetBlocked marks a peer as blocked or unblocked. The gossip ingress
// path drops frames from blocked peers before signature verification.
func (n *Node) SetBlocked(nodeID string, blocked bool) error {
	return n.store.SetBlocked(nodeID, blocked)
}

// RequestPeerExchange asks a connected peer for its known-peers list, to
// discover candidates outside mDNS's multicast range (spec §6 envelope
// set, SUPPLEMENTED FEATURES).
func (n *Node) RequestPeerExchange(peerID string) error {
	return n.fabric.Send(peerID, &message.Envelope{Type: message.EnvelopePeerRequest, NodeID: n.identity.NodeID()})
}

// RequestSync asks a connected peer for messages newer than since on a
// channel, to catch up after a period of disconnection.
func (n *Node) RequestSync(peerID, channel string, since float64) error {
	return n.fabric.Send(peerID, &message.Envelope{
		Type:    message.EnvelopeSyncRequest,
		NodeID:  n.identity.NodeID(),
		Channel: channel,
		Since:   since,
	})
}

// Export streams the full persisted state as JSON Lines (spec §1 "only
// the on-disk schema must remain stable").
func (n *Node) Export(w io.Writer) error {
	return n.store.Snapshot(w)
}

// Import restores persisted state from a previously exported stream.
func (n *Node) Import(r io.Reader) error {
	return n.store.Restore(r)
}
