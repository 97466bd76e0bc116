package orchestrator

import (
	"time"

	"github.com/tad-chat/tad/internal/message"
	"github.com/tad-chat/tad/internal/model"
)

// maxPeerExchange and maxSyncMessages bound peer_response/sync_response
// payload sizes (spec SUPPLEMENTED FEATURES).
const (
	maxPeerExchange = 50
	maxSyncMessages = 200
)

// handleEnvelope is the fabric's single envelope dispatch point: a closed
// switch over Type (spec §9 "replace [dynamic dispatch] with a closed
// variant over envelope type"). Unknown types are logged at debug level
// and dropped; no count of them is kept.
func (n *Node) handleEnvelope(fromNodeID string, env *message.Envelope) {
	switch env.Type {
	case message.EnvelopeMessage, message.EnvelopeGossip, message.EnvelopeInvite:
		if env.Message != nil {
			_ = n.gossip.Receive(env.Message, fromNodeID)
		}

	case message.EnvelopeCreateChannel:
		n.onRemoteCreateChannel(fromNodeID, env)

	case message.EnvelopeJoinChannel:
		if err := n.store.AddMember(env.Channel, fromNodeID, time.Now()); err != nil && n.log != nil {
			n.log.Warnf("record remote join of %s by %s: %v", env.Channel, fromNodeID, err)
		}

	case message.EnvelopeLeaveChannel:
		if err := n.store.RemoveMember(env.Channel, fromNodeID); err != nil && n.log != nil {
			n.log.Warnf("record remote leave of %s by %s: %v", env.Channel, fromNodeID, err)
		}

	case message.EnvelopePeerAnnounce:
		n.absorbPeers(env.Peers)

	case message.EnvelopePeerRequest:
		n.onPeerRequest(fromNodeID)

	case message.EnvelopePeerResponse:
		n.absorbPeers(env.Peers)

	case message.EnvelopeSyncRequest:
		n.onSyncRequest(fromNodeID, env)

	case message.EnvelopeSyncResponse:
		for _, m := range env.Messages {
			_ = n.gossip.Receive(m, fromNodeID)
		}

	case message.EnvelopePing:
		_ = n.fabric.Send(fromNodeID, &message.Envelope{Type: message.EnvelopePong, NodeID: n.identity.NodeID()})

	case message.EnvelopePong:
		// session liveness already refreshed by the fabric's read loop.

	case message.EnvelopeError:
		n.emit(func() {
			if n.cb.OnAppError != nil {
				n.cb.OnAppError(env.Code, env.Detail)
			}
		})

	case message.EnvelopeHello, message.EnvelopeWelcome:
		// only valid during the handshake, which the fabric already
		// completed before any envelope reaches this dispatch.

	default:
		if n.log != nil {
			n.log.Debugf("dropping envelope of unknown type %q from %s", env.Type, fromNodeID)
		}
	}
}

func (n *Node) onRemoteCreateChannel(fromNodeID string, env *message.Envelope) {
	now := time.Now()
	ch := &model.Channel{Name: env.Channel, Encrypted: env.Encrypted, Salt: env.Salt, CreatedAt: now, LastActivity: now}
	if err := n.store.CreateChannel(ch); err != nil && n.log != nil {
		n.log.Warnf("record remote channel %s: %v", env.Channel, err)
	}
	if err := n.store.AddMember(env.Channel, fromNodeID, now); err != nil && n.log != nil {
		n.log.Warnf("record creator %s as member of %s: %v", fromNodeID, env.Channel, err)
	}
}

func (n *Node) onPeerRequest(fromNodeID string) {
	if !n.gossip.PeerRequestAllowed(fromNodeID) {
		return
	}
	peers, err := n.store.ListPeers()
	if err != nil {
		return
	}

	out := make([]message.PeerInfo, 0, maxPeerExchange)
	for _, p := range peers {
		if p.Blocked || p.NodeID == fromNodeID || p.Address == "" {
			continue
		}
		out = append(out, message.PeerInfo{NodeID: p.NodeID, Address: p.Address, PublicKey: p.SigningKey, EncryptKey: p.EncryptKey})
		if len(out) >= maxPeerExchange {
			break
		}
	}

	_ = n.fabric.Send(fromNodeID, &message.Envelope{Type: message.EnvelopePeerResponse, NodeID: n.identity.NodeID(), Peers: out})
}

// absorbPeers records peer_announce/peer_response candidates as
// "unknown" status peers without dialing them; a candidate is dialed only
// if mDNS discovery later reports it (handlePeerFound).
func (n *Node) absorbPeers(peers []message.PeerInfo) {
	now := time.Now()
	for _, info := range peers {
		if info.NodeID == "" || info.NodeID == n.identity.NodeID() {
			continue
		}
		existing, err := n.store.GetPeer(info.NodeID)
		if err != nil {
			existing = &model.Peer{NodeID: info.NodeID, FirstSeen: now, Status: model.PeerStatusUnknown}
		}
		if info.Address != "" {
			existing.Address = info.Address
		}
		if len(info.PublicKey) > 0 {
			existing.SigningKey = info.PublicKey
		}
		if len(info.EncryptKey) > 0 {
			existing.EncryptKey = info.EncryptKey
		}
		if err := n.store.UpsertPeer(existing); err != nil && n.log != nil {
			n.log.Warnf("absorb peer %s: %v", info.NodeID, err)
		}
	}
}

func (n *Node) onSyncRequest(fromNodeID string, env *message.Envelope) {
	if !n.gossip.SyncRequestAllowed(fromNodeID) {
		return
	}
	msgs, err := n.store.MessagesSince(env.Channel, env.Since, maxSyncMessages)
	if err != nil {
		return
	}
	_ = n.fabric.Send(fromNodeID, &message.Envelope{
		Type:     message.EnvelopeSyncResponse,
		NodeID:   n.identity.NodeID(),
		Channel:  env.Channel,
		Messages: msgs,
	})
}
