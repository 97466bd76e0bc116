package orchestrator

import (
	"errors"
	"time"

	"github.com/tad-chat/tad/internal/e2ecrypto"
	"github.com/tad-chat/tad/internal/message"
	"github.com/tad-chat/tad/internal/model"
	"github.com/tad-chat/tad/internal/persistence"
)

// CreateChannel creates a new channel, public or private (invite-based),
// and announces its existence to connected peers. A private channel's
// key never leaves this node except through InvitePeer.
func (n *Node) CreateChannel(name string, private bool) (*model.Channel, error) {
	if _, err := n.store.GetChannel(name); err == nil {
		return nil, ErrChannelExists
	} else if !errors.Is(err, persistence.ErrChannelNotFound) {
		return nil, err
	}

	now := time.Now()
	ch := &model.Channel{Name: name, CreatedAt: now, LastActivity: now}
	if private {
		key, err := e2ecrypto.NewChannelKey()
		if err != nil {
			return nil, err
		}
		ch.Encrypted = true
		ch.Key = key
	}

	if err := n.store.CreateChannel(ch); err != nil {
		return nil, err
	}
	if err := n.store.AddMember(name, n.identity.NodeID(), now); err != nil {
		return nil, err
	}
	if private {
		if err := n.store.SaveChannelKey(name, ch.Key); err != nil {
			return nil, err
		}
	}

	n.fabric.Broadcast(&message.Envelope{
		Type:      message.EnvelopeCreateChannel,
		NodeID:    n.identity.NodeID(),
		Channel:   name,
		Encrypted: private,
	}, nil)

	n.emit(func() {
		if n.cb.OnChannelJoined != nil {
			n.cb.OnChannelJoined(name)
		}
	})
	return ch, nil
}

// CreateLegacyChannel creates a public channel keyed by a shared
// passphrase instead of invite-distributed keys (spec §9 Open Question,
// resolved in DESIGN.md: legacy password channels and invite-based
// private channels are mutually exclusive per channel).
func (n *Node) CreateLegacyChannel(name, passphrase string) (*model.Channel, error) {
	if _, err := n.store.GetChannel(name); err == nil {
		return nil, ErrChannelExists
	} else if !errors.Is(err, persistence.ErrChannelNotFound) {
		return nil, err
	}

	salt, err := e2ecrypto.NewSalt()
	if err != nil {
		return nil, err
	}
	key := e2ecrypto.DeriveLegacyKey(passphrase, salt)
	hash := e2ecrypto.HashPassword(passphrase, salt)

	now := time.Now()
	ch := &model.Channel{Name: name, Encrypted: true, PasswordHash: hash, Salt: salt, Key: key, CreatedAt: now, LastActivity: now}
	if err := n.store.CreateChannel(ch); err != nil {
		return nil, err
	}
	if err := n.store.SaveChannelKey(name, key); err != nil {
		return nil, err
	}
	if err := n.store.AddMember(name, n.identity.NodeID(), now); err != nil {
		return nil, err
	}

	n.fabric.Broadcast(&message.Envelope{
		Type:      message.EnvelopeCreateChannel,
		NodeID:    n.identity.NodeID(),
		Channel:   name,
		Encrypted: true,
		Salt:      salt,
	}, nil)

	n.emit(func() {
		if n.cb.OnChannelJoined != nil {
			n.cb.OnChannelJoined(name)
		}
	})
	return ch, nil
}

// JoinChannel joins a known channel that is not invite-only: a public
// channel, or a legacy password channel, for which it records membership
// without deriving a key (JoinLegacyChannel derives it). Invite-only
// private channels are rejected with ErrNotPrivateChannel.
func (n *Node) JoinChannel(name string) error {
	ch, err := n.store.GetChannel(name)
	if errors.Is(err, persistence.ErrChannelNotFound) {
		return ErrChannelNotFound
	}
	if err != nil {
		return err
	}
	if ch.Encrypted && !ch.IsLegacyPassword() {
		return ErrNotPrivateChannel // invite-only; use InvitePeer from an existing member
	}

	now := time.Now()
	if err := n.store.AddMember(name, n.identity.NodeID(), now); err != nil {
		return err
	}
	n.fabric.Broadcast(&message.Envelope{Type: message.EnvelopeJoinChannel, NodeID: n.identity.NodeID(), Channel: name}, nil)

	n.emit(func() {
		if n.cb.OnChannelJoined != nil {
			n.cb.OnChannelJoined(name)
		}
	})
	return nil
}

// JoinLegacyChannel joins a password-derived public channel: the
// channel's salt must already be known locally (received via a
// create_channel announcement), and the key derived here must match the
// owner's for ciphertext to decrypt; a wrong passphrase surfaces later,
// on the first undecryptable message, not here.
func (n *Node) JoinLegacyChannel(name, passphrase string) error {
	ch, err := n.store.GetChannel(name)
	if errors.Is(err, persistence.ErrChannelNotFound) {
		return ErrChannelNotFound
	}
	if err != nil {
		return err
	}
	if !ch.IsLegacyPassword() {
		return ErrNotPrivateChannel
	}

	key := e2ecrypto.DeriveLegacyKey(passphrase, ch.Salt)
	if err := n.store.SaveChannelKey(name, key); err != nil {
		return err
	}
	now := time.Now()
	if err := n.store.AddMember(name, n.identity.NodeID(), now); err != nil {
		return err
	}
	n.fabric.Broadcast(&message.Envelope{Type: message.EnvelopeJoinChannel, NodeID: n.identity.NodeID(), Channel: name}, nil)

	n.emit(func() {
		if n.cb.OnChannelJoined != nil {
			n.cb.OnChannelJoined(name)
		}
	})
	return nil
}

// LeaveChannel removes local membership and announces the departure.
func (n *Node) LeaveChannel(name string) error {
	if err := n.store.RemoveMember(name, n.identity.NodeID()); err != nil {
		return err
	}
	n.fabric.Broadcast(&message.Envelope{Type: message.EnvelopeLeaveChannel, NodeID: n.identity.NodeID(), Channel: name}, nil)

	n.emit(func() {
		if n.cb.OnChannelLeft != nil {
			n.cb.OnChannelLeft(name)
		}
	})
	return nil
}

// InvitePeer seals the channel key to peerNodeID's X25519 public key and
// gossips the invite (spec §4.5 steps 1-3). The caller must already be a
// member of an invite-based private channel.
func (n *Node) InvitePeer(channel, peerNodeID string) error {
	ch, err := n.store.GetChannel(channel)
	if errors.Is(err, persistence.ErrChannelNotFound) {
		return ErrChannelNotFound
	}
	if err != nil {
		return err
	}
	if !ch.IsPrivate() {
		return ErrNotPrivateChannel
	}
	isMember, err := n.store.IsMember(channel, n.identity.NodeID())
	if err != nil {
		return err
	}
	if !isMember {
		return ErrInviteDenied
	}

	peer, err := n.store.GetPeer(peerNodeID)
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrPeerUnknown
	}
	if err != nil {
		return err
	}
	if len(peer.EncryptKey) != 32 {
		return ErrPeerUnknown
	}

	var recipientPub [32]byte
	copy(recipientPub[:], peer.EncryptKey)

	payload := &e2ecrypto.InvitePayload{
		ChannelName: channel,
		ChannelKey:  ch.Key,
		IssuerID:    n.identity.NodeID(),
		IssuedAt:    float64(time.Now().Unix()),
	}
	sealed, err := e2ecrypto.SealInvite(payload, &recipientPub)
	if err != nil {
		return err
	}

	_, err = n.gossip.SendInvite(peerNodeID, sealed)
	return err
}

// SendMessage broadcasts content on channel through the gossip engine.
func (n *Node) SendMessage(channel, content string) error {
	_, err := n.gossip.Broadcast(channel, content)
	return err
}

// ListChannels returns every known channel.
func (n *Node) ListChannels() ([]*model.Channel, error) {
	return n.store.ListChannels()
}

// History returns up to limit persisted messages for a channel, oldest
// first.
func (n *Node) History(channel string, limit int) ([]*message.Message, error) {
	return n.store.ListMessages(channel, limit)
}

// Search performs a case-insensitive substring search over message
// content, optionally scoped to one channel.
func (n *Node) Search(channel, query string, limit int) ([]*message.Message, error) {
	return n.store.SearchMessages(channel, query, limit)
}
