// Package model holds the plain data records shared across the TAD core:
// peers, channels and channel membership. Records are joined by opaque IDs
// only; there are no object-graph cycles in memory, persistence owns the
// foreign-key relationships (see internal/persistence).
package model

import "time"

// PeerStatus describes the last-known reachability of a Peer.
type PeerStatus string

const (
	PeerStatusOnline  PeerStatus = "online"
	PeerStatusOffline PeerStatus = "offline"
	PeerStatusUnknown PeerStatus = "unknown"
)

// Peer is an observed remote node.
type Peer struct {
	NodeID       string
	Address      string // host:port, as dialable by the connection fabric
	SigningKey   []byte // 32-byte raw Ed25519 public key
	EncryptKey   []byte // 32-byte raw X25519 public key
	FirstSeen    time.Time
	LastSeen     time.Time
	Status       PeerStatus
	Blocked      bool
	DisplayName  string
}

// Channel is a named routing and (if private) access-controlled key scope.
type Channel struct {
	Name           string
	Encrypted      bool
	PasswordHash   []byte // legacy password-derived public channels, see Open Questions
	Salt           []byte
	Key            []byte // 32-byte symmetric key for private channels, held in memory
	CreatedAt      time.Time
	LastActivity   time.Time
	MessageCount   int64
}

// IsPrivate reports whether the channel is access-controlled by an
// invite-distributed symmetric key, as opposed to a public or
// legacy password-derived channel.
func (c *Channel) IsPrivate() bool {
	return c.Encrypted && len(c.Key) > 0 && !c.IsLegacyPassword()
}

// IsLegacyPassword reports whether the channel uses the legacy
// password-derived keying path instead of invite-based key distribution:
// it carries a salt or a password hash. A node that learned the channel
// from a create_channel announcement holds only the salt.
func (c *Channel) IsLegacyPassword() bool {
	return len(c.PasswordHash) > 0 || len(c.Salt) > 0
}

// Membership records (channel, peer) access control / subscription state.
// For private channels this is authoritative access control; for public
// channels it is an advisory subscription list used for early filtering.
type Membership struct {
	Channel  string
	PeerID   string
	JoinedAt time.Time
	LastRead time.Time
}
