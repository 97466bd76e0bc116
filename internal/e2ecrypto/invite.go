package e2ecrypto

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/box"
)

// DefaultInviteWindow is how far in the past an invite's issued_at may be
// before it is considered expired (spec §4.5 step 4).
const DefaultInviteWindow = 24 * time.Hour

// InvitePayload is the plaintext sealed inside an invite envelope.
type InvitePayload struct {
	ChannelName string  `json:"channel_name"`
	ChannelKey  []byte  `json:"channel_key"`
	IssuerID    string  `json:"issuer_id"`
	IssuedAt    float64 `json:"issued_at"`
}

// SealInvite serializes payload canonically and seals it with an
// anonymous-sender sealed box to the recipient's X25519 public key. The
// sender has no identity inside the sealed box; authenticity is instead
// guaranteed by the outer gossip Message's Ed25519 signature (spec §4.5
// step 2).
func SealInvite(payload *InvitePayload, recipientPub *[32]byte) ([]byte, error) {
	// A map marshals with sorted keys, giving the canonical form.
	plaintext, err := json.Marshal(map[string]any{
		"channel_name": payload.ChannelName,
		"channel_key":  payload.ChannelKey,
		"issuer_id":    payload.IssuerID,
		"issued_at":    payload.IssuedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	sealed, err := box.SealAnonymous(nil, plaintext, recipientPub, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	return sealed, nil
}

// OpenInvite opens a sealed invite with the local node's X25519 keypair.
func OpenInvite(sealed []byte, recipientPub, recipientPriv *[32]byte) (*InvitePayload, error) {
	plaintext, ok := box.OpenAnonymous(nil, sealed, recipientPub, recipientPriv)
	if !ok {
		return nil, ErrOpenFailed
	}

	var payload InvitePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return &payload, nil
}

// ReplayGuard tracks processed invites by (issuer_id, channel_name,
// issued_at) so a replayed or stale invite is dropped (spec §4.5 step 4).
// It is an in-memory, best-effort guard: invites are small, infrequent,
// and re-inviting to the same channel is harmless (it just overwrites the
// stored key), so surviving a restart is not required.
type ReplayGuard struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

// NewReplayGuard creates a guard with the given acceptance window. A zero
// window uses DefaultInviteWindow.
func NewReplayGuard(window time.Duration) *ReplayGuard {
	if window <= 0 {
		window = DefaultInviteWindow
	}
	return &ReplayGuard{window: window, seen: make(map[string]time.Time)}
}

// Check validates freshness and replay status for an invite, recording it
// as processed if accepted. now is passed in rather than read internally
// so callers can test deterministically.
func (g *ReplayGuard) Check(payload *InvitePayload, now time.Time) error {
	issued := time.Unix(int64(payload.IssuedAt), 0)
	if now.Sub(issued) > g.window {
		return ErrInviteExpired
	}

	key := inviteKey(payload.IssuerID, payload.ChannelName, payload.IssuedAt)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[key]; ok {
		return ErrInviteReplayed
	}
	g.seen[key] = now
	g.prune(now)
	return nil
}

func (g *ReplayGuard) prune(now time.Time) {
	for k, t := range g.seen {
		if now.Sub(t) > g.window {
			delete(g.seen, k)
		}
	}
}

func inviteKey(issuerID, channel string, issuedAt float64) string {
	return fmt.Sprintf("%s|%s|%d", issuerID, channel, int64(issuedAt))
}
