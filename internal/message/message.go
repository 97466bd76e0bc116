// Package message defines the dissemination unit (Message), its canonical
// signing encoding, the wire envelope types and the newline-delimited JSON
// framing used by the connection fabric.
package message

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Message is the gossip dissemination unit. Signature, TTL and HopCount are
// transport/authentication fields layered on top of the content fields and
// are excluded from the canonical signing encoding (see Canonical).
type Message struct {
	ID         string `json:"id"`
	Timestamp  float64 `json:"timestamp"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Channel    string `json:"channel"`
	Content    string `json:"content"`
	Encrypted  bool   `json:"encrypted"`
	Signature  []byte `json:"signature,omitempty"`
	Nonce      []byte `json:"nonce,omitempty"`
	TTL        int    `json:"ttl,omitempty"`
	HopCount   int    `json:"hop_count,omitempty"`
}

// NewID returns a fresh random 128-bit message ID, rendered as text.
func NewID() string {
	return uuid.NewString()
}

// Canonical renders the fields used for signing: every Message field
// except Signature, TTL and HopCount, as JSON with lexicographically
// sorted keys and no inter-token whitespace. Binary fields (Nonce) are
// base64-encoded, which encoding/json does automatically for []byte.
//
// Marshaling a Go map[string]any already yields sorted keys and a compact
// encoding, so that is used directly as the canonical form rather than
// hand-rolling a serializer.
func Canonical(m *Message) ([]byte, error) {
	fields := map[string]any{
		"id":          m.ID,
		"timestamp":   m.Timestamp,
		"sender_id":   m.SenderID,
		"sender_name": m.SenderName,
		"channel":     m.Channel,
		"content":     m.Content,
		"encrypted":   m.Encrypted,
	}
	// Nonce is present iff Encrypted (data model invariant); keep the
	// canonical field set in lockstep with that invariant so that
	// Canonical(Parse(Canonical(m))) == Canonical(m) always holds.
	if m.Encrypted {
		fields["nonce"] = m.Nonce
	}
	return json.Marshal(fields)
}

// Clone returns a deep copy of m, used before mutating TTL/HopCount for
// re-forwarding so the original is never aliased across goroutines.
func (m *Message) Clone() *Message {
	c := *m
	if m.Signature != nil {
		c.Signature = append([]byte(nil), m.Signature...)
	}
	if m.Nonce != nil {
		c.Nonce = append([]byte(nil), m.Nonce...)
	}
	return &c
}
