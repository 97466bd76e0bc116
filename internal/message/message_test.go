package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestCanonicalStableAndSorted(t *testing.T) {
	m := &Message{
		ID:        "abc",
		Timestamp: 1700000000.5,
		SenderID:  "node1",
		Channel:   "general",
		Content:   "hi",
	}
	a, err := Canonical(m)
	assert.NoError(t, err)
	b, err := Canonical(m)
	assert.NoError(t, err)
	assert.Equal(t, a, b)

	// keys must sort lexicographically: channel before content before id
	assert.Less(t, indexOf(string(a), `"channel"`), indexOf(string(a), `"content"`))
	assert.Less(t, indexOf(string(a), `"content"`), indexOf(string(a), `"id"`))
}

func TestCanonicalExcludesTransportFields(t *testing.T) {
	base := &Message{ID: "abc", SenderID: "node1", Channel: "general", Content: "hi"}
	withTransport := base.Clone()
	withTransport.Signature = []byte{1, 2, 3}
	withTransport.TTL = 5
	withTransport.HopCount = 2

	a, err := Canonical(base)
	assert.NoError(t, err)
	b, err := Canonical(withTransport)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalIncludesNonceOnlyWhenEncrypted(t *testing.T) {
	plain := &Message{ID: "abc", SenderID: "node1", Channel: "general", Content: "hi"}
	enc := plain.Clone()
	enc.Encrypted = true
	enc.Nonce = []byte{9, 9, 9}

	plainCanon, err := Canonical(plain)
	assert.NoError(t, err)
	assert.NotContains(t, string(plainCanon), "nonce")

	encCanon, err := Canonical(enc)
	assert.NoError(t, err)
	assert.Contains(t, string(encCanon), "nonce")
}

func TestCloneDeepCopiesByteSlices(t *testing.T) {
	m := &Message{ID: "abc", Signature: []byte{1, 2, 3}, Nonce: []byte{4, 5, 6}}
	c := m.Clone()
	c.Signature[0] = 0xff
	c.Nonce[0] = 0xff

	assert.Equal(t, byte(1), m.Signature[0])
	assert.Equal(t, byte(4), m.Nonce[0])
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
