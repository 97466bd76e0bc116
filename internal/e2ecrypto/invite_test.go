package e2ecrypto

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

func TestSealOpenInviteRoundTrip(t *testing.T) {
	recipientPub, recipientPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	payload := &InvitePayload{
		ChannelName: "secret-room",
		ChannelKey:  []byte("0123456789abcdef0123456789abcdef"),
		IssuerID:    "node-a",
		IssuedAt:    float64(time.Now().Unix()),
	}

	sealed, err := SealInvite(payload, recipientPub)
	require.NoError(t, err)

	opened, err := OpenInvite(sealed, recipientPub, recipientPriv)
	require.NoError(t, err)
	assert.Equal(t, payload.ChannelName, opened.ChannelName)
	assert.Equal(t, payload.ChannelKey, opened.ChannelKey)
	assert.Equal(t, payload.IssuerID, opened.IssuerID)
}

func TestOpenInviteWrongRecipientFails(t *testing.T) {
	recipientPub, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, wrongPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sealed, err := SealInvite(&InvitePayload{ChannelName: "c", IssuerID: "a", IssuedAt: 1}, recipientPub)
	require.NoError(t, err)

	_, err = OpenInvite(sealed, recipientPub, wrongPriv)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestReplayGuardRejectsReplay(t *testing.T) {
	g := NewReplayGuard(time.Hour)
	now := time.Now()
	payload := &InvitePayload{ChannelName: "c", IssuerID: "a", IssuedAt: float64(now.Unix())}

	assert.NoError(t, g.Check(payload, now))
	assert.ErrorIs(t, g.Check(payload, now), ErrInviteReplayed)
}

func TestReplayGuardRejectsExpired(t *testing.T) {
	g := NewReplayGuard(time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	payload := &InvitePayload{ChannelName: "c", IssuerID: "a", IssuedAt: float64(issued.Unix())}

	err := g.Check(payload, time.Now())
	assert.ErrorIs(t, err, ErrInviteExpired)
}

func TestReplayGuardAllowsDistinctInvites(t *testing.T) {
	g := NewReplayGuard(time.Hour)
	now := time.Now()

	assert.NoError(t, g.Check(&InvitePayload{ChannelName: "c1", IssuerID: "a", IssuedAt: float64(now.Unix())}, now))
	assert.NoError(t, g.Check(&InvitePayload{ChannelName: "c2", IssuerID: "a", IssuedAt: float64(now.Unix())}, now))
}
