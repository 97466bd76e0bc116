package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tad-chat/tad/internal/message"
)

func TestSendInvitePersistsAndUsesInviteChannel(t *testing.T) {
	store := newTestStore(t)
	id := newTestIdentity(t)
	engine := newEngine(t, id, store)

	m, err := engine.SendInvite("targetnode", []byte("sealed-payload"))
	require.NoError(t, err)

	target, ok := message.InviteTarget(m.Channel)
	require.True(t, ok)
	assert.Equal(t, "targetnode", target)

	seen, err := store.HasSeen(m.ID)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestEngineWarmsCacheFromPersistedEntries(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	require.NoError(t, store.InsertSeen("already-seen", now))

	id := newTestIdentity(t)
	engine := newEngine(t, id, store)

	assert.True(t, engine.cache.seen("already-seen"))
}

func TestReceiveInviteDoesNotSurfaceAsLearnedChannel(t *testing.T) {
	store := newTestStore(t)
	senderID := newTestIdentity(t)
	registerSender(t, store, senderID)
	recipient := newTestIdentity(t)
	engine := newEngine(t, recipient, store)

	var learned string
	engine.cfg.OnChannelLearned = func(channel string) { learned = channel }

	m := signedMessage(t, senderID, message.InviteChannelFor(recipient.NodeID()), "sealed-payload")
	require.NoError(t, engine.Receive(m, "peerA"))

	assert.Empty(t, learned)

	stored, err := store.GetMessage(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "sealed-payload", stored.Content)
}

func TestSyncAndPeerRequestRateLimitsApplyIndependently(t *testing.T) {
	store := newTestStore(t)
	id := newTestIdentity(t)
	engine := newEngine(t, id, store)

	for i := 0; i < 5; i++ {
		assert.True(t, engine.SyncRequestAllowed("peerA"))
	}
	assert.False(t, engine.SyncRequestAllowed("peerA"))

	// peer_request bucket for the same peer is unaffected.
	assert.True(t, engine.PeerRequestAllowed("peerA"))
}
