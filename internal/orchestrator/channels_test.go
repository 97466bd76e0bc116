package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tad-chat/tad/internal/e2ecrypto"
	"github.com/tad-chat/tad/internal/model"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n, err := New(Config{
		DataDir:    t.TempDir(),
		ListenAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	t.Cleanup(func() { n.store.Close() })
	return n
}

func TestCreateChannelPublic(t *testing.T) {
	n := newTestNode(t)
	ch, err := n.CreateChannel("general", false)
	require.NoError(t, err)
	assert.False(t, ch.Encrypted)

	isMember, err := n.store.IsMember("general", n.identity.NodeID())
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestCreateChannelPrivateGeneratesKey(t *testing.T) {
	n := newTestNode(t)
	ch, err := n.CreateChannel("secret", true)
	require.NoError(t, err)
	assert.True(t, ch.Encrypted)
	assert.Len(t, ch.Key, 32)
	assert.True(t, ch.IsPrivate())
}

func TestCreateChannelTwiceFails(t *testing.T) {
	n := newTestNode(t)
	_, err := n.CreateChannel("general", false)
	require.NoError(t, err)
	_, err = n.CreateChannel("general", false)
	assert.ErrorIs(t, err, ErrChannelExists)
}

func TestCreateLegacyChannelDerivesSameKeyForSamePassphrase(t *testing.T) {
	n := newTestNode(t)
	ch, err := n.CreateLegacyChannel("oldschool", "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, ch.IsLegacyPassword())
	assert.NotEmpty(t, ch.Salt)
	assert.Equal(t, e2ecrypto.DeriveLegacyKey("correct horse battery staple", ch.Salt), ch.Key)
}

func TestJoinChannelRejectsPrivate(t *testing.T) {
	n := newTestNode(t)
	_, err := n.CreateChannel("secret", true)
	require.NoError(t, err)

	err = n.JoinChannel("secret")
	assert.ErrorIs(t, err, ErrNotPrivateChannel)
}

func TestJoinChannelUnknownFails(t *testing.T) {
	n := newTestNode(t)
	err := n.JoinChannel("ghost")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestJoinLegacyChannelDerivesKeyFromSalt(t *testing.T) {
	owner := newTestNode(t)
	_, err := owner.CreateLegacyChannel("pub", "hunter2")
	require.NoError(t, err)
	ch, err := owner.store.GetChannel("pub")
	require.NoError(t, err)

	joiner := newTestNode(t)
	require.NoError(t, joiner.store.CreateChannel(&model.Channel{
		Name: "pub", Encrypted: true, PasswordHash: ch.PasswordHash, Salt: ch.Salt,
		CreatedAt: ch.CreatedAt, LastActivity: ch.LastActivity,
	}))

	require.NoError(t, joiner.JoinLegacyChannel("pub", "hunter2"))
	joined, err := joiner.store.GetChannel("pub")
	require.NoError(t, err)
	assert.Equal(t, ch.Key, joined.Key)
}

func TestLeaveChannelRemovesMembership(t *testing.T) {
	n := newTestNode(t)
	_, err := n.CreateChannel("general", false)
	require.NoError(t, err)

	require.NoError(t, n.LeaveChannel("general"))
	isMember, err := n.store.IsMember("general", n.identity.NodeID())
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestInvitePeerRequiresPrivateChannel(t *testing.T) {
	n := newTestNode(t)
	_, err := n.CreateChannel("general", false)
	require.NoError(t, err)

	err = n.InvitePeer("general", "somepeer")
	assert.ErrorIs(t, err, ErrNotPrivateChannel)
}

func TestInvitePeerRequiresKnownPeer(t *testing.T) {
	n := newTestNode(t)
	_, err := n.CreateChannel("secret", true)
	require.NoError(t, err)

	err = n.InvitePeer("secret", "unknown-peer")
	assert.ErrorIs(t, err, ErrPeerUnknown)
}

func TestSendMessagePersistsViaGossip(t *testing.T) {
	n := newTestNode(t)
	_, err := n.CreateChannel("general", false)
	require.NoError(t, err)

	require.NoError(t, n.SendMessage("general", "hello world"))

	msgs, err := n.History("general", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello world", msgs[0].Content)
}
