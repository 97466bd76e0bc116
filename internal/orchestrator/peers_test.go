package orchestrator

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tad-chat/tad/internal/model"
)

func TestSetBlockedRoundTrip(t *testing.T) {
	n := newTestNode(t)
	now := time.Now()
	require.NoError(t, n.store.UpsertPeer(&model.Peer{NodeID: "peerA", Address: "10.0.0.1:8765", FirstSeen: now, LastSeen: now}))

	require.NoError(t, n.SetBlocked("peerA", true))
	peer, err := n.store.GetPeer("peerA")
	require.NoError(t, err)
	assert.True(t, peer.Blocked)

	require.NoError(t, n.SetBlocked("peerA", false))
	peer, err = n.store.GetPeer("peerA")
	require.NoError(t, err)
	assert.False(t, peer.Blocked)
}

func TestListPeersReturnsUpserted(t *testing.T) {
	n := newTestNode(t)
	now := time.Now()
	require.NoError(t, n.store.UpsertPeer(&model.Peer{NodeID: "peerA", Address: "10.0.0.1:8765", FirstSeen: now, LastSeen: now}))

	peers, err := n.ListPeers()
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "peerA", peers[0].NodeID)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestNode(t)
	_, err := src.CreateChannel("general", false)
	require.NoError(t, err)
	require.NoError(t, src.SendMessage("general", "hi there"))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))
	assert.NotZero(t, buf.Len())

	dst := newTestNode(t)
	require.NoError(t, dst.Import(bytes.NewReader(buf.Bytes())))

	msgs, err := dst.History("general", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi there", msgs[0].Content)
}
