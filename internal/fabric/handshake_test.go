package fabric

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tad-chat/tad/internal/message"
)

func TestVersionsCompatible(t *testing.T) {
	assert.True(t, versionsCompatible("1.0.0", "1.2.3"))
	assert.False(t, versionsCompatible("1.0.0", "2.0.0"))
}

func TestHandshakeRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	selfClient := selfInfo{nodeID: "client", signingPub: []byte("client-pub"), encryptPub: []byte("client-enc"), capabilities: []string{"gossip"}}
	selfServer := selfInfo{nodeID: "server", signingPub: []byte("server-pub"), encryptPub: []byte("server-enc")}

	type result struct {
		nodeID string
		pub    []byte
		encPub []byte
		peers  []message.PeerInfo
		err    error
	}
	clientDone := make(chan result, 1)
	serverDone := make(chan result, 1)

	go func() {
		nodeID, pub, encPub, peers, err := outboundHandshake(client, selfClient)
		clientDone <- result{nodeID, pub, encPub, peers, err}
	}()
	go func() {
		knownPeers := []message.PeerInfo{{NodeID: "peer1", Address: "10.0.0.1:8765"}}
		nodeID, pub, encPub, _, err := inboundHandshake(server, selfServer, knownPeers)
		serverDone <- result{nodeID, pub, encPub, nil, err}
	}()

	cr := <-clientDone
	sr := <-serverDone

	require.NoError(t, cr.err)
	require.NoError(t, sr.err)
	assert.Equal(t, "server", cr.nodeID)
	assert.Equal(t, "server-pub", string(cr.pub))
	assert.Equal(t, "server-enc", string(cr.encPub))
	assert.Equal(t, "client", sr.nodeID)
	assert.Equal(t, "client-pub", string(sr.pub))
	assert.Equal(t, "client-enc", string(sr.encPub))
	require.Len(t, cr.peers, 1)
	assert.Equal(t, "peer1", cr.peers[0].NodeID)
}

func TestInboundHandshakeRejectsNonHello(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		w := message.NewFrameWriter(client)
		w.WriteEnvelope(&message.Envelope{Type: message.EnvelopePing})
	}()

	_, _, _, _, err := inboundHandshake(server, selfInfo{nodeID: "server"}, nil)
	assert.ErrorIs(t, err, ErrHandshakeFailed)
}

func TestHandshakeVersionMismatch(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		w := message.NewFrameWriter(client)
		w.WriteEnvelope(&message.Envelope{Type: message.EnvelopeHello, Version: "9.0.0", NodeID: "client"})
		message.NewFrameReader(client).ReadEnvelope() // drain the ERROR reply
	}()

	_, _, _, _, err := inboundHandshake(server, selfInfo{nodeID: "server"}, nil)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}
