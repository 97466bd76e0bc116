package fabric

import (
	"net"
	"strings"
	"time"

	"github.com/tad-chat/tad/internal/message"
)

// DialTimeout bounds the connect + handshake round trip (spec §5).
const DialTimeout = 10 * time.Second

// versionsCompatible reports whether two semver strings share a major
// component. TAD has shipped only one major version so far; this keeps
// the door open for a future bump without touching callers.
func versionsCompatible(a, b string) bool {
	major := func(v string) string {
		if i := strings.IndexByte(v, '.'); i >= 0 {
			return v[:i]
		}
		return v
	}
	return major(a) == major(b)
}

// selfInfo is what this node presents during the handshake.
type selfInfo struct {
	nodeID       string
	signingPub   []byte
	encryptPub   []byte
	capabilities []string
}

// outboundHandshake performs the client side: send HELLO, read WELCOME.
// Returns the remote's advertised node_id, signing public key, encryption
// public key and peer list. The encryption key rides along on the same
// HELLO/WELCOME exchange as the signing key (spec's Peer data model:
// "public encryption key... created on first discovery or HELLO
// receipt") rather than a separate round trip, since both are static,
// always-present identity facts the peer needs before InvitePeer can
// ever target it.
func outboundHandshake(conn net.Conn, self selfInfo) (remoteNodeID string, remotePub, remoteEncryptPub []byte, peers []message.PeerInfo, err error) {
	conn.SetDeadline(time.Now().Add(DialTimeout))
	defer conn.SetDeadline(time.Time{})

	writer := message.NewFrameWriter(conn)
	reader := message.NewFrameReader(conn)

	hello := &message.Envelope{
		Type:         message.EnvelopeHello,
		Version:      message.ProtocolVersion,
		NodeID:       self.nodeID,
		PublicKey:    self.signingPub,
		EncryptKey:   self.encryptPub,
		Timestamp:    nowSeconds(),
		Capabilities: self.capabilities,
	}
	if err := writer.WriteEnvelope(hello); err != nil {
		return "", nil, nil, nil, err
	}

	env, err := reader.ReadEnvelope()
	if err != nil {
		return "", nil, nil, nil, err
	}
	if env.Type == message.EnvelopeError {
		return "", nil, nil, nil, ErrVersionMismatch
	}
	if env.Type != message.EnvelopeWelcome {
		return "", nil, nil, nil, ErrHandshakeFailed
	}
	if !versionsCompatible(env.Version, message.ProtocolVersion) {
		return "", nil, nil, nil, ErrVersionMismatch
	}

	return env.NodeID, env.PublicKey, env.EncryptKey, env.Peers, nil
}

// inboundHandshake performs the server side: read HELLO, send WELCOME (or
// an ERROR and close, on version mismatch).
func inboundHandshake(conn net.Conn, self selfInfo, knownPeers []message.PeerInfo) (remoteNodeID string, remotePub, remoteEncryptPub []byte, remoteCaps []string, err error) {
	conn.SetDeadline(time.Now().Add(DialTimeout))
	defer conn.SetDeadline(time.Time{})

	writer := message.NewFrameWriter(conn)
	reader := message.NewFrameReader(conn)

	env, err := reader.ReadEnvelope()
	if err != nil {
		return "", nil, nil, nil, err
	}
	if env.Type != message.EnvelopeHello {
		return "", nil, nil, nil, ErrHandshakeFailed
	}

	if !versionsCompatible(env.Version, message.ProtocolVersion) {
		writer.WriteEnvelope(&message.Envelope{
			Type: message.EnvelopeError,
			Code: message.ErrCodeProtocolVersionMismatch,
		})
		return "", nil, nil, nil, ErrVersionMismatch
	}

	welcome := &message.Envelope{
		Type:       message.EnvelopeWelcome,
		Version:    message.ProtocolVersion,
		NodeID:     self.nodeID,
		PublicKey:  self.signingPub,
		EncryptKey: self.encryptPub,
		Timestamp:  nowSeconds(),
		Peers:      knownPeers,
	}
	if err := writer.WriteEnvelope(welcome); err != nil {
		return "", nil, nil, nil, err
	}

	return env.NodeID, env.PublicKey, env.EncryptKey, env.Capabilities, nil
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
