package fabric

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tad-chat/tad/internal/message"
)

// IdleTimeout is the read-idle timeout: three missed 30s heartbeats (spec §5).
const IdleTimeout = 90 * time.Second

// HeartbeatInterval is how often PING is sent to maintain liveness (spec §5).
const HeartbeatInterval = 30 * time.Second

// Session is one authoritative peer connection, keyed by node_id once the
// HELLO/WELCOME handshake completes.
type Session struct {
	NodeID    string
	Address   string
	PublicKey []byte // raw Ed25519 signing public key
	EncryptKey []byte // raw X25519 public key

	conn   net.Conn
	reader *message.FrameReader

	writeMu sync.Mutex
	writer  *message.FrameWriter

	lastActivity atomic.Int64 // unix nano

	closeOnce sync.Once
	closeCh   chan struct{}
}

func newSession(conn net.Conn, nodeID string, pubKey, encKey []byte) *Session {
	s := &Session{
		NodeID:     nodeID,
		Address:    conn.RemoteAddr().String(),
		PublicKey:  pubKey,
		EncryptKey: encKey,
		conn:       conn,
		reader:     message.NewFrameReader(conn),
		writer:     message.NewFrameWriter(conn),
		closeCh:    make(chan struct{}),
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}

// Send writes one envelope to this session, serialized against concurrent
// writers the same way the teacher's tcpConn protects Write with a mutex.
func (s *Session) Send(env *message.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.WriteEnvelope(env)
}

// Close tears down the underlying connection. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) done() <-chan struct{} {
	return s.closeCh
}
