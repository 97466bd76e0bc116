// Package fabric implements the connection fabric: accepting inbound TCP
// peers, dialing discovered peers, newline-delimited JSON framing, and the
// lifecycle of one authoritative session per remote node_id (spec §4.2).
//
// Grounded on this codebase's TCP transport ancestor: a listener plus a
// map of live connections guarded by a mutex and one read-loop goroutine per
// connection. Send never dials: it writes to an existing session or fails
// with ErrPeerNotConnected.
package fabric

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/tad-chat/tad/internal/message"
)

// EnvelopeHandler is invoked for every envelope received on any session,
// after the handshake has established its node_id.
type EnvelopeHandler func(nodeID string, env *message.Envelope)

// ConnectHandler is invoked once a session is admitted into the live set.
type ConnectHandler func(nodeID, address string, signingPub, encryptPub []byte)

// DisconnectHandler is invoked once a session is torn down.
type DisconnectHandler func(nodeID string)

// Config configures the Fabric.
type Config struct {
	// ListenAddr is the address to accept inbound connections on, e.g. ":8765".
	ListenAddr string

	// NodeID, SigningPublicKey and EncryptPublicKey identify this node in
	// the handshake; EncryptPublicKey is the node's X25519 public key,
	// carried on HELLO/WELCOME so a newly-connected peer can invite this
	// node into a private channel without a separate key exchange.
	NodeID           string
	SigningPublicKey []byte
	EncryptPublicKey []byte
	Capabilities     []string

	// KnownPeers seeds the peer list advertised in WELCOME. Optional.
	KnownPeers func() []message.PeerInfo

	OnEnvelope    EnvelopeHandler
	OnConnect     ConnectHandler
	OnDisconnect  DisconnectHandler

	LoggerFactory logging.LoggerFactory
}

// Fabric is the connection fabric: one listener, many live sessions.
type Fabric struct {
	cfg Config
	log logging.LeveledLogger

	listener net.Listener

	mu       sync.RWMutex
	sessions map[string]*sessionEntry // keyed by node_id
	started  bool
	closed   bool

	wg      sync.WaitGroup
	closeCh chan struct{}
}

type sessionEntry struct {
	session    *Session
	isOutbound bool
}

// New creates a Fabric. Listen must be called to begin accepting inbound
// connections.
func New(cfg Config) (*Fabric, error) {
	if cfg.OnEnvelope == nil {
		return nil, fmt.Errorf("fabric: OnEnvelope handler is required")
	}

	f := &Fabric{
		cfg:      cfg,
		sessions: make(map[string]*sessionEntry),
		closeCh:  make(chan struct{}),
	}
	if cfg.LoggerFactory != nil {
		f.log = cfg.LoggerFactory.NewLogger("fabric")
	}
	return f, nil
}

// Listen starts accepting inbound TCP connections on cfg.ListenAddr.
func (f *Fabric) Listen() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.started {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", f.cfg.ListenAddr)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.listener = ln
	f.started = true
	f.mu.Unlock()

	if f.log != nil {
		f.log.Infof("fabric listening on %s", ln.Addr())
	}

	f.wg.Add(1)
	go f.acceptLoop()
	return nil
}

// LocalAddr returns the listener's bound address, or nil if not listening.
func (f *Fabric) LocalAddr() net.Addr {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

func (f *Fabric) acceptLoop() {
	defer f.wg.Done()
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			select {
			case <-f.closeCh:
				return
			default:
				continue
			}
		}
		f.wg.Add(1)
		go f.handleInbound(conn)
	}
}

func (f *Fabric) selfInfo() selfInfo {
	return selfInfo{
		nodeID:       f.cfg.NodeID,
		signingPub:   f.cfg.SigningPublicKey,
		encryptPub:   f.cfg.EncryptPublicKey,
		capabilities: f.cfg.Capabilities,
	}
}

func (f *Fabric) knownPeers() []message.PeerInfo {
	if f.cfg.KnownPeers == nil {
		return nil
	}
	return f.cfg.KnownPeers()
}

func (f *Fabric) handleInbound(conn net.Conn) {
	defer f.wg.Done()

	nodeID, pub, encPub, _, err := inboundHandshake(conn, f.selfInfo(), f.knownPeers())
	if err != nil {
		if f.log != nil {
			f.log.Debugf("inbound handshake failed from %s: %v", conn.RemoteAddr(), err)
		}
		conn.Close()
		return
	}

	f.admit(conn, nodeID, pub, encPub, false)
}

// Dial initiates an outbound connection and performs the handshake.
func (f *Fabric) Dial(address string) error {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return ErrClosed
	}
	f.mu.RUnlock()

	conn, err := net.DialTimeout("tcp", address, DialTimeout)
	if err != nil {
		return err
	}

	nodeID, pub, encPub, _, err := outboundHandshake(conn, f.selfInfo())
	if err != nil {
		conn.Close()
		return err
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.admit(conn, nodeID, pub, encPub, true)
	}()
	return nil
}

// admit decides the tie-break, installs the session into the live set and
// runs its read loop until it closes.
func (f *Fabric) admit(conn net.Conn, nodeID string, signingPub, encryptPub []byte, isOutbound bool) {
	sess := newSession(conn, nodeID, signingPub, encryptPub)

	f.mu.Lock()
	if existing, ok := f.sessions[nodeID]; ok {
		if !f.shouldReplace(nodeID, existing.isOutbound, isOutbound) {
			f.mu.Unlock()
			sess.Close()
			return
		}
		f.mu.Unlock()
		existing.session.Close() // triggers its own readLoop cleanup
		f.mu.Lock()
	}
	f.sessions[nodeID] = &sessionEntry{session: sess, isOutbound: isOutbound}
	f.mu.Unlock()

	if f.cfg.OnConnect != nil {
		f.cfg.OnConnect(nodeID, conn.RemoteAddr().String(), signingPub, encryptPub)
	}

	f.wg.Add(1)
	go f.heartbeatLoop(sess)

	f.readLoop(sess)
}

// shouldReplace implements spec §4.2's tie-break: the session whose
// node_id is lexicographically smaller acts as initiator, i.e. the
// surviving direction is outbound iff our own node_id sorts before the
// remote's.
func (f *Fabric) shouldReplace(remoteNodeID string, existingOutbound, newOutbound bool) bool {
	preferOutbound := f.cfg.NodeID < remoteNodeID
	return newOutbound == preferOutbound && existingOutbound != preferOutbound
}

func (f *Fabric) readLoop(sess *Session) {
	defer func() {
		f.mu.Lock()
		if entry, ok := f.sessions[sess.NodeID]; ok && entry.session == sess {
			delete(f.sessions, sess.NodeID)
		}
		f.mu.Unlock()

		sess.Close()
		if f.cfg.OnDisconnect != nil {
			f.cfg.OnDisconnect(sess.NodeID)
		}
	}()

	malformedStrikes := 0
	for {
		select {
		case <-sess.done():
			return
		case <-f.closeCh:
			return
		default:
		}

		env, err := sess.reader.ReadEnvelope()
		if err != nil {
			if err == message.ErrInvalidFormat {
				malformedStrikes++
				if f.log != nil {
					f.log.Debugf("malformed frame from %s (strike %d)", sess.NodeID, malformedStrikes)
				}
				if malformedStrikes > 5 {
					return
				}
				continue
			}
			if err == message.ErrFrameTooLarge && f.log != nil {
				f.log.Warnf("oversize frame from %s, closing", sess.NodeID)
			}
			return
		}
		sess.touch()

		f.cfg.OnEnvelope(sess.NodeID, env)
	}
}

func (f *Fabric) heartbeatLoop(sess *Session) {
	defer f.wg.Done()

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done():
			return
		case <-f.closeCh:
			return
		case <-ticker.C:
			if sess.idleSince() > IdleTimeout {
				sess.Close()
				return
			}
			sess.Send(&message.Envelope{Type: message.EnvelopePing, NodeID: f.cfg.NodeID, Timestamp: nowSeconds()})
		}
	}
}

// Send enqueues an envelope to a specific connected peer.
func (f *Fabric) Send(nodeID string, env *message.Envelope) error {
	f.mu.RLock()
	entry, ok := f.sessions[nodeID]
	f.mu.RUnlock()
	if !ok {
		return ErrPeerNotConnected
	}
	return entry.session.Send(env)
}

// Broadcast sends an envelope to every live session except those in exclude.
// Send failures do not abort the broadcast; per spec §4.4 fan-out is
// best-effort.
func (f *Fabric) Broadcast(env *message.Envelope, exclude map[string]bool) {
	f.mu.RLock()
	targets := make([]*Session, 0, len(f.sessions))
	for id, entry := range f.sessions {
		if exclude != nil && exclude[id] {
			continue
		}
		targets = append(targets, entry.session)
	}
	f.mu.RUnlock()

	for _, sess := range targets {
		_ = sess.Send(env)
	}
}

// LivePeers returns the node_ids of every currently connected peer.
func (f *Fabric) LivePeers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.sessions))
	for id := range f.sessions {
		out = append(out, id)
	}
	return out
}

// IsConnected reports whether a live session exists for nodeID.
func (f *Fabric) IsConnected(nodeID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.sessions[nodeID]
	return ok
}

// Close tears down a single peer's session.
func (f *Fabric) Close(nodeID string) error {
	f.mu.Lock()
	entry, ok := f.sessions[nodeID]
	f.mu.Unlock()
	if !ok {
		return ErrPeerNotConnected
	}
	return entry.session.Close()
}

// Stop shuts down the fabric: the listener, every live session, and waits
// for all goroutines to exit.
func (f *Fabric) Stop() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.closed = true
	close(f.closeCh)
	if f.listener != nil {
		f.listener.Close()
	}
	sessions := make([]*Session, 0, len(f.sessions))
	for _, entry := range f.sessions {
		sessions = append(sessions, entry.session)
	}
	f.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}

	f.wg.Wait()
	return nil
}
