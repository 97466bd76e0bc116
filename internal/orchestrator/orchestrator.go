// Package orchestrator wires Identity, Persistence, the Connection
// Fabric, Discovery and the Gossip Engine into one node, and fans out
// events to the UI layer through a single sequenced consumer (spec §2,
// §5). It is the only component aware of all the others; every other
// package depends only on the handles it is explicitly given.
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/tad-chat/tad/internal/discovery"
	"github.com/tad-chat/tad/internal/e2ecrypto"
	"github.com/tad-chat/tad/internal/fabric"
	"github.com/tad-chat/tad/internal/gossip"
	"github.com/tad-chat/tad/internal/identity"
	"github.com/tad-chat/tad/internal/message"
	"github.com/tad-chat/tad/internal/model"
	"github.com/tad-chat/tad/internal/persistence"
)

// Config configures a Node.
type Config struct {
	// DataDir holds identity keys, the message database and the profile
	// file (spec §6 "Persisted state layout").
	DataDir string

	// ListenAddr is the connection fabric's inbound address, e.g. ":8765".
	ListenAddr string

	// DiscoveryPort is advertised over mDNS; it should match the port
	// ListenAddr binds to.
	DiscoveryPort int

	Capabilities []string

	MaintenanceInterval time.Duration

	Callbacks Callbacks

	LoggerFactory logging.LoggerFactory
}

// Node is a fully wired TAD node: one identity, one local store, one
// fabric, one discovery instance, one gossip engine.
type Node struct {
	cfg Config
	log logging.LeveledLogger

	identity *identity.Identity
	store    *persistence.Store
	fabric   *fabric.Fabric
	disc     *discovery.Discovery
	gossip   *gossip.Engine

	invites *e2ecrypto.ReplayGuard

	events *eventQueue
	cb     Callbacks

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	maintCtx    context.Context
	maintCancel context.CancelFunc
}

// New loads or creates the node's identity, opens its store, and wires
// the fabric/discovery/gossip components without starting any network
// activity; call Start to begin listening, advertising and browsing.
func New(cfg Config) (*Node, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%d", discovery.DefaultPort)
	}
	if cfg.DiscoveryPort == 0 {
		cfg.DiscoveryPort = discovery.DefaultPort
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = 10 * time.Minute
	}

	id, err := identity.Load(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load identity: %w", err)
	}

	store, err := persistence.Open(persistence.Config{
		Path:          filepath.Join(cfg.DataDir, "tad.db"),
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open store: %w", err)
	}

	n := &Node{
		cfg:      cfg,
		identity: id,
		store:    store,
		invites:  e2ecrypto.NewReplayGuard(e2ecrypto.DefaultInviteWindow),
		events:   newEventQueue(),
		cb:       cfg.Callbacks,
	}
	if cfg.LoggerFactory != nil {
		n.log = cfg.LoggerFactory.NewLogger("orchestrator")
	}

	encPub := id.EncryptPublicKey()
	n.fabric, err = fabric.New(fabric.Config{
		ListenAddr:       cfg.ListenAddr,
		NodeID:           id.NodeID(),
		SigningPublicKey: id.SigningPublicKey(),
		EncryptPublicKey: encPub[:],
		Capabilities:     cfg.Capabilities,
		KnownPeers:       n.knownPeers,
		OnEnvelope:       n.handleEnvelope,
		OnConnect:        n.handleConnect,
		OnDisconnect:     n.handleDisconnect,
		LoggerFactory:    cfg.LoggerFactory,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("orchestrator: create fabric: %w", err)
	}

	n.gossip, err = gossip.NewEngine(gossip.Config{
		Store:            store,
		Identity:         id,
		Fabric:           n.fabric,
		OnMessage:        n.handleGossipMessage,
		OnDrop:           n.handleDrop,
		OnRateExceeded:   func(peerID string) { _ = n.fabric.Close(peerID) },
		OnChannelLearned: n.handleChannelLearned,
		LoggerFactory:    cfg.LoggerFactory,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("orchestrator: create gossip engine: %w", err)
	}

	n.disc, err = discovery.New(discovery.Config{
		NodeID:        id.NodeID(),
		Port:          cfg.DiscoveryPort,
		Version:       message.ProtocolVersion,
		OnPeerFound:   n.handlePeerFound,
		OnPeerLost:    n.handlePeerLost,
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("orchestrator: create discovery: %w", err)
	}

	return n, nil
}

// Identity exposes the node's identity for the CLI layer to print
// node_id / display name.
func (n *Node) Identity() *identity.Identity { return n.identity }

func (n *Node) knownPeers() []message.PeerInfo {
	peers, err := n.store.ListPeers()
	if err != nil {
		return nil
	}
	out := make([]message.PeerInfo, 0, len(peers))
	for _, p := range peers {
		if p.Blocked || p.Address == "" {
			continue
		}
		out = append(out, message.PeerInfo{NodeID: p.NodeID, Address: p.Address, PublicKey: p.SigningKey, EncryptKey: p.EncryptKey})
	}
	return out
}

// Start begins accepting inbound connections, advertising over mDNS and
// dispatching events to the UI callbacks.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	if n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = true
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.events.run()
	}()

	if err := n.fabric.Listen(); err != nil {
		return fmt.Errorf("orchestrator: listen: %w", err)
	}
	if err := n.disc.Start(); err != nil {
		return fmt.Errorf("orchestrator: start discovery: %w", err)
	}

	n.maintCtx, n.maintCancel = context.WithCancel(context.Background())
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.store.RunMaintenance(n.maintCtx, n.cfg.MaintenanceInterval)
	}()

	return nil
}

// Stop propagates a cancellation signal to every component, waits for
// their goroutines to exit, and closes the store last so pending writes
// land first (spec §5 "Shutdown propagates a cancellation signal...").
// The wait has no timeout.
func (n *Node) Stop() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	n.closed = true
	n.mu.Unlock()

	if n.maintCancel != nil {
		n.maintCancel()
	}
	_ = n.disc.Stop()
	_ = n.fabric.Stop()

	n.events.push(func() {
		if n.cb.OnShutdown != nil {
			n.cb.OnShutdown(nil)
		}
	})
	n.events.close()

	n.wg.Wait()
	return n.store.Close()
}

func (n *Node) emit(fn func()) {
	n.events.push(fn)
}

func (n *Node) handleDrop(peerID string, reason error) {
	if n.log != nil {
		n.log.Debugf("gossip drop from %s: %v", peerID, reason)
	}
}

func (n *Node) handleConnect(nodeID, address string, signingPub, encryptPub []byte) {
	now := time.Now()
	peer, err := n.store.GetPeer(nodeID)
	if err != nil {
		peer = &model.Peer{NodeID: nodeID, FirstSeen: now}
	}
	peer.Address = address
	if len(signingPub) > 0 {
		peer.SigningKey = signingPub
	}
	if len(encryptPub) > 0 {
		peer.EncryptKey = encryptPub
	}
	peer.LastSeen = now
	peer.Status = model.PeerStatusOnline
	if err := n.store.UpsertPeer(peer); err != nil && n.log != nil {
		n.log.Warnf("upsert peer %s: %v", nodeID, err)
	}

	n.emit(func() {
		if n.cb.OnPeerStatusChanged != nil {
			n.cb.OnPeerStatusChanged(nodeID, model.PeerStatusOnline)
		}
	})
}

func (n *Node) handleDisconnect(nodeID string) {
	n.gossip.ReleasePeer(nodeID)
	if err := n.store.SetPeerStatus(nodeID, model.PeerStatusOffline, float64(time.Now().UnixNano())/1e9); err != nil && n.log != nil {
		n.log.Warnf("set peer %s offline: %v", nodeID, err)
	}
	n.emit(func() {
		if n.cb.OnPeerStatusChanged != nil {
			n.cb.OnPeerStatusChanged(nodeID, model.PeerStatusOffline)
		}
	})
}

func (n *Node) handlePeerFound(nodeID, address string) {
	if nodeID == n.identity.NodeID() {
		return
	}
	n.emit(func() {
		if n.cb.OnPeerFound != nil {
			n.cb.OnPeerFound(nodeID, address)
		}
	})

	if n.fabric.IsConnected(nodeID) {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.fabric.Dial(address); err != nil && n.log != nil {
			n.log.Debugf("dial %s (%s) failed: %v", nodeID, address, err)
		}
	}()
}

// handleChannelLearned fires when the gossip engine auto-vivifies a
// channel row for a message that reached this node before the channel's
// one-hop create_channel announcement did. Surfaced on OnChannelJoined,
// the same callback a local join uses, since from the UI's perspective
// it is indistinguishable: the node now has a row for this channel.
func (n *Node) handleChannelLearned(channel string) {
	n.emit(func() {
		if n.cb.OnChannelJoined != nil {
			n.cb.OnChannelJoined(channel)
		}
	})
}

func (n *Node) handlePeerLost(nodeID string) {
	n.emit(func() {
		if n.cb.OnPeerLost != nil {
			n.cb.OnPeerLost(nodeID)
		}
	})
}

// handleGossipMessage is the gossip engine's single application callback.
// It intercepts invite pseudo-channel deliveries for local processing and
// forwards everything else to the UI.
func (n *Node) handleGossipMessage(m *message.Message) {
	if target, ok := message.InviteTarget(m.Channel); ok {
		if target == n.identity.NodeID() {
			n.receiveInvite(m)
		}
		return
	}

	n.emit(func() {
		if n.cb.OnMessage != nil {
			n.cb.OnMessage(m)
		}
	})
}

func (n *Node) receiveInvite(m *message.Message) {
	sealed, err := base64.StdEncoding.DecodeString(m.Content)
	if err != nil {
		if n.log != nil {
			n.log.Warnf("invite from %s: bad encoding: %v", m.SenderID, err)
		}
		return
	}

	recipientPub := n.identity.EncryptPublicKey()
	recipientPriv := n.identity.EncryptPrivateKey()
	payload, err := e2ecrypto.OpenInvite(sealed, &recipientPub, recipientPriv)
	if err != nil {
		if n.log != nil {
			n.log.Debugf("invite from %s: could not open: %v", m.SenderID, err)
		}
		return
	}

	if err := n.invites.Check(payload, time.Now()); err != nil {
		if n.log != nil {
			n.log.Debugf("invite from %s: rejected: %v", m.SenderID, err)
		}
		return
	}

	now := time.Now()
	ch := &model.Channel{Name: payload.ChannelName, Encrypted: true, Key: payload.ChannelKey, CreatedAt: now, LastActivity: now}
	if err := n.store.CreateChannel(ch); err != nil && n.log != nil {
		n.log.Warnf("create invited channel %s: %v", payload.ChannelName, err)
	}
	if err := n.store.SaveChannelKey(payload.ChannelName, payload.ChannelKey); err != nil && n.log != nil {
		n.log.Warnf("save invited channel key %s: %v", payload.ChannelName, err)
	}
	if err := n.store.AddMember(payload.ChannelName, n.identity.NodeID(), now); err != nil && n.log != nil {
		n.log.Warnf("record self as member of %s: %v", payload.ChannelName, err)
	}
	if err := n.store.AddMember(payload.ChannelName, payload.IssuerID, now); err != nil && n.log != nil {
		n.log.Warnf("record issuer as member of %s: %v", payload.ChannelName, err)
	}

	n.emit(func() {
		if n.cb.OnChannelJoined != nil {
			n.cb.OnChannelJoined(payload.ChannelName)
		}
	})
}
