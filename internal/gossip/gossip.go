// Package gossip implements the dissemination engine: the ingress and
// egress pipelines, the dedup cache, fan-out sampling, per-peer rate
// limits and the private-channel access-control invariant (spec §4.4).
package gossip

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/pion/logging"

	"github.com/tad-chat/tad/internal/e2ecrypto"
	"github.com/tad-chat/tad/internal/fabric"
	"github.com/tad-chat/tad/internal/identity"
	"github.com/tad-chat/tad/internal/message"
	"github.com/tad-chat/tad/internal/model"
	"github.com/tad-chat/tad/internal/persistence"
)

// Defaults per spec §4.4.
const (
	DefaultFanout        = 3
	DefaultTTL           = 5
	DefaultCacheSize     = 10000
	DefaultCacheEntryTTL = time.Hour

	// timestampPast/timestampFuture bound the acceptance window:
	// [now - 86400s, now + 60s].
	timestampPast   = 86400 * time.Second
	timestampFuture = 60 * time.Second

	// maxRateStrikes is how many rate-limit violations from one peer
	// (accumulated until ReleasePeer) are tolerated; the next one makes
	// the engine ask the caller to close that session.
	maxRateStrikes = 5
)

// DropHandler is invoked, best-effort, whenever the ingress pipeline
// drops a frame, so the orchestrator can maintain the counters spec §7
// describes. reason is one of the package's sentinel errors.
type DropHandler func(peerID string, reason error)

// DisconnectRequester is invoked when a peer should be disconnected for
// repeated rate-limit violations (spec §4.4: "repeated violation
// escalates to session close").
type DisconnectRequester func(peerID string)

// Config configures Engine.
type Config struct {
	Fanout        int
	TTL           int
	CacheSize     int
	CacheEntryTTL time.Duration

	Store    *persistence.Store
	Identity *identity.Identity
	Fabric   *fabric.Fabric

	// OnMessage delivers an accepted, decrypted Message to the
	// application layer (spec §4.4 ingress step 7, egress step 5).
	OnMessage func(*message.Message)
	OnDrop    DropHandler
	OnRateExceeded DisconnectRequester

	// OnChannelLearned fires when Receive auto-vivifies a channel row
	// for a message whose channel this node had no create_channel
	// announcement for yet (see Receive's channel-resolution step).
	OnChannelLearned func(channel string)

	LoggerFactory logging.LoggerFactory
}

// Engine is the gossip dissemination core.
type Engine struct {
	cfg Config
	log logging.LeveledLogger

	cache   *dedupCache
	limiter *peerLimiters
}

// NewEngine creates an Engine with spec-default parameters applied, and
// warms its dedup cache from the persisted gossip_cache table so
// restart resumes dedup (spec §8).
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil || cfg.Identity == nil || cfg.Fabric == nil {
		return nil, fmt.Errorf("gossip: Store, Identity and Fabric are required")
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = DefaultFanout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheEntryTTL <= 0 {
		cfg.CacheEntryTTL = DefaultCacheEntryTTL
	}

	e := &Engine{
		cfg:     cfg,
		cache:   newDedupCache(cfg.CacheSize, cfg.CacheEntryTTL),
		limiter: newPeerLimiters(maxRateStrikes),
	}
	if cfg.LoggerFactory != nil {
		e.log = cfg.LoggerFactory.NewLogger("gossip")
	}

	cutoff := time.Now().Add(-cfg.CacheEntryTTL)
	recent, err := cfg.Store.LoadRecentCache(cutoff)
	if err != nil {
		return nil, fmt.Errorf("gossip: warm cache: %w", err)
	}
	warm := make(map[string]time.Time, len(recent))
	for _, entry := range recent {
		warm[entry.MessageID] = entry.FirstSeenAt
	}
	e.cache.warm(warm)

	return e, nil
}

func (e *Engine) drop(peerID string, reason error) {
	if e.log != nil {
		e.log.Debugf("dropping message from %s: %v", peerID, reason)
	}
	if e.cfg.OnDrop != nil {
		e.cfg.OnDrop(peerID, reason)
	}
}

// Receive runs the eight-step ingress pipeline (spec §4.4) for a decoded
// Message received from fromPeer. fromPeer is empty for locally
// originated messages re-entering forwarding logic, which never happens
// in practice since Broadcast bypasses Receive entirely.
func (e *Engine) Receive(m *message.Message, fromPeer string) error {
	now := time.Now()

	// Step 1: schema validation.
	if m.ID == "" || m.SenderID == "" || m.Channel == "" {
		e.drop(fromPeer, ErrInvalidFormat)
		return ErrInvalidFormat
	}

	// Rate limit before any expensive work: a forwarded gossip frame
	// counts against the gossip-forwarded bucket, a fresh send against
	// the messages bucket. Both funnel through Receive, so the TTL/
	// hop_count on entry distinguishes them: a non-default hop_count
	// indicates this frame already traversed at least one forwarder.
	cat := rateMessages
	if m.HopCount > 0 {
		cat = rateGossipForwarded
	}
	if ok, strikes := e.limiter.allow(fromPeer, cat, now); !ok {
		e.drop(fromPeer, ErrRateLimited)
		if strikes > maxRateStrikes && e.cfg.OnRateExceeded != nil {
			e.cfg.OnRateExceeded(fromPeer)
		}
		return ErrRateLimited
	}

	// Step 2: dedup.
	if e.cache.seen(m.ID) {
		e.drop(fromPeer, ErrDuplicate)
		return ErrDuplicate
	}

	// Step 3: timestamp window.
	ts := time.Unix(0, int64(m.Timestamp*1e9))
	if ts.Before(now.Add(-timestampPast)) || ts.After(now.Add(timestampFuture)) {
		e.drop(fromPeer, ErrStaleTimestamp)
		return ErrStaleTimestamp
	}

	// Supplemented feature: drop frames from blocked peers before
	// signature verification (counted separately from UNKNOWN_SENDER).
	sender, err := e.cfg.Store.GetPeer(m.SenderID)
	if err == nil && sender.Blocked {
		e.drop(fromPeer, ErrBlockedSender)
		return ErrBlockedSender
	}

	// Step 4: signature verification.
	if err != nil || len(sender.SigningKey) == 0 {
		e.drop(fromPeer, ErrUnknownSender)
		return ErrUnknownSender
	}
	canonical, err := message.Canonical(m)
	if err != nil {
		e.drop(fromPeer, ErrInvalidFormat)
		return ErrInvalidFormat
	}
	if err := identity.Verify(canonical, m.Signature, sender.SigningKey); err != nil {
		e.drop(fromPeer, ErrInvalidSignature)
		return ErrInvalidSignature
	}

	// Step 5: channel resolution, private-channel access control and
	// decryption. A message can arrive via multi-hop gossip before the
	// one-hop create_channel announcement for its channel does (the
	// announcement is fabric-broadcast to direct peers only, not
	// TTL-forwarded); auto-vivify a minimal public channel row in that
	// case so the FK-constrained messages insert in step 6 succeeds
	// instead of silently losing the row.
	ch, cherr := e.cfg.Store.GetChannel(m.Channel)
	if cherr != nil {
		if !errors.Is(cherr, persistence.ErrChannelNotFound) {
			e.drop(fromPeer, ErrStorageFailed)
			return ErrStorageFailed
		}
		learned := &model.Channel{Name: m.Channel, CreatedAt: now, LastActivity: now}
		if err := e.cfg.Store.CreateChannel(learned); err != nil {
			e.drop(fromPeer, ErrStorageFailed)
			return ErrStorageFailed
		}
		ch = learned
		// @invite: pseudo-channels (spec §4.5 step 3) are not real
		// channels and must never surface as one to the UI; the row
		// above exists only to satisfy the messages table's FK.
		if _, isInvite := message.InviteTarget(m.Channel); !isInvite && e.cfg.OnChannelLearned != nil {
			e.cfg.OnChannelLearned(m.Channel)
		}
	}

	// Membership is the access-control axis (private channels only);
	// encryption is the content axis (private channels AND legacy
	// password-derived public channels both carry a key).
	if ch.IsPrivate() {
		isMember, merr := e.cfg.Store.IsMember(m.Channel, m.SenderID)
		if merr != nil || !isMember {
			e.drop(fromPeer, ErrPermissionDenied)
			return ErrPermissionDenied
		}
	}

	delivered := m
	if ch.Encrypted && len(ch.Key) > 0 {
		plaintext, derr := decryptContent(ch.Key, m)
		if derr != nil {
			e.drop(fromPeer, ErrDecryptionFailed)
			return ErrDecryptionFailed
		}
		delivered = m.Clone()
		delivered.Content = string(plaintext)
	}

	// Step 6: persist, insert dedup cache, bump channel activity. A
	// persistence failure here is treated like any other drop: the
	// message is neither delivered nor forwarded, and it is left out of
	// the dedup cache so a retried delivery can still succeed once
	// storage recovers.
	if err := e.cfg.Store.SaveMessage(m, now); err != nil {
		e.drop(fromPeer, ErrStorageFailed)
		return ErrStorageFailed
	}
	e.cache.insert(m.ID, now)
	if err := e.cfg.Store.InsertSeen(m.ID, now); err != nil && e.log != nil {
		e.log.Warnf("persist dedup entry: %v", err)
	}
	if err := e.cfg.Store.BumpActivity(m.Channel, now); err != nil && e.log != nil {
		e.log.Warnf("bump channel activity: %v", err)
	}

	// Step 7: deliver to the application.
	if e.cfg.OnMessage != nil {
		e.cfg.OnMessage(delivered)
	}

	// Step 8: forward.
	if m.TTL > 0 {
		fwd := m.Clone()
		fwd.TTL--
		fwd.HopCount++
		exclude := map[string]bool{fromPeer: true, m.SenderID: true}
		e.forward(fwd, exclude)
	}

	return nil
}

// Broadcast runs the five-step egress pipeline (spec §4.4) for a locally
// originated message.
func (e *Engine) Broadcast(channel, content string) (*message.Message, error) {
	now := time.Now()

	m := &message.Message{
		ID:         message.NewID(),
		Timestamp:  float64(now.UnixNano()) / 1e9,
		SenderID:   e.cfg.Identity.NodeID(),
		SenderName: e.cfg.Identity.DisplayName(),
		Channel:    channel,
		Content:    content,
		TTL:        e.cfg.TTL,
		HopCount:   0,
	}

	// Step 2: channel-key encryption, for private channels and legacy
	// password-derived public channels alike (both carry a Key; only
	// IsPrivate() also gates membership access control).
	if ch, err := e.cfg.Store.GetChannel(channel); err == nil && ch.Encrypted && len(ch.Key) > 0 {
		env, err := e2ecrypto.Encrypt(ch.Key, []byte(content))
		if err != nil {
			return nil, fmt.Errorf("gossip: encrypt: %w", err)
		}
		m.Encrypted = true
		m.Nonce = env.Nonce
		m.Content = base64.StdEncoding.EncodeToString(env.Ciphertext)
	}

	// Step 3: sign the canonical encoding.
	canonical, err := message.Canonical(m)
	if err != nil {
		return nil, fmt.Errorf("gossip: canonicalize: %w", err)
	}
	sig, err := e.cfg.Identity.Sign(canonical)
	if err != nil {
		return nil, fmt.Errorf("gossip: sign: %w", err)
	}
	m.Signature = sig

	// Step 4: persist locally, add to dedup cache.
	if err := e.cfg.Store.SaveMessage(m, now); err != nil {
		return nil, fmt.Errorf("gossip: persist: %w", err)
	}
	if err := e.cfg.Store.BumpActivity(channel, now); err != nil && e.log != nil {
		e.log.Warnf("bump channel activity: %v", err)
	}
	e.cache.insert(m.ID, now)
	if err := e.cfg.Store.InsertSeen(m.ID, now); err != nil && e.log != nil {
		e.log.Warnf("persist dedup entry: %v", err)
	}

	// Step 5: fan out and deliver locally (with plaintext content, since
	// the local application already knows the key it just encrypted with).
	local := m.Clone()
	local.Content = content
	if e.cfg.OnMessage != nil {
		e.cfg.OnMessage(local)
	}
	e.forward(m, nil)

	return m, nil
}

// SendInvite builds, signs, persists and fans out an invite: a Message
// addressed to the pseudo-channel @invite:<targetNodeID> whose Content is
// the base64 of an already-sealed invite payload (spec §4.5 step 3). It
// shares the egress pipeline's persist/cache/forward tail with Broadcast
// but skips local delivery, since an invite is never addressed to its
// own issuer.
func (e *Engine) SendInvite(targetNodeID string, sealed []byte) (*message.Message, error) {
	now := time.Now()

	m := &message.Message{
		ID:        message.NewID(),
		Timestamp: float64(now.UnixNano()) / 1e9,
		SenderID:  e.cfg.Identity.NodeID(),
		Channel:   message.InviteChannelFor(targetNodeID),
		Content:   base64.StdEncoding.EncodeToString(sealed),
		TTL:       e.cfg.TTL,
	}

	canonical, err := message.Canonical(m)
	if err != nil {
		return nil, fmt.Errorf("gossip: canonicalize invite: %w", err)
	}
	sig, err := e.cfg.Identity.Sign(canonical)
	if err != nil {
		return nil, fmt.Errorf("gossip: sign invite: %w", err)
	}
	m.Signature = sig

	// The @invite: pseudo-channel carries no channels row of its own;
	// CreateChannel is idempotent, so this just satisfies the messages
	// table's FK without ever surfacing as a real channel to the UI.
	if err := e.cfg.Store.CreateChannel(&model.Channel{Name: m.Channel, CreatedAt: now, LastActivity: now}); err != nil {
		return nil, fmt.Errorf("gossip: ensure invite pseudo-channel: %w", err)
	}
	if err := e.cfg.Store.SaveMessage(m, now); err != nil {
		return nil, fmt.Errorf("gossip: persist invite: %w", err)
	}
	e.cache.insert(m.ID, now)
	if err := e.cfg.Store.InsertSeen(m.ID, now); err != nil && e.log != nil {
		e.log.Warnf("persist dedup entry: %v", err)
	}

	e.forward(m, nil)
	return m, nil
}

// forward samples up to Fanout distinct live peers (excluding the keys in
// exclude) and sends the frame to each, best-effort (spec §4.4 "Fan-out
// sampling").
func (e *Engine) forward(m *message.Message, exclude map[string]bool) {
	live := e.cfg.Fabric.LivePeers()
	candidates := make([]string, 0, len(live))
	for _, id := range live {
		if exclude != nil && exclude[id] {
			continue
		}
		candidates = append(candidates, id)
	}

	targets := sampleWithoutReplacement(candidates, e.cfg.Fanout)
	wireType := message.EnvelopeGossip
	if _, ok := message.InviteTarget(m.Channel); ok {
		wireType = message.EnvelopeInvite
	}
	env := &message.Envelope{
		Type:    wireType,
		NodeID:  e.cfg.Identity.NodeID(),
		Message: m,
	}
	for _, id := range targets {
		_ = e.cfg.Fabric.Send(id, env) // best-effort; send failures do not trigger re-selection
	}
}

// sampleWithoutReplacement returns up to n distinct elements of items in
// uniform random order. When len(items) <= n, every element is returned
// (spec §4.4: "When the live-peer count is below fanout, send to all").
func sampleWithoutReplacement(items []string, n int) []string {
	if n >= len(items) {
		out := make([]string, len(items))
		copy(out, items)
		return out
	}

	pool := make([]string, len(items))
	copy(pool, items)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		j := randIntn(len(pool))
		out = append(out, pool[j])
		pool[j] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return out
}

func randIntn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func decryptContent(key []byte, m *message.Message) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(m.Content)
	if err != nil {
		return nil, err
	}
	return e2ecrypto.Decrypt(key, &e2ecrypto.Envelope{Nonce: m.Nonce, Ciphertext: ciphertext})
}

// ReleasePeer clears rate-limiter state for a peer whose session has
// closed, so a reconnecting peer starts with a fresh budget.
func (e *Engine) ReleasePeer(peerID string) {
	e.limiter.reset(peerID)
}

// SyncRequestAllowed applies the sync_request rate bucket (spec §4.4:
// "sync requests: 5/min") ahead of the orchestrator handling that
// envelope type.
func (e *Engine) SyncRequestAllowed(peerID string) bool {
	ok, _ := e.limiter.allow(peerID, rateSyncRequests, time.Now())
	return ok
}

// PeerRequestAllowed applies the peer_request rate bucket (spec §4.4:
// "peer requests: 10/min").
func (e *Engine) PeerRequestAllowed(peerID string) bool {
	ok, _ := e.limiter.allow(peerID, ratePeerRequests, time.Now())
	return ok
}
