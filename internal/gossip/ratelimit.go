package gossip

import (
	"sync"
	"time"
)

// bucket is a simple token bucket: capacity tokens, refilled continuously
// at rate tokens/refillWindow. Grounded on the teacher's bespoke backoff
// helper (pkg/exchange/backoff.go): a tiny struct with its own refill
// arithmetic rather than a pulled-in rate-limiting library, since the
// policy here (fixed per-peer buckets, four categories) is simpler than
// what a general-purpose limiter would buy.
type bucket struct {
	capacity     float64
	refillPerSec float64
	tokens       float64
	last         time.Time
}

func newBucket(capacity float64, window time.Duration) *bucket {
	return &bucket{
		capacity:     capacity,
		refillPerSec: capacity / window.Seconds(),
		tokens:       capacity,
		last:         time.Time{},
	}
}

// allow consumes one token if available, refilling for elapsed time first.
func (b *bucket) allow(now time.Time) bool {
	if b.last.IsZero() {
		b.last = now
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillPerSec
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// rateCategory identifies one of the four per-peer buckets spec §4.4 names.
type rateCategory int

const (
	rateMessages rateCategory = iota
	rateGossipForwarded
	rateSyncRequests
	ratePeerRequests
	rateCategoryCount
)

// rateLimits are the default per-peer bucket capacities/windows from spec
// §4.4: {messages: 10/s, gossip-forwarded: 50/s, sync requests: 5/min,
// peer requests: 10/min}.
var rateLimits = [rateCategoryCount]struct {
	capacity float64
	window   time.Duration
}{
	rateMessages:        {10, time.Second},
	rateGossipForwarded: {50, time.Second},
	rateSyncRequests:    {5, time.Minute},
	ratePeerRequests:    {10, time.Minute},
}

// peerLimiters tracks one bucket set per originating peer, and counts
// repeated violations toward the "escalates to session close" policy.
type peerLimiters struct {
	mu        sync.Mutex
	perPeer   map[string]*[rateCategoryCount]*bucket
	strikes   map[string]int
	strikeCap int
}

func newPeerLimiters(strikeCap int) *peerLimiters {
	return &peerLimiters{
		perPeer:   make(map[string]*[rateCategoryCount]*bucket),
		strikes:   make(map[string]int),
		strikeCap: strikeCap,
	}
}

// allow checks and consumes a token for (peerID, category) at time now.
// It returns ok=false and the accumulated strike count when the peer has
// exceeded its budget; callers escalate to a session close once the
// strike count crosses strikeCap.
func (p *peerLimiters) allow(peerID string, cat rateCategory, now time.Time) (ok bool, strikes int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buckets, ok2 := p.perPeer[peerID]
	if !ok2 {
		var fresh [rateCategoryCount]*bucket
		for c := rateCategory(0); c < rateCategoryCount; c++ {
			fresh[c] = newBucket(rateLimits[c].capacity, rateLimits[c].window)
		}
		buckets = &fresh
		p.perPeer[peerID] = buckets
	}

	if buckets[cat].allow(now) {
		return true, 0
	}
	p.strikes[peerID]++
	return false, p.strikes[peerID]
}

// reset clears strike/bucket state for a peer, e.g. on session close.
func (p *peerLimiters) reset(peerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.perPeer, peerID)
	delete(p.strikes, peerID)
}
