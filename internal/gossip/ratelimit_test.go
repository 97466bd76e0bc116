package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketAllowsUpToCapacityThenBlocks(t *testing.T) {
	b := newBucket(3, time.Second)
	now := time.Now()
	assert.True(t, b.allow(now))
	assert.True(t, b.allow(now))
	assert.True(t, b.allow(now))
	assert.False(t, b.allow(now))
}

func TestBucketRefillsOverTime(t *testing.T) {
	b := newBucket(1, time.Second)
	now := time.Now()
	assert.True(t, b.allow(now))
	assert.False(t, b.allow(now))
	assert.True(t, b.allow(now.Add(2*time.Second)))
}

func TestPeerLimitersSeparatesCategoriesAndPeers(t *testing.T) {
	limiters := newPeerLimiters(5)
	now := time.Now()

	for i := 0; i < 10; i++ {
		ok, _ := limiters.allow("peerA", rateMessages, now)
		assert.True(t, ok)
	}
	ok, _ := limiters.allow("peerA", rateMessages, now)
	assert.False(t, ok)

	// A different category for the same peer is unaffected.
	ok, _ = limiters.allow("peerA", ratePeerRequests, now)
	assert.True(t, ok)

	// A different peer is unaffected.
	ok, _ = limiters.allow("peerB", rateMessages, now)
	assert.True(t, ok)
}

func TestPeerLimitersStrikesAccumulateAndReset(t *testing.T) {
	limiters := newPeerLimiters(5)
	now := time.Now()

	for i := 0; i < 10; i++ {
		limiters.allow("peerA", rateMessages, now)
	}
	_, strikes1 := limiters.allow("peerA", rateMessages, now)
	_, strikes2 := limiters.allow("peerA", rateMessages, now)
	assert.Equal(t, strikes1+1, strikes2)

	limiters.reset("peerA")
	ok, strikes := limiters.allow("peerA", rateMessages, now)
	assert.True(t, ok)
	assert.Zero(t, strikes)
}
