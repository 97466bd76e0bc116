package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertSeenAndHasSeen(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.HasSeen("m1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.InsertSeen("m1", time.Now()))

	ok, err = s.HasSeen("m1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInsertSeenIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	require.NoError(t, s.InsertSeen("m1", now))
	require.NoError(t, s.InsertSeen("m1", now.Add(time.Hour))) // no-op, first write wins

	entries, err := s.LoadRecentCache(now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.WithinDuration(t, now, entries[0].FirstSeenAt, time.Second)
}

func TestLoadRecentCacheFiltersByCutoff(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	require.NoError(t, s.InsertSeen("old", now.Add(-2*time.Hour)))
	require.NoError(t, s.InsertSeen("recent", now))

	entries, err := s.LoadRecentCache(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent", entries[0].MessageID)
}

func TestPruneCacheDeletesOldEntries(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	require.NoError(t, s.InsertSeen("old", now.Add(-2*time.Hour)))
	require.NoError(t, s.InsertSeen("recent", now))

	n, err := s.PruneCache(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ok, err := s.HasSeen("old")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.HasSeen("recent")
	require.NoError(t, err)
	assert.True(t, ok)
}
