package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Config{Path: filepath.Join(dir, "tad.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotentAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tad.db")

	s1, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s1.SetConfig("k", "v"))
	require.NoError(t, s1.Close())

	s2, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.GetConfig("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestUnixSecondsRoundTrip(t *testing.T) {
	now := time.Now()
	back := fromUnixSeconds(unixSeconds(now))
	assert.WithinDuration(t, now, back, time.Microsecond)
}

func TestBoolIntRoundTrip(t *testing.T) {
	assert.True(t, intToBool(boolToInt(true)))
	assert.False(t, intToBool(boolToInt(false)))
}

func TestSetConfigUpsert(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SetConfig("display_name", "alice"))
	v, err := s.GetConfig("display_name")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	require.NoError(t, s.SetConfig("display_name", "bob"))
	v, err = s.GetConfig("display_name")
	require.NoError(t, err)
	assert.Equal(t, "bob", v)
}

func TestGetConfigMissingKey(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetConfig("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
