package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()

	id, err := Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, id.NodeID())
	assert.Len(t, id.SigningPublicKey(), ed25519.PublicKeySize)

	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, id.NodeID(), again.NodeID())
	assert.Equal(t, id.SigningPublicKey(), again.SigningPublicKey())
}

func TestLoadRejectsCorruptKeyFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, signingPrivFile), []byte("short"), 0o600))

	_, err = Load(dir)
	assert.ErrorIs(t, err, ErrCorruptKeyFile)
}

func TestDeriveNodeIDDeterministic(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	a := DeriveNodeID(pub)
	b := DeriveNodeID(pub)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32) // 20 bytes base32-encoded without padding
}

func TestSignAndVerify(t *testing.T) {
	dir := t.TempDir()
	id, err := Load(dir)
	require.NoError(t, err)

	msg := []byte("canonical message bytes")
	sig, err := id.Sign(msg)
	require.NoError(t, err)

	assert.NoError(t, Verify(msg, sig, id.SigningPublicKey()))

	tampered := append([]byte{}, msg...)
	tampered[0] ^= 0xff
	assert.ErrorIs(t, Verify(tampered, sig, id.SigningPublicKey()), ErrInvalidSignature)
}

func TestVerifyRejectsMalformedKey(t *testing.T) {
	err := Verify([]byte("x"), make([]byte, ed25519.SignatureSize), []byte("too-short"))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestSignAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	id, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, id.Close())
	_, err = id.Sign([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSetDisplayNamePersists(t *testing.T) {
	dir := t.TempDir()
	id, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, id.SetDisplayName("alice"))
	assert.Equal(t, "alice", id.DisplayName())

	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.DisplayName())
}
