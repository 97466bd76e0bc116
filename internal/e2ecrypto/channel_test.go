package e2ecrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := NewChannelKey()
	require.NoError(t, err)

	plaintext := []byte("hello channel")
	env, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	assert.Len(t, env.Nonce, NonceSize)
	assert.NotEqual(t, plaintext, env.Ciphertext)

	out, err := Decrypt(key, env)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key, err := NewChannelKey()
	require.NoError(t, err)
	other, err := NewChannelKey()
	require.NoError(t, err)

	env, err := Encrypt(key, []byte("secret"))
	require.NoError(t, err)

	_, err = Decrypt(other, env)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	key, err := NewChannelKey()
	require.NoError(t, err)

	env, err := Encrypt(key, []byte("secret"))
	require.NoError(t, err)
	env.Ciphertext[0] ^= 0xff

	_, err = Decrypt(key, env)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptRejectsWrongKeySize(t *testing.T) {
	_, err := Encrypt([]byte("too-short"), []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestNewChannelKeyIsRandom(t *testing.T) {
	a, err := NewChannelKey()
	require.NoError(t, err)
	b, err := NewChannelKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, KeySize)
}
