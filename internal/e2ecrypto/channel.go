// Package e2ecrypto implements per-channel symmetric encryption and the
// invite flow used to distribute channel keys: AES-256-GCM for content,
// and anonymous-sender X25519 sealed boxes (golang.org/x/crypto/nacl/box)
// for key delivery, per spec §4.5.
package e2ecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
)

// KeySize is the length of a channel symmetric key in bytes.
const KeySize = 32

// NonceSize is the length of the AES-GCM nonce in bytes (96 bits).
const NonceSize = 12

// NewChannelKey generates a fresh random 32-byte channel symmetric key.
func NewChannelKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Envelope is the encrypted form of a Message's content: a random 96-bit
// nonce and the AES-256-GCM ciphertext (which embeds the 128-bit
// authentication tag as its final 16 bytes, the standard cipher.AEAD
// output shape).
type Envelope struct {
	Nonce      []byte
	Ciphertext []byte
}

// Encrypt seals plaintext under key with a fresh random nonce and no
// associated data, per spec §4.5.
func Encrypt(key, plaintext []byte) (*Envelope, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return &Envelope{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Decrypt opens an Envelope under key. A wrong key or tampered ciphertext
// both surface as ErrDecryptionFailed (the GCM authentication-tag check
// fails identically in both cases).
func Decrypt(key []byte, env *Envelope) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(env.Nonce) != NonceSize {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
