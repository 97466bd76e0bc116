package e2ecrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// SaltSize is the length of the random salt stored alongside a legacy
// password-derived channel.
const SaltSize = 16

// legacyPBKDF2Iterations follows the general guidance for PBKDF2-SHA256
// at the time this path was added; it is not configurable since rotating
// it would silently change every existing legacy channel's derived key.
const legacyPBKDF2Iterations = 210000

// NewSalt generates a fresh random salt for a new legacy password channel.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// DeriveLegacyKey derives a 32-byte channel symmetric key from a
// passphrase and salt via PBKDF2-HMAC-SHA256, per spec §9's optional
// legacy password-derived public channel path. This is a distinct
// keying mode from invite-based private channels: a Channel uses either
// PasswordHash/Salt or invite-distributed Key, never both (see
// model.Channel.IsPrivate / IsLegacyPassword, and the Open Question
// resolution in DESIGN.md).
func DeriveLegacyKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, legacyPBKDF2Iterations, KeySize, sha256.New)
}

// HashPassword derives a verifier for the passphrase, stored as
// Channel.PasswordHash so membership checks never need the passphrase
// itself retained in memory longer than channel creation/join.
func HashPassword(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, legacyPBKDF2Iterations, 32, sha256.New)
}
