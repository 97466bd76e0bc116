package e2ecrypto

import "errors"

// Package-level sentinel errors for channel encryption and invite sealing.
var (
	// ErrInvalidKeySize is returned when a channel key is not 32 bytes.
	ErrInvalidKeySize = errors.New("e2ecrypto: channel key must be 32 bytes")

	// ErrDecryptionFailed is returned on an AES-GCM authentication-tag
	// mismatch: either the wrong key was used, or the ciphertext was
	// tampered with in transit.
	ErrDecryptionFailed = errors.New("e2ecrypto: decryption failed")

	// ErrSealFailed is returned when sealing an invite envelope fails.
	ErrSealFailed = errors.New("e2ecrypto: failed to seal invite")

	// ErrOpenFailed is returned when a sealed invite cannot be opened with
	// the local X25519 private key — either it was not addressed to this
	// node's public key, or it has been tampered with.
	ErrOpenFailed = errors.New("e2ecrypto: failed to open sealed invite")

	// ErrInviteExpired is returned when an invite's issued_at falls
	// outside the configured replay window.
	ErrInviteExpired = errors.New("e2ecrypto: invite expired")

	// ErrInviteReplayed is returned when an invite with the same
	// (issuer_id, channel_name, issued_at) tuple has already been processed.
	ErrInviteReplayed = errors.New("e2ecrypto: invite already processed")
)
