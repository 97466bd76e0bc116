package identity

import "errors"

// Package-level sentinel errors for identity operations.
var (
	// ErrClosed is returned when an operation is attempted after Close.
	ErrClosed = errors.New("identity: closed")

	// ErrInvalidSignature is returned by Verify on a signature mismatch.
	// It is never a panic: verification failures are an expected, routine
	// outcome on a network with untrusted peers.
	ErrInvalidSignature = errors.New("identity: invalid signature")

	// ErrKeyUnavailable is returned when the signing key cannot be used.
	// Callers should treat this as fatal: it means the private key material
	// failed to load or was corrupted.
	ErrKeyUnavailable = errors.New("identity: signing key unavailable")

	// ErrInvalidPublicKey is returned when a supplied public key is the
	// wrong length or otherwise malformed.
	ErrInvalidPublicKey = errors.New("identity: invalid public key")

	// ErrCorruptKeyFile is returned when an on-disk key file fails to parse.
	ErrCorruptKeyFile = errors.New("identity: corrupt key file")
)
