package fabric

import "errors"

// Package-level sentinel errors for the connection fabric.
var (
	// ErrClosed is returned when an operation is attempted on a closed fabric.
	ErrClosed = errors.New("fabric: closed")

	// ErrAlreadyStarted is returned when Listen is called twice.
	ErrAlreadyStarted = errors.New("fabric: already started")

	// ErrPeerNotConnected is returned by Send when no live session exists
	// for the target peer. Maps to spec §4.2.
	ErrPeerNotConnected = errors.New("fabric: peer not connected")

	// ErrHandshakeFailed is returned when the HELLO/WELCOME exchange
	// fails or times out.
	ErrHandshakeFailed = errors.New("fabric: handshake failed")

	// ErrVersionMismatch is returned when the remote's protocol version
	// has no overlap with ours (spec §6: send ERROR PROTOCOL_VERSION_MISMATCH
	// and close).
	ErrVersionMismatch = errors.New("fabric: protocol version mismatch")

	// ErrSupersededSession names the losing side of a duplicate dial/accept
	// race under the node_id tie-break rule in spec §4.2. admit closes the
	// losing session directly; no Fabric method returns this error.
	ErrSupersededSession = errors.New("fabric: superseded by concurrent session")
)
