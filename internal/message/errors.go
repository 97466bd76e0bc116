package message

import "errors"

// Package-level sentinel errors for message encoding/framing.
var (
	// ErrInvalidFormat is returned when a frame fails to parse as a valid
	// envelope. Maps to the wire error code INVALID_FORMAT.
	ErrInvalidFormat = errors.New("message: invalid format")

	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	// Maps to the wire error code MESSAGE_TOO_LARGE.
	ErrFrameTooLarge = errors.New("message: frame exceeds maximum size")

	// ErrStreamClosed is returned by FrameReader.ReadRaw when the underlying
	// reader fails with an error other than io.EOF, e.g. a closed
	// connection. A clean end of stream is reported as io.EOF instead.
	ErrStreamClosed = errors.New("message: stream closed")
)
