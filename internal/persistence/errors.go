package persistence

import "errors"

// Package-level sentinel errors for the durable store.
var (
	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("persistence: closed")

	// ErrChannelNotFound is returned when an operation references a
	// channel that does not exist.
	ErrChannelNotFound = errors.New("persistence: channel not found")

	// ErrNotFound is a generic not-found for single-row lookups.
	ErrNotFound = errors.New("persistence: not found")
)
