package discovery

import "errors"

// Package-level sentinel errors for discovery.
var (
	ErrClosed         = errors.New("discovery: closed")
	ErrAlreadyStarted = errors.New("discovery: already started")
	ErrNotStarted     = errors.New("discovery: not started")
	ErrInvalidTXT     = errors.New("discovery: invalid TXT record")
)
