package gossip

import "errors"

// Package-level sentinel errors and drop reasons for the gossip engine
// (spec §4.4, §7).
var (
	ErrClosed            = errors.New("gossip: closed")
	ErrInvalidFormat     = errors.New("gossip: invalid message format")
	ErrDuplicate         = errors.New("gossip: duplicate message")
	ErrStaleTimestamp    = errors.New("gossip: timestamp outside acceptance window")
	ErrUnknownSender     = errors.New("gossip: unknown sender")
	ErrInvalidSignature  = errors.New("gossip: invalid signature")
	ErrPermissionDenied  = errors.New("gossip: permission denied")
	ErrDecryptionFailed  = errors.New("gossip: decryption failed")
	ErrRateLimited       = errors.New("gossip: rate limited")
	ErrBlockedSender     = errors.New("gossip: sender is blocked")
	ErrChannelNotFound   = errors.New("gossip: channel not found")
	ErrStorageFailed     = errors.New("gossip: storage failed")
)
