package orchestrator

import "errors"

// Package-level sentinel errors for the orchestrator's public operations
// (spec §7 class 3: "application-visible denial").
var (
	ErrClosed             = errors.New("orchestrator: closed")
	ErrChannelExists       = errors.New("orchestrator: channel already exists")
	ErrChannelNotFound     = errors.New("orchestrator: channel not found")
	ErrWrongPassword       = errors.New("orchestrator: wrong channel password")
	// ErrNotPrivateChannel is returned when an operation does not fit the
	// channel's kind: InvitePeer on a channel that is not invite-based
	// private, JoinChannel on an invite-only private channel, and
	// JoinLegacyChannel on a channel that is not a legacy password channel.
	ErrNotPrivateChannel   = errors.New("orchestrator: operation does not fit the channel's kind")
	ErrPeerUnknown         = errors.New("orchestrator: peer unknown")
	ErrPeerNotConnected    = errors.New("orchestrator: peer not connected")
	ErrInviteDenied        = errors.New("orchestrator: not authorized to invite for this channel")
)
