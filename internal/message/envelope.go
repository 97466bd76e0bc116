package message

// EnvelopeType is the closed set of message envelope types exchanged over
// the wire (spec §6).
type EnvelopeType string

const (
	EnvelopeHello          EnvelopeType = "hello"
	EnvelopeWelcome        EnvelopeType = "welcome"
	EnvelopeMessage        EnvelopeType = "message"
	EnvelopeGossip         EnvelopeType = "gossip"
	EnvelopeCreateChannel  EnvelopeType = "create_channel"
	EnvelopeJoinChannel    EnvelopeType = "join_channel"
	EnvelopeLeaveChannel   EnvelopeType = "leave_channel"
	EnvelopeInvite         EnvelopeType = "invite"
	EnvelopePeerAnnounce   EnvelopeType = "peer_announce"
	EnvelopePeerRequest    EnvelopeType = "peer_request"
	EnvelopePeerResponse   EnvelopeType = "peer_response"
	EnvelopeSyncRequest    EnvelopeType = "sync_request"
	EnvelopeSyncResponse   EnvelopeType = "sync_response"
	EnvelopePing           EnvelopeType = "ping"
	EnvelopePong           EnvelopeType = "pong"
	EnvelopeError          EnvelopeType = "error"
)

// ErrorCode is the closed set of structured error codes surfaced to the UI
// or used to tear down a handshake (spec §6/§7).
type ErrorCode string

const (
	ErrCodeInvalidFormat      ErrorCode = "INVALID_FORMAT"
	ErrCodeInvalidSignature   ErrorCode = "INVALID_SIGNATURE"
	ErrCodeUnknownSender      ErrorCode = "UNKNOWN_SENDER"
	ErrCodeChannelNotFound    ErrorCode = "CHANNEL_NOT_FOUND"
	ErrCodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeMessageTooLarge    ErrorCode = "MESSAGE_TOO_LARGE"
	ErrCodeProtocolVersionMismatch ErrorCode = "PROTOCOL_VERSION_MISMATCH"
)

// ProtocolVersion is the current TAD wire protocol semver.
const ProtocolVersion = "1.0.0"

// InviteChannelPrefix marks a Message's Channel field as an invite
// addressed to a specific node rather than a chat channel (spec §4.5
// step 3: "addressed to channel @invite:<P_node_id>").
const InviteChannelPrefix = "@invite:"

// InviteChannelFor returns the pseudo-channel name an invite to nodeID
// is addressed to.
func InviteChannelFor(nodeID string) string {
	return InviteChannelPrefix + nodeID
}

// InviteTarget returns the node_id an invite pseudo-channel is addressed
// to, and whether channel was in fact an invite pseudo-channel.
func InviteTarget(channel string) (nodeID string, ok bool) {
	if len(channel) <= len(InviteChannelPrefix) || channel[:len(InviteChannelPrefix)] != InviteChannelPrefix {
		return "", false
	}
	return channel[len(InviteChannelPrefix):], true
}

// PeerInfo is the address/identity tuple exchanged in welcome and
// peer_response envelopes.
type PeerInfo struct {
	NodeID     string `json:"node_id"`
	Address    string `json:"address"`
	PublicKey  []byte `json:"public_key,omitempty"`
	EncryptKey []byte `json:"encrypt_key,omitempty"`
}

// Envelope is the single wire struct for every envelope type; unused
// fields are omitted on the wire via `omitempty`. Handling dispatches on
// Type with a single closed switch (spec §9: "replace [dynamic dispatch]
// with a closed variant over envelope type, dispatched by a single
// match").
type Envelope struct {
	Type         EnvelopeType `json:"type"`
	Version      string       `json:"version,omitempty"`
	NodeID       string       `json:"node_id,omitempty"`
	PublicKey    []byte       `json:"public_key,omitempty"`
	EncryptKey   []byte       `json:"encrypt_key,omitempty"`
	Timestamp    float64      `json:"timestamp,omitempty"`
	Capabilities []string     `json:"capabilities,omitempty"`
	Peers        []PeerInfo   `json:"peers,omitempty"`

	Message *Message `json:"message,omitempty"`

	Channel   string `json:"channel,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
	Salt      []byte `json:"salt,omitempty"`
	Password  string `json:"password,omitempty"`

	SealedInvite []byte `json:"sealed_invite,omitempty"`

	Code   ErrorCode `json:"code,omitempty"`
	Detail string    `json:"detail,omitempty"`

	Since    float64    `json:"since,omitempty"`
	Messages []*Message `json:"messages,omitempty"`
}
