package protocol

import (
	"fmt"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// MessageType identifies the type of protocol message. It is the value of
// the "type" field on the wire.
type MessageType string

// Protocol message types for delivery, lookup, and replies.
const (
	// MessageTypeSendMessage submits a legacy v1.1 envelope.
	MessageTypeSendMessage MessageType = "send_message"
	// MessageTypeSendQuantumMessage submits a quantum-safe envelope.
	MessageTypeSendQuantumMessage MessageType = "send_quantum_message"
	// MessageTypeFetchInbox requests the envelopes held for an inbox.
	MessageTypeFetchInbox MessageType = "fetch_inbox"
	// MessageTypeInboxMessages returns legacy envelopes.
	MessageTypeInboxMessages MessageType = "inbox_messages"
	// MessageTypeQuantumInboxMessages returns quantum-safe envelopes.
	MessageTypeQuantumInboxMessages MessageType = "quantum_inbox_messages"
	// MessageTypePublishClaim publishes a signed username claim.
	MessageTypePublishClaim MessageType = "publish_claim"
	// MessageTypeLookupUsername asks for the keys bound to a username.
	MessageTypeLookupUsername MessageType = "lookup_username"
	// MessageTypeUsernameResult answers a lookup.
	MessageTypeUsernameResult MessageType = "username_result"

	MessageTypeSuccess MessageType = "success"
	MessageTypeError   MessageType = "error"
)

// Message is any protocol message.
type Message interface {
	Type() MessageType
}

// validator is implemented by messages with field constraints.
type validator interface {
	Validate() error
}

// SendMessage submits a legacy envelope for delivery.
type SendMessage struct {
	Envelope messaging.LegacyEnvelope `json:"envelope"`
}

// SendQuantumMessage submits a quantum-safe envelope for delivery.
type SendQuantumMessage struct {
	Envelope messaging.Envelope `json:"envelope"`
}

// FetchInbox requests the envelopes held for InboxID.
type FetchInbox struct {
	InboxID string `json:"inbox_id"`
}

// InboxMessages carries legacy envelopes from a relay.
type InboxMessages struct {
	Messages []messaging.LegacyEnvelope `json:"messages"`
}

// QuantumInboxMessages carries quantum-safe envelopes from a relay.
type QuantumInboxMessages struct {
	Messages []messaging.Envelope `json:"messages"`
}

// PublishClaim publishes a signed username claim.
type PublishClaim struct {
	Claim *messaging.UsernameClaim `json:"claim"`
}

// LookupUsername asks for the public keys bound to Username.
type LookupUsername struct {
	Username string `json:"username"`
}

// UsernameResult answers a LookupUsername. PublicKeys is nil when the
// username is not claimed.
type UsernameResult struct {
	Username   string              `json:"username"`
	PublicKeys *unified.PublicKeys `json:"public_keys"`
}

// Success is a generic positive reply.
type Success struct {
	Message string `json:"message"`
}

// Error is a generic negative reply. Message carries the reason.
type Error struct {
	Message string `json:"message"`
}

func (SendMessage) Type() MessageType          { return MessageTypeSendMessage }
func (SendQuantumMessage) Type() MessageType   { return MessageTypeSendQuantumMessage }
func (FetchInbox) Type() MessageType           { return MessageTypeFetchInbox }
func (InboxMessages) Type() MessageType        { return MessageTypeInboxMessages }
func (QuantumInboxMessages) Type() MessageType { return MessageTypeQuantumInboxMessages }
func (PublishClaim) Type() MessageType         { return MessageTypePublishClaim }
func (LookupUsername) Type() MessageType       { return MessageTypeLookupUsername }
func (UsernameResult) Type() MessageType       { return MessageTypeUsernameResult }
func (Success) Type() MessageType              { return MessageTypeSuccess }
func (Error) Type() MessageType                { return MessageTypeError }

// NewError builds an error reply from err.
func NewError(err error) *Error {
	return &Error{Message: err.Error()}
}

// Validate checks the envelope.
func (m SendMessage) Validate() error {
	return m.Envelope.Validate()
}

// Validate checks the envelope.
func (m SendQuantumMessage) Validate() error {
	return m.Envelope.Validate()
}

// Validate checks that an inbox is named.
func (m FetchInbox) Validate() error {
	if m.InboxID == "" {
		return fmt.Errorf("%w: inbox ID cannot be empty", qerrors.ErrInvalidMessage)
	}
	return nil
}

// Validate checks that a claim is present.
func (m PublishClaim) Validate() error {
	if m.Claim == nil {
		return fmt.Errorf("%w: missing claim", qerrors.ErrInvalidMessage)
	}
	return nil
}

// Validate checks the username syntax.
func (m LookupUsername) Validate() error {
	return messaging.ValidateUsername(m.Username)
}

// newMessage returns an empty message of type t for decoding.
func newMessage(t MessageType) (Message, error) {
	switch t {
	case MessageTypeSendMessage:
		return &SendMessage{}, nil
	case MessageTypeSendQuantumMessage:
		return &SendQuantumMessage{}, nil
	case MessageTypeFetchInbox:
		return &FetchInbox{}, nil
	case MessageTypeInboxMessages:
		return &InboxMessages{}, nil
	case MessageTypeQuantumInboxMessages:
		return &QuantumInboxMessages{}, nil
	case MessageTypePublishClaim:
		return &PublishClaim{}, nil
	case MessageTypeLookupUsername:
		return &LookupUsername{}, nil
	case MessageTypeUsernameResult:
		return &UsernameResult{}, nil
	case MessageTypeSuccess:
		return &Success{}, nil
	case MessageTypeError:
		return &Error{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", qerrors.ErrInvalidMessage, t)
	}
}

// MaxMessageSize is the maximum size of an encoded protocol message.
const MaxMessageSize = constants.MaxMessageSize
