package core

import (
	"time"

	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage delivers a freshly persisted message to conversation participants.
	EventNewMessage EventKind = iota
	// EventTyping notifies participants that someone is typing.
	EventTyping
	// EventReadReceipt notifies participants that someone read a message.
	EventReadReceipt
	// EventError notifies the originating connection about a failed action.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventNewMessage:
		return "new_message"
	case EventTyping:
		return "typing"
	case EventReadReceipt:
		return "read_receipt"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is built fresh for every dispatch and never persisted.
type Event struct {
	Kind           EventKind
	ConversationID int64
	UserID         int64          // typing actor or reader
	Message        *store.Message // EventNewMessage
	ClientID       string         // sender's temporary id, echoed with EventNewMessage
	MessageID      int64          // EventReadReceipt
	At             time.Time
	Error          *CoreError
}

// NewMessageEvent builds a new_message event for a persisted message.
func NewMessageEvent(msg *store.Message, clientID string) *Event {
	return &Event{
		Kind:           EventNewMessage,
		ConversationID: msg.ConversationID,
		UserID:         msg.SenderID,
		Message:        msg,
		ClientID:       clientID,
		At:             msg.CreatedAt,
	}
}

// TypingEvent builds a typing indicator for userID in conversationID.
func TypingEvent(conversationID, userID int64, at time.Time) *Event {
	return &Event{
		Kind:           EventTyping,
		ConversationID: conversationID,
		UserID:         userID,
		At:             at,
	}
}

// ReadReceiptEvent builds a read_receipt event from a stored receipt.
func ReadReceiptEvent(read *store.MessageRead) *Event {
	return &Event{
		Kind:           EventReadReceipt,
		ConversationID: read.ConversationID,
		UserID:         read.UserID,
		MessageID:      read.MessageID,
		At:             read.ReadAt,
	}
}

// ErrorEvent wraps a reportable error.
func ErrorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
