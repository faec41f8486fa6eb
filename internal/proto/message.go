package proto

import "time"

const (
	InboundTypeMessage     = "message"
	InboundTypeTyping      = "typing"
	InboundTypeRead        = "read"
	InboundTypeReadReceipt = "read_receipt"

	OutboundTypeNewMessage  = "new_message"
	OutboundTypeTyping      = "typing"
	OutboundTypeReadReceipt = "read_receipt"
	OutboundTypeError       = "error"
)

// Inbound is a frame sent by the client. Fields are used per type.
type Inbound struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
	MessageID      int64  `json:"messageId,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
}

// Message is the wire shape of a persisted chat message.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewMessage announces a persisted message.
type NewMessage struct {
	Type           string  `json:"type"`
	ConversationID int64   `json:"conversationId"`
	ClientID       string  `json:"clientId,omitempty"`
	Message        Message `json:"message"`
}

// Typing announces that a participant is typing.
type Typing struct {
	Type           string    `json:"type"`
	ConversationID int64     `json:"conversationId"`
	UserID         int64     `json:"userId"`
	At             time.Time `json:"at"`
}

// ReadReceipt announces that a participant read a message.
type ReadReceipt struct {
	Type           string    `json:"type"`
	ConversationID int64     `json:"conversationId"`
	MessageID      int64     `json:"messageId"`
	UserID         int64     `json:"userId"`
	ReadAt         time.Time `json:"readAt"`
}

// Error describes a failed client action.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope peeks at the type of any outbound event.
type Envelope struct {
	Type string `json:"type"`
}
