package core

// FrameKind classifies an inbound frame by its declared type.
type FrameKind int

const (
	// FrameUnknown is any type the server does not handle.
	FrameUnknown FrameKind = iota
	// FrameMessage asks to persist and fan out a chat message.
	FrameMessage
	// FrameTyping announces a typing indicator.
	FrameTyping
	// FrameRead marks a message as read.
	FrameRead
)

// Frame is a decoded inbound frame.
type Frame struct {
	Kind           FrameKind
	Type           string // declared type as sent by the client
	ConversationID int64
	Content        string
	MessageID      int64
	ClientID       string
}
