package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a conversation or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyContent is returned when a message body is empty.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrNotParticipant is returned when a user is not an active participant.
	ErrNotParticipant = errors.New("not a participant of this conversation")
	// ErrInvalidConversation is returned when a conversation cannot be created as requested.
	ErrInvalidConversation = errors.New("invalid conversation")
)

// ConversationType defines the kind of conversation.
type ConversationType string

const (
	ConversationTypeDirect ConversationType = "direct"
	ConversationTypeGroup  ConversationType = "group"
)

// ParticipantRole defines a participant's privileges in a conversation.
type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Conversation represents a direct or group conversation.
type Conversation struct {
	ID          int64
	Type        ConversationType
	Name        string
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastMessage *Message // populated by ListConversations only
}

// Participant represents a user's membership in a conversation.
type Participant struct {
	ID             int64
	ConversationID int64
	UserID         int64
	Role           ParticipantRole
	JoinedAt       time.Time
	LeftAt         *time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	CreatedAt      time.Time
}

// MessageRead records that a user has read a message.
type MessageRead struct {
	MessageID      int64
	ConversationID int64
	UserID         int64
	ReadAt         time.Time
}

// ConversationStore handles conversation and participant persistence.
type ConversationStore interface {
	// CreateConversation creates a conversation and adds the creator as admin.
	CreateConversation(ctx context.Context, convType ConversationType, name string, createdBy int64, participantIDs []int64) (*Conversation, error)

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id int64) (*Conversation, error)

	// ListConversations lists conversations the user actively participates in,
	// most recently updated first.
	ListConversations(ctx context.Context, userID int64) ([]*Conversation, error)

	// ActiveParticipants returns user IDs of participants who have not left.
	ActiveParticipants(ctx context.Context, conversationID int64) ([]int64, error)

	// AddParticipant adds (or re-adds) a user to a conversation.
	AddParticipant(ctx context.Context, conversationID, userID int64, role ParticipantRole) error

	// LeaveConversation marks the user's participation as ended.
	LeaveConversation(ctx context.Context, conversationID, userID int64) error

	// IsParticipant checks if the user is an active participant.
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message sent by an active participant.
	CreateMessage(ctx context.Context, content string, senderID, conversationID int64) (*Message, error)

	// ListMessages returns messages in chronological order.
	// beforeID and afterID are exclusive bounds; limit caps the result.
	ListMessages(ctx context.Context, conversationID int64, limit int, beforeID, afterID *int64) ([]*Message, error)

	// MarkRead records a read receipt. The first read time wins.
	MarkRead(ctx context.Context, messageID, userID int64) (*MessageRead, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	ConversationStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
