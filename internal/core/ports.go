//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks
package core

import (
	"context"

	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

// MembershipProvider resolves the active participants of a conversation.
type MembershipProvider interface {
	// ActiveParticipants returns user IDs of participants who have not left.
	// Unknown conversations fail with store.ErrNotFound.
	ActiveParticipants(ctx context.Context, conversationID int64) ([]int64, error)
}

// MessagePersistence durably records chat messages.
type MessagePersistence interface {
	// CreateMessage stores a message and returns it with its identity and timestamp.
	// It fails with store.ErrEmptyContent, store.ErrNotFound or store.ErrNotParticipant.
	CreateMessage(ctx context.Context, content string, senderID, conversationID int64) (*store.Message, error)
}

// ReadReceipts records that users have read messages.
type ReadReceipts interface {
	// MarkRead is idempotent; the first read time wins.
	MarkRead(ctx context.Context, messageID, userID int64) (*store.MessageRead, error)
}

// Codec translates between wire frames and core types.
type Codec interface {
	// Encode serializes an outbound event.
	Encode(ev *Event) ([]byte, error)
	// Decode parses an inbound frame. Malformed input wraps ErrParse.
	Decode(raw []byte) (Frame, error)
}

// Peer forwards encoded events to other dispatching instances.
type Peer interface {
	// Publish hands an already encoded event to the other instances.
	Publish(ctx context.Context, conversationID int64, payload []byte, excludeConnID string) error
}
