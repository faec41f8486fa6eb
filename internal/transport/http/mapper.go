package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/proto"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ConversationResponse represents a conversation in API responses.
type ConversationResponse struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name,omitempty"`
	CreatedBy   int64          `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	LastMessage *proto.Message `json:"lastMessage,omitempty"`
}

// ReadReceiptResponse is returned by the mark-read endpoint.
type ReadReceiptResponse struct {
	MessageID      int64     `json:"messageId"`
	ConversationID int64     `json:"conversationId"`
	UserID         int64     `json:"userId"`
	ReadAt         time.Time `json:"readAt"`
}

// SyncResponse tells polling clients what changed and how often to ask again.
type SyncResponse struct {
	PollInterval  int64                  `json:"pollInterval"` // milliseconds
	ServerTime    time.Time              `json:"serverTime"`
	Conversations []ConversationResponse `json:"conversations"`
}

func conversationResponse(conv *store.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:        conv.ID,
		Type:      string(conv.Type),
		Name:      conv.Name,
		CreatedBy: conv.CreatedBy,
		CreatedAt: conv.CreatedAt.UTC(),
		UpdatedAt: conv.UpdatedAt.UTC(),
	}
	if conv.LastMessage != nil {
		msg := proto.MessageFromStore(conv.LastMessage)
		resp.LastMessage = &msg
	}
	return resp
}

func conversationResponses(convs []*store.Conversation) []ConversationResponse {
	return lo.Map(convs, func(c *store.Conversation, _ int) ConversationResponse {
		return conversationResponse(c)
	})
}

func messageResponses(msgs []*store.Message) []proto.Message {
	return lo.Map(msgs, func(m *store.Message, _ int) proto.Message {
		return proto.MessageFromStore(m)
	})
}

func readReceiptResponse(read *store.MessageRead) ReadReceiptResponse {
	return ReadReceiptResponse{
		MessageID:      read.MessageID,
		ConversationID: read.ConversationID,
		UserID:         read.UserID,
		ReadAt:         read.ReadAt.UTC(),
	}
}

// errorStatus maps core and store errors to an HTTP status and body.
func errorStatus(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		err = core.ErrNotFound
	case errors.Is(err, store.ErrNotParticipant):
		err = core.ErrNotParticipant
	case errors.Is(err, store.ErrEmptyContent), errors.Is(err, store.ErrInvalidConversation):
		err = fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	ce := core.ErrorFor(err)
	status := http.StatusInternalServerError
	switch ce.Code {
	case core.ErrCodeValidation, core.ErrCodeParse:
		status = http.StatusBadRequest
	case core.ErrCodeNotFound:
		status = http.StatusNotFound
	case core.ErrCodeForbidden:
		status = http.StatusForbidden
	case core.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	}
	return status, ErrorResponse{Error: ce.Message, Code: ce.Code}
}
