package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/proto"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

// ConversationHandlers serves the REST polling fallback and REST-originated sends.
type ConversationHandlers struct {
	store        store.Store
	handler      *core.Handler
	pollInterval time.Duration
	log          *zerolog.Logger
}

// NewConversationHandlers creates a new conversation handlers instance.
func NewConversationHandlers(st store.Store, handler *core.Handler, pollInterval time.Duration, logger *zerolog.Logger) *ConversationHandlers {
	return &ConversationHandlers{
		store:        st,
		handler:      handler,
		pollInterval: pollInterval,
		log:          logger,
	}
}

// CreateConversationRequest represents the create conversation request body.
type CreateConversationRequest struct {
	Type           string  `json:"type" binding:"required,oneof=direct group"`
	Name           string  `json:"name" binding:"max=64"`
	ParticipantIDs []int64 `json:"participantIds" binding:"required,min=1,dive,gt=0"`
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Content  string `json:"content" binding:"required"`
	ClientID string `json:"clientId" binding:"max=64"`
}

// ListConversations handles listing the caller's conversations.
// GET /api/conversations
func (h *ConversationHandlers) ListConversations(c *gin.Context) {
	uid, ok := h.user(c)
	if !ok {
		return
	}

	convs, err := h.store.ListConversations(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err, "failed to list conversations")
		return
	}

	c.JSON(http.StatusOK, conversationResponses(convs))
}

// CreateConversation handles conversation creation; the caller becomes admin.
// POST /api/conversations
func (h *ConversationHandlers) CreateConversation(c *gin.Context) {
	uid, ok := h.user(c)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create conversation request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeValidation})
		return
	}

	conv, err := h.store.CreateConversation(c.Request.Context(), store.ConversationType(req.Type), req.Name, uid, req.ParticipantIDs)
	if err != nil {
		h.fail(c, err, "failed to create conversation")
		return
	}

	h.log.Info().Int64("conversation_id", conv.ID).Int64("created_by", uid).Str("type", string(conv.Type)).Msg("conversation created")
	c.JSON(http.StatusCreated, conversationResponse(conv))
}

// LeaveConversation marks the caller as having left.
// POST /api/conversations/:id/leave
func (h *ConversationHandlers) LeaveConversation(c *gin.Context) {
	uid, ok := h.user(c)
	if !ok {
		return
	}
	convID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.store.LeaveConversation(c.Request.Context(), convID, uid); err != nil {
		h.fail(c, err, "failed to leave conversation")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages returns a page of messages, oldest first.
// GET /api/conversations/:id/messages?limit=&before=&after=
func (h *ConversationHandlers) ListMessages(c *gin.Context) {
	uid, ok := h.user(c)
	if !ok {
		return
	}
	convID, ok := pathID(c)
	if !ok {
		return
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: core.ErrCodeValidation})
		return
	}
	before, err := queryID(c, "before")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before", Code: core.ErrCodeValidation})
		return
	}
	after, err := queryID(c, "after")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid after", Code: core.ErrCodeValidation})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetConversation(ctx, convID); err != nil {
		h.fail(c, err, "failed to load conversation")
		return
	}
	member, err := h.store.IsParticipant(ctx, convID, uid)
	if err != nil {
		h.fail(c, err, "failed to check membership")
		return
	}
	if !member {
		h.fail(c, store.ErrNotParticipant, "")
		return
	}

	msgs, err := h.store.ListMessages(ctx, convID, limit, before, after)
	if err != nil {
		h.fail(c, err, "failed to list messages")
		return
	}
	c.JSON(http.StatusOK, messageResponses(msgs))
}

// SendMessage persists a message and pushes it to connected participants.
// POST /api/conversations/:id/messages
func (h *ConversationHandlers) SendMessage(c *gin.Context) {
	uid, ok := h.user(c)
	if !ok {
		return
	}
	convID, ok := pathID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeValidation})
		return
	}

	msg, err := h.handler.SendMessage(c.Request.Context(), uid, convID, req.Content, req.ClientID)
	if err != nil {
		h.fail(c, err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, proto.MessageFromStore(msg))
}

// MarkRead records a read receipt for the caller.
// POST /api/messages/:id/read
func (h *ConversationHandlers) MarkRead(c *gin.Context) {
	uid, ok := h.user(c)
	if !ok {
		return
	}
	msgID, ok := pathID(c)
	if !ok {
		return
	}

	read, err := h.handler.MarkRead(c.Request.Context(), uid, msgID)
	if err != nil {
		h.fail(c, err, "failed to mark message read")
		return
	}
	c.JSON(http.StatusOK, readReceiptResponse(read))
}

// Sync returns the caller's conversations with their last message and the
// interval at which clients should poll again.
// GET /api/sync
func (h *ConversationHandlers) Sync(c *gin.Context) {
	uid, ok := h.user(c)
	if !ok {
		return
	}

	convs, err := h.store.ListConversations(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err, "failed to sync")
		return
	}

	c.JSON(http.StatusOK, SyncResponse{
		PollInterval:  h.pollInterval.Milliseconds(),
		ServerTime:    time.Now().UTC(),
		Conversations: conversationResponses(convs),
	})
}

func (h *ConversationHandlers) user(c *gin.Context) (int64, bool) {
	uid, ok := currentUser(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return 0, false
	}
	return uid, true
}

// fail writes the mapped error. Server-side failures are logged with msg.
func (h *ConversationHandlers) fail(c *gin.Context, err error, msg string) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	}
	c.JSON(status, body)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id", Code: core.ErrCodeValidation})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func queryID(c *gin.Context, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
