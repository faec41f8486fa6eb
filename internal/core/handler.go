package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

var validate = validator.New()

type sendInput struct {
	ConversationID int64  `validate:"gt=0"`
	Content        string `validate:"required"`
}

type readInput struct {
	MessageID int64 `validate:"gt=0"`
}

// Handler turns connection lifecycle and inbound frames into registry
// updates, persistence calls and dispatches.
type Handler struct {
	registry   *Registry
	dispatcher *Dispatcher
	messages   MessagePersistence
	reads      ReadReceipts
	codec      Codec
	now        func() time.Time
	log        zerolog.Logger
}

// NewHandler constructs the inbound handler.
func NewHandler(registry *Registry, dispatcher *Dispatcher, messages MessagePersistence, reads ReadReceipts, codec Codec, logger *zerolog.Logger) *Handler {
	h := &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		messages:   messages,
		reads:      reads,
		codec:      codec,
		now:        func() time.Time { return time.Now().UTC() },
		log:        zerolog.Nop(),
	}
	if logger != nil {
		h.log = logger.With().Str("component", "handler").Logger()
	}
	return h
}

// OnConnect registers an authenticated connection.
func (h *Handler) OnConnect(userID int64, conn Conn) {
	h.registry.Register(userID, conn)
	h.log.Debug().Int64("user_id", userID).Str("conn_id", conn.ID()).Msg("connection registered")
}

// OnDisconnect unregisters the connection. Safe to call more than once.
func (h *Handler) OnDisconnect(conn Conn) {
	if userID, ok := h.registry.Remove(conn); ok {
		h.log.Debug().Int64("user_id", userID).Str("conn_id", conn.ID()).Msg("connection unregistered")
	}
}

// OnFrame processes one raw inbound frame from conn.
// Failures tied to the frame are reported to conn only; the connection stays open.
func (h *Handler) OnFrame(ctx context.Context, conn Conn, raw []byte) {
	frame, err := h.codec.Decode(raw)
	if err != nil {
		h.Reject(ctx, conn, err)
		return
	}

	switch frame.Kind {
	case FrameMessage:
		if _, err := h.SendMessage(ctx, conn.UserID(), frame.ConversationID, frame.Content, frame.ClientID); err != nil {
			h.Reject(ctx, conn, err)
		}
	case FrameTyping:
		h.typing(ctx, conn, frame.ConversationID)
	case FrameRead:
		if _, err := h.MarkRead(ctx, conn.UserID(), frame.MessageID); err != nil {
			h.Reject(ctx, conn, err)
		}
	default:
		h.Reject(ctx, conn, fmt.Errorf("%w: %q", ErrUnsupportedType, frame.Type))
	}
}

// Reject sends an error event for err to conn alone.
func (h *Handler) Reject(ctx context.Context, conn Conn, err error) {
	if sendErr := h.dispatcher.Unicast(ctx, conn, errorEvent(err)); sendErr != nil {
		h.log.Debug().Err(sendErr).Str("conn_id", conn.ID()).Msg("error reply not delivered")
	}
}

// SendMessage persists a message and fans it out to the conversation,
// including every connection of the sender. It serves both websocket
// frames and REST sends. A dispatch failure after a successful persist is
// logged only; the message stays reachable through polling.
func (h *Handler) SendMessage(ctx context.Context, senderID, conversationID int64, content, clientID string) (*store.Message, error) {
	in := sendInput{ConversationID: conversationID, Content: strings.TrimSpace(content)}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, describeValidation(err))
	}

	msg, err := h.messages.CreateMessage(ctx, in.Content, senderID, in.ConversationID)
	if err != nil {
		return nil, h.persistenceError("create message", err)
	}

	if _, err := h.dispatcher.Dispatch(ctx, conversationID, NewMessageEvent(msg, clientID)); err != nil {
		h.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("new_message not dispatched")
	}
	return msg, nil
}

// MarkRead records a read receipt and notifies the conversation.
func (h *Handler) MarkRead(ctx context.Context, userID, messageID int64) (*store.MessageRead, error) {
	if err := validate.Struct(readInput{MessageID: messageID}); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, describeValidation(err))
	}

	read, err := h.reads.MarkRead(ctx, messageID, userID)
	if err != nil {
		return nil, h.persistenceError("mark read", err)
	}

	if _, err := h.dispatcher.Dispatch(ctx, read.ConversationID, ReadReceiptEvent(read)); err != nil {
		h.log.Warn().Err(err).Int64("message_id", messageID).Msg("read_receipt not dispatched")
	}
	return read, nil
}

func (h *Handler) typing(ctx context.Context, conn Conn, conversationID int64) {
	if conversationID <= 0 {
		return
	}
	ev := TypingEvent(conversationID, conn.UserID(), h.now())
	if _, err := h.dispatcher.Dispatch(ctx, conversationID, ev, ExcludeConn(conn.ID()), FromMember(conn.UserID())); err != nil {
		h.log.Debug().Err(err).Int64("conversation_id", conversationID).Msg("typing dropped")
	}
}

func (h *Handler) persistenceError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrEmptyContent):
		return fmt.Errorf("%w: content is empty", ErrValidation)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, store.ErrNotParticipant):
		return fmt.Errorf("%s: %w", op, ErrNotParticipant)
	default:
		h.log.Error().Err(err).Str("op", op).Msg("persistence failed")
		return fmt.Errorf("%s: %w", op, err)
	}
}

func errorEvent(err error) *Event {
	return ErrorEvent(ErrorFor(err))
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Content":
		return "content is empty"
	case "ConversationID":
		return "conversation id is required"
	case "MessageID":
		return "message id is required"
	default:
		return fe.Error()
	}
}
