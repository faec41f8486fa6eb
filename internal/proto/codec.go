package proto

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

// JSONCodec is the JSON wire codec used on websocket connections.
type JSONCodec struct{}

// NewJSONCodec returns a ready codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

var _ core.Codec = (*JSONCodec)(nil)

// Decode parses a client frame. Unknown types decode to core.FrameUnknown.
func (c *JSONCodec) Decode(raw []byte) (core.Frame, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return core.Frame{}, fmt.Errorf("%w: %v", core.ErrParse, err)
	}
	if in.Type == "" {
		return core.Frame{}, fmt.Errorf("%w: missing type", core.ErrParse)
	}

	frame := core.Frame{
		Type:           in.Type,
		ConversationID: in.ConversationID,
		Content:        in.Content,
		MessageID:      in.MessageID,
		ClientID:       in.ClientID,
	}
	switch in.Type {
	case InboundTypeMessage:
		frame.Kind = core.FrameMessage
	case InboundTypeTyping:
		frame.Kind = core.FrameTyping
	case InboundTypeRead, InboundTypeReadReceipt:
		frame.Kind = core.FrameRead
	default:
		frame.Kind = core.FrameUnknown
	}
	return frame, nil
}

// Encode serializes an outbound event.
func (c *JSONCodec) Encode(ev *core.Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("encode: nil event")
	}

	var out any
	switch ev.Kind {
	case core.EventNewMessage:
		if ev.Message == nil {
			return nil, fmt.Errorf("encode new_message: missing message")
		}
		out = NewMessage{
			Type:           OutboundTypeNewMessage,
			ConversationID: ev.ConversationID,
			ClientID:       ev.ClientID,
			Message:        MessageFromStore(ev.Message),
		}
	case core.EventTyping:
		out = Typing{
			Type:           OutboundTypeTyping,
			ConversationID: ev.ConversationID,
			UserID:         ev.UserID,
			At:             utc(ev.At),
		}
	case core.EventReadReceipt:
		out = ReadReceipt{
			Type:           OutboundTypeReadReceipt,
			ConversationID: ev.ConversationID,
			MessageID:      ev.MessageID,
			UserID:         ev.UserID,
			ReadAt:         utc(ev.At),
		}
	case core.EventError:
		e := Error{Type: OutboundTypeError, Code: core.ErrCodeInternal, Message: "internal error"}
		if ev.Error != nil {
			e.Code = ev.Error.Code
			e.Message = ev.Error.Message
		}
		out = e
	default:
		return nil, fmt.Errorf("encode: unknown event kind %d", ev.Kind)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Kind, err)
	}
	return data, nil
}

// MessageFromStore converts a persisted message to its wire shape.
func MessageFromStore(m *store.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      utc(m.CreatedAt),
	}
}

// MessageToStore converts a wire message back to the persisted shape.
func MessageToStore(m Message) *store.Message {
	return &store.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// time.Time marshals as RFC 3339 with nanoseconds.
func utc(t time.Time) time.Time {
	return t.UTC()
}
