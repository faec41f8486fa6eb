package http

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-fanout/internal/config"
	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/proto"
)

func TestWebSocketMessageFanout(t *testing.T) {
	env := newTestEnv(t)
	convID := env.conversation(t, 1, 2)

	u1 := env.dial(t, 1)
	u2a := env.dial(t, 2)
	u2b := env.dial(t, 2)

	send(t, u1, proto.Inbound{Type: proto.InboundTypeMessage, ConversationID: convID, Content: "hello", ClientID: "tmp-1"})

	// Every connection, the sender's included, gets the same persisted message.
	var ids []int64
	for i, conn := range []*websocket.Conn{u1, u2a, u2b} {
		var ev proto.NewMessage
		expect(t, conn, proto.OutboundTypeNewMessage, &ev)
		if ev.ConversationID != convID || ev.Message.Content != "hello" || ev.Message.SenderID != 1 {
			t.Fatalf("conn %d: unexpected event %+v", i, ev)
		}
		if ev.ClientID != "tmp-1" {
			t.Fatalf("conn %d: expected clientId tmp-1, got %q", i, ev.ClientID)
		}
		ids = append(ids, ev.Message.ID)
	}
	if ids[0] != ids[1] || ids[0] != ids[2] {
		t.Fatalf("connections saw different message ids: %v", ids)
	}
}

func TestWebSocketOutsiderReceivesNothing(t *testing.T) {
	env := newTestEnv(t)
	convID := env.conversation(t, 1, 2)

	u1 := env.dial(t, 1)
	outsider := env.dial(t, 3)

	send(t, u1, proto.Inbound{Type: proto.InboundTypeMessage, ConversationID: convID, Content: "private"})
	expect(t, u1, proto.OutboundTypeNewMessage, nil)

	// The fanout above is complete once the sender has its copy, so the
	// outsider's first event must be the reply to its own bad frame.
	sendRaw(t, outsider, "{")
	expectError(t, outsider, core.ErrCodeParse)
}

func TestWebSocketOutsiderCannotSend(t *testing.T) {
	env := newTestEnv(t)
	convID := env.conversation(t, 1, 2)

	outsider := env.dial(t, 3)
	send(t, outsider, proto.Inbound{Type: proto.InboundTypeMessage, ConversationID: convID, Content: "hi"})
	expectError(t, outsider, core.ErrCodeForbidden)
}

func TestWebSocketTyping(t *testing.T) {
	env := newTestEnv(t)
	convID := env.conversation(t, 1, 2)

	u1 := env.dial(t, 1)
	u2 := env.dial(t, 2)

	send(t, u1, proto.Inbound{Type: proto.InboundTypeTyping, ConversationID: convID})

	var ev proto.Typing
	expect(t, u2, proto.OutboundTypeTyping, &ev)
	if ev.ConversationID != convID || ev.UserID != 1 {
		t.Fatalf("unexpected typing event: %+v", ev)
	}

	// The typist does not hear itself.
	sendRaw(t, u1, "not json")
	expectError(t, u1, core.ErrCodeParse)
}

func TestWebSocketReadReceipt(t *testing.T) {
	env := newTestEnv(t)
	convID := env.conversation(t, 1, 2)

	u1 := env.dial(t, 1)
	u2 := env.dial(t, 2)

	send(t, u1, proto.Inbound{Type: proto.InboundTypeMessage, ConversationID: convID, Content: "did you see this"})
	var msg proto.NewMessage
	expect(t, u1, proto.OutboundTypeNewMessage, nil)
	expect(t, u2, proto.OutboundTypeNewMessage, &msg)

	send(t, u2, proto.Inbound{Type: proto.InboundTypeRead, MessageID: msg.Message.ID})

	for i, conn := range []*websocket.Conn{u1, u2} {
		var ev proto.ReadReceipt
		expect(t, conn, proto.OutboundTypeReadReceipt, &ev)
		if ev.MessageID != msg.Message.ID || ev.UserID != 2 {
			t.Fatalf("conn %d: unexpected receipt %+v", i, ev)
		}
	}
}

func TestWebSocketErrorsKeepConnectionOpen(t *testing.T) {
	env := newTestEnv(t)
	convID := env.conversation(t, 1, 2)
	u1 := env.dial(t, 1)

	tests := []struct {
		name  string
		frame string
		code  string
	}{
		{name: "malformed", frame: "{", code: core.ErrCodeParse},
		{name: "missing type", frame: `{"content":"x"}`, code: core.ErrCodeParse},
		{name: "unknown type", frame: `{"type":"call"}`, code: core.ErrCodeUnsupportedType},
		{name: "empty content", frame: `{"type":"message","conversationId":1,"content":"  "}`, code: core.ErrCodeValidation},
		{name: "unknown conversation", frame: `{"type":"message","conversationId":999,"content":"x"}`, code: core.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendRaw(t, u1, tt.frame)
			expectError(t, u1, tt.code)
		})
	}

	send(t, u1, proto.Inbound{Type: proto.InboundTypeMessage, ConversationID: convID, Content: "still here"})
	expect(t, u1, proto.OutboundTypeNewMessage, nil)
}

func TestWebSocketRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.RateLimitPerMinute = 2 })
	u1 := env.dial(t, 1)

	for range 2 {
		sendRaw(t, u1, "{")
		expectError(t, u1, core.ErrCodeParse)
	}

	sendRaw(t, u1, "{")
	expectError(t, u1, core.ErrCodeRateLimited)
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t)
	u1 := env.dial(t, 1)
	if got := len(env.registry.Connections(1)); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}

	if err := u1.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(env.registry.Connections(1)) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection still registered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketReadLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MaxMessageBytes = 64 })
	u1 := env.dial(t, 1)

	sendRaw(t, u1, `{"type":"message","content":"`+strings.Repeat("a", 1024)+`"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := u1.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusMessageTooBig {
		t.Fatalf("expected close status %d, got %d (%v)", websocket.StatusMessageTooBig, status, err)
	}
}

// stuckConn is a registered recipient whose writes never complete.
type stuckConn struct {
	id     string
	userID int64
	at     time.Time
}

func (c *stuckConn) ID() string             { return c.id }
func (c *stuckConn) UserID() int64          { return c.userID }
func (c *stuckConn) ConnectedAt() time.Time { return c.at }
func (c *stuckConn) Close() error           { return nil }

func (c *stuckConn) Send(ctx context.Context, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketSenderSurvivesStuckRecipients(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.WriteTimeout = 400 * time.Millisecond
		c.PingInterval = 100 * time.Millisecond
	})
	convID := env.conversation(t, 1, 2)

	// Four dead connections of the recipient sit next to a live sender.
	for i := range 4 {
		env.registry.Register(2, &stuckConn{id: fmt.Sprintf("stuck-%d", i), userID: 2, at: time.Now()})
	}
	u1 := env.dial(t, 1)

	send(t, u1, proto.Inbound{Type: proto.InboundTypeMessage, ConversationID: convID, Content: "anyone there"})
	expect(t, u1, proto.OutboundTypeNewMessage, nil)

	// Keepalive pings keep succeeding while the fanout waits on the dead
	// writes, so the sender is still served afterwards.
	sendRaw(t, u1, "{")
	expectError(t, u1, core.ErrCodeParse)

	send(t, u1, proto.Inbound{Type: proto.InboundTypeMessage, ConversationID: convID, Content: "still here"})
	expect(t, u1, proto.OutboundTypeNewMessage, nil)

	if got := len(env.registry.Connections(1)); got != 1 {
		t.Fatalf("sender was dropped: %d connections", got)
	}
	if got := len(env.registry.Connections(2)); got != 0 {
		t.Fatalf("expected stuck connections to be evicted, %d left", got)
	}
}
