package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-fanout/internal/auth"
	"github.com/vovakirdan/wirechat-fanout/internal/config"
	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/membership"
	"github.com/vovakirdan/wirechat-fanout/internal/proto"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
	"github.com/vovakirdan/wirechat-fanout/internal/store/sqlite"
)

const testSecret = "test-secret"

// testEnv is a full server backed by an in-memory database.
type testEnv struct {
	ts       *httptest.Server
	store    *sqlite.SQLiteStore
	auth     *auth.Service
	registry *core.Registry
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = testSecret
	cfg.PingInterval = 0
	cfg.PollInterval = 2 * time.Second
	for _, m := range mutate {
		m(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})

	codec := proto.NewJSONCodec()
	registry := core.NewRegistry()
	members := membership.NewGuarded(st, membership.Settings{Timeout: time.Second}, &logger)
	dispatcher := core.NewDispatcher(registry, members, codec, &logger, core.WithWriteTimeout(cfg.WriteTimeout))
	handler := core.NewHandler(registry, dispatcher, st, st, codec, &logger)

	server := NewServer(handler, authService, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService, registry: registry}
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := e.auth.Issue(userID, "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// conversation creates a group conversation owned by the first user.
func (e *testEnv) conversation(t *testing.T, users ...int64) int64 {
	t.Helper()
	conv, err := e.store.CreateConversation(context.Background(), store.ConversationTypeGroup, "test", users[0], users[1:])
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv.ID
}

// do performs an authenticated JSON request; userID 0 sends no credentials.
func (e *testEnv) do(t *testing.T, method, path string, userID int64, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// dial connects userID and waits until the server has registered the connection.
func (e *testEnv) dial(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()

	before := len(e.registry.Connections(userID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, e.wsURL()+"?token="+e.token(t, userID), nil)
	if err != nil {
		t.Fatalf("dial user %d: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	deadline := time.Now().Add(2 * time.Second)
	for len(e.registry.Connections(userID)) <= before {
		if time.Now().After(deadline) {
			t.Fatalf("user %d connection was not registered", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame proto.Inbound) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		t.Fatalf("send %s: %v", frame.Type, err)
	}
}

func sendRaw(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Fatalf("send raw: %v", err)
	}
}

// next reads one event and returns its type with the raw payload.
func next(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}

	var env proto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope %s: %v", data, err)
	}
	return env.Type, data
}

// expect reads the next event, checks its type and decodes it into v.
func expect(t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	got, data := next(t, conn)
	if got != typ {
		t.Fatalf("expected %s event, got %s: %s", typ, got, data)
	}
	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			t.Fatalf("unmarshal %s: %v", typ, err)
		}
	}
}

// expectError reads the next event and checks it is an error with code.
func expectError(t *testing.T, conn *websocket.Conn, code string) {
	t.Helper()
	var ev proto.Error
	expect(t, conn, proto.OutboundTypeError, &ev)
	if ev.Code != code {
		t.Fatalf("expected error code %s, got %s (%s)", code, ev.Code, ev.Message)
	}
}
