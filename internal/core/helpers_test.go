package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/proto"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeConn records every payload written to it.
type fakeConn struct {
	id          string
	userID      int64
	connectedAt time.Time

	mu       sync.Mutex
	payloads [][]byte
	closed   bool
	failWith error
	onSend   func()
}

var connSeq struct {
	sync.Mutex
	at time.Time
}

func newFakeConn(id string, userID int64) *fakeConn {
	connSeq.Lock()
	if connSeq.at.IsZero() {
		connSeq.at = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	connSeq.at = connSeq.at.Add(time.Millisecond)
	at := connSeq.at
	connSeq.Unlock()
	return &fakeConn{id: id, userID: userID, connectedAt: at}
}

func (c *fakeConn) ID() string             { return c.id }
func (c *fakeConn) UserID() int64          { return c.userID }
func (c *fakeConn) ConnectedAt() time.Time { return c.connectedAt }

func (c *fakeConn) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	hook := c.onSend
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	if c.closed {
		return core.ErrConnClosed
	}
	c.payloads = append(c.payloads, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) fail(err error) {
	c.mu.Lock()
	c.failWith = err
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// received returns the raw payloads written so far.
func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.payloads...)
}

// types returns the event type of every payload written so far.
func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, p := range c.received() {
		var env proto.Envelope
		require.NoError(t, json.Unmarshal(p, &env))
		out = append(out, env.Type)
	}
	return out
}

// onlyEvent decodes the single payload written to c into v.
func (c *fakeConn) onlyEvent(t *testing.T, v any) {
	t.Helper()
	got := c.received()
	require.Len(t, got, 1, "conn %s", c.id)
	require.NoError(t, json.Unmarshal(got[0], v))
}

// staticMembers is an in-memory membership provider.
type staticMembers struct {
	mu      sync.Mutex
	members map[int64][]int64
	err     error
	calls   int
}

func newStaticMembers(members map[int64][]int64) *staticMembers {
	return &staticMembers{members: members}
}

func (s *staticMembers) ActiveParticipants(_ context.Context, conversationID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	m, ok := s.members[conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]int64(nil), m...), nil
}

func (s *staticMembers) set(conversationID int64, members ...int64) {
	s.mu.Lock()
	s.members[conversationID] = members
	s.mu.Unlock()
}

func newTestDispatcher(registry *core.Registry, members core.MembershipProvider, opts ...core.DispatcherOption) *core.Dispatcher {
	logger := zerolog.Nop()
	return core.NewDispatcher(registry, members, proto.NewJSONCodec(), &logger, opts...)
}
