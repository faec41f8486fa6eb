package http

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/utils"
)

// wsConn adapts a websocket to core.Conn.
type wsConn struct {
	id           string
	userID       int64
	connectedAt  time.Time
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ core.Conn = (*wsConn)(nil)

func newWSConn(conn *websocket.Conn, userID int64, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		id:           utils.NewConnID(),
		userID:       userID,
		connectedAt:  time.Now().UTC(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ID() string             { return c.id }
func (c *wsConn) UserID() int64          { return c.userID }
func (c *wsConn) ConnectedAt() time.Time { return c.connectedAt }

// Send writes one text frame. Concurrent callers are serialized.
func (c *wsConn) Send(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return core.ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return core.ErrConnClosed
	}
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

// Close drops the underlying connection without a close handshake.
// It never waits on an in-flight Send.
func (c *wsConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.CloseNow()
}

// closeWith performs a close handshake with the given status.
func (c *wsConn) closeWith(status websocket.StatusCode, reason string) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	_ = c.conn.Close(status, reason)
}
