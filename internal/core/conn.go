package core

import (
	"context"
	"time"
)

// Conn is a live duplex channel owned by a single authenticated user.
// Send must be safe to call concurrently with Close; a write after close
// returns an error instead of panicking.
type Conn interface {
	// ID uniquely identifies the connection for its whole lifetime.
	ID() string
	// UserID is the identity resolved by the session provider before registration.
	UserID() int64
	// ConnectedAt reports when the channel was established.
	ConnectedAt() time.Time
	// Send writes one serialized event. Implementations serialize concurrent writes.
	Send(ctx context.Context, payload []byte) error
	// Close releases the underlying transport.
	Close() error
}
