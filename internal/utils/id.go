package utils

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewConnID returns a unique identifier for a websocket connection.
func NewConnID() string {
	return uuid.NewString()
}

// NewInstanceID returns a sortable identifier for this server process.
func NewInstanceID() string {
	return ksuid.New().String()
}
