package hub

import (
	"context"
	"errors"
	"time"
)

var ErrTransportClosed = errors.New("transport is closed")

// Transport is one open streaming channel to a client (SSE, WebSocket, etc.)
type Transport interface {
	// Kind names the transport for diagnostics
	Kind() string
	// Write frames and sends one serialized notification. Writes to a single
	// transport are serialized; a write after Close returns ErrTransportClosed.
	Write(ctx context.Context, payload []byte) error
	// Close is idempotent and waits for an in-flight write to finish
	Close() error
	// Done is closed once the transport is closed or the peer went away
	Done() <-chan struct{}
}

// Connection is a registry entry. Its identity is ID, never its field values.
type Connection struct {
	ID        string
	Transport Transport
	CreatedAt time.Time
}

// ConnectionInfo is the diagnostics view of a registry entry
type ConnectionInfo struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}
