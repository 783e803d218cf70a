package hub

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"

	"hazard-notification-sse/internal/infrastructure/logger"
)

// SSETransport implements Transport for Server-Sent Events
type SSETransport struct {
	writer     http.ResponseWriter
	controller *http.ResponseController

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

var _ Transport = (*SSETransport)(nil)

// NewSSETransport sets the event-stream headers and commits the response so
// the client sees the stream open before the first frame.
func NewSSETransport(w http.ResponseWriter) *SSETransport {
	t := &SSETransport{
		writer:     w,
		controller: http.NewResponseController(w),
		done:       make(chan struct{}),
	}

	header := w.Header()
	header.Set("Content-Type", sse.ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no") // For nginx
	w.WriteHeader(http.StatusOK)
	_ = t.controller.Flush()

	return t
}

func (t *SSETransport) Kind() string {
	return "sse"
}

// Write sends one "data:" frame and flushes it
func (t *SSETransport) Write(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	var frame bytes.Buffer
	if err := sse.Encode(&frame, sse.Event{Data: string(payload)}); err != nil {
		return fmt.Errorf("failed to format SSE frame: %w", err)
	}

	// Unsupported on some writers (recorders, wrapped writers); the flush
	// error below still reports a dead peer where it can.
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.controller.SetWriteDeadline(deadline)
		defer t.controller.SetWriteDeadline(time.Time{}) //nolint:errcheck
	}

	if _, err := t.writer.Write(frame.Bytes()); err != nil {
		t.closeLocked()
		return fmt.Errorf("failed to write SSE frame: %w", err)
	}
	if err := t.controller.Flush(); err != nil {
		t.closeLocked()
		return fmt.Errorf("failed to flush SSE frame: %w", err)
	}
	return nil
}

// Close marks the transport closed. After it returns no further write will
// touch the response writer, so the HTTP handler may return.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
	return nil
}

func (t *SSETransport) Done() <-chan struct{} {
	return t.done
}

func (t *SSETransport) closeLocked() {
	t.closed = true
	t.closeOnce.Do(func() { close(t.done) })
}

// WebSocketTransport implements Transport over a WebSocket connection.
// Every notification is one JSON text message.
type WebSocketTransport struct {
	conn   *websocket.Conn
	logger logger.Logger

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once

	closeTimeout time.Duration
}

var _ Transport = (*WebSocketTransport)(nil)

func NewWebSocketTransport(conn *websocket.Conn, log logger.Logger) *WebSocketTransport {
	t := &WebSocketTransport{
		conn:         conn,
		logger:       log,
		done:         make(chan struct{}),
		closeTimeout: time.Second,
	}

	go t.readPump()

	return t
}

func (t *WebSocketTransport) Kind() string {
	return "websocket"
}

func (t *WebSocketTransport) Write(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		t.closeLocked()
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.closeLocked()
		return fmt.Errorf("failed to write websocket message: %w", err)
	}
	return nil
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
	return nil
}

func (t *WebSocketTransport) Done() <-chan struct{} {
	return t.done
}

func (t *WebSocketTransport) closeLocked() {
	t.closeOnce.Do(func() {
		t.closed = true
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.closeTimeout))
		_ = t.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = t.conn.Close()
		close(t.done)
	})
}

// readPump drains client frames so control messages are processed and a
// peer that goes away is noticed.
func (t *WebSocketTransport) readPump() {
	defer t.Close()

	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure,
			) {
				t.logger.Warnf("WebSocket read error: %v", err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			t.logger.Debugf("Ignoring client message: %s", string(data))
		}
	}
}
