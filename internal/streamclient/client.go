// Package streamclient consumes the hazard notification stream the way a
// dashboard does: it stays connected, reconnects after a fixed delay when
// the stream drops, and hands hazard events to a Handler.
package streamclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/jonboulle/clockwork"

	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/infrastructure/logger"
)

const DefaultRetryDelay = 5 * time.Second

var ErrStreamClosed = errors.New("stream closed by server")

// Handler receives hazard and test notifications. It is called from the
// stream goroutine and must not block for long.
type Handler interface {
	HandleNotification(n *notification.Notification)
}

type HandlerFunc func(n *notification.Notification)

func (f HandlerFunc) HandleNotification(n *notification.Notification) { f(n) }

type Client struct {
	url        string
	httpClient *http.Client
	clock      clockwork.Clock
	handler    Handler
	logger     logger.Logger

	retryDelay  time.Duration
	reconnector *Reconnector

	connected atomic.Bool
	mu        sync.RWMutex
	clientID  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func New(url string, handler Handler, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{},
		clock:      clockwork.NewRealClock(),
		handler:    handler,
		logger:     log.WithField("component", "stream-client"),
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reconnector = NewReconnector(c.clock, c.retryDelay)
	return c
}

// Run keeps the stream open until ctx ends. Any connection-level failure
// schedules one reconnect after the retry delay. There is no retry limit.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.stream(ctx)
		c.connected.Store(false)
		if ctx.Err() != nil {
			c.reconnector.Cancel()
			return ctx.Err()
		}

		c.logger.Warnf("Stream interrupted: %v; reconnecting in %s", err, c.retryDelay)
		select {
		case <-c.reconnector.Schedule():
		case <-ctx.Done():
			c.reconnector.Cancel()
			return ctx.Err()
		}
	}
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// ClientID is the identifier from the last connection ack
func (c *Client) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", sse.ContentType)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.connected.Store(true)
	c.reconnector.Cancel()
	c.logger.Infof("Connected to %s", c.url)

	return c.readFrames(resp.Body)
}

// readFrames splits the body into events on blank lines and joins the
// "data:" lines of each event.
func (c *Client) readFrames(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				c.dispatch(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return ErrStreamClosed
}

func (c *Client) dispatch(data string) {
	c.reconnector.Cancel()

	n, err := notification.Decode([]byte(data))
	if err != nil {
		c.logger.Warnf("Skipping undecodable frame: %v", err)
		return
	}

	switch n.Type {
	case notification.TypeConnectionAck:
		c.mu.Lock()
		c.clientID = n.Text("clientId")
		c.mu.Unlock()
		c.logger.Infof("Stream acknowledged as %s", n.Text("clientId"))
	case notification.TypeHeartbeat:
		c.logger.Debug("Heartbeat")
	default:
		c.handler.HandleNotification(n)
	}
}
