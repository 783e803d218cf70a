package hub

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/infrastructure/metrics"
	"hazard-notification-sse/internal/port/outbound"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
)

// Hub is the connection registry and broadcaster for streaming clients.
// It is process-local: connections held by another instance never see
// notifications published here.
type Hub struct {
	connections   map[string]*Connection
	connectionsMu sync.RWMutex

	running   bool
	runningMu sync.RWMutex

	logger logger.Logger
	clock  clockwork.Clock
	newID  func() string

	heartbeatInterval time.Duration
	writeTimeout      time.Duration

	stopHeartbeat context.CancelFunc
	wg            sync.WaitGroup
}

var _ outbound.Publisher = (*Hub)(nil)

type Option func(*Hub)

func WithClock(clock clockwork.Clock) Option {
	return func(h *Hub) { h.clock = clock }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) { h.heartbeatInterval = d }
}

// WithWriteTimeout bounds a single write; zero leaves it to the transport.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) { h.writeTimeout = d }
}

func WithIDGenerator(gen func() string) Option {
	return func(h *Hub) { h.newID = gen }
}

// New creates a new Hub instance
func New(log logger.Logger, opts ...Option) *Hub {
	h := &Hub{
		connections:       make(map[string]*Connection),
		logger:            log.WithField("component", "hub"),
		clock:             clockwork.NewRealClock(),
		newID:             uuid.NewString,
		heartbeatInterval: DefaultHeartbeatInterval,
		writeTimeout:      DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins the heartbeat ticker. It runs until Stop or until ctx ends.
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return fmt.Errorf("hub is already running")
	}

	hbCtx, cancel := context.WithCancel(ctx)
	h.stopHeartbeat = cancel
	h.running = true

	heartbeat := NewHeartbeat(h, h.clock, h.heartbeatInterval, h.logger)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		heartbeat.Run(hbCtx)
	}()

	h.logger.Infof("Hub started, heartbeat every %s", h.heartbeatInterval)
	return nil
}

// Stop halts the heartbeat and closes every registered connection
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	if !h.running {
		h.runningMu.Unlock()
		return nil
	}
	h.running = false
	h.stopHeartbeat()
	h.runningMu.Unlock()

	for _, id := range h.IDs() {
		h.Unregister(id)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hub stop: %w", ctx.Err())
	}
}

// IsRunning returns true if the hub is currently running
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// Register stores a new transport under a fresh identifier and sends it the
// connection-ack. It never fails: if the ack cannot be written the
// connection is dropped again and the identifier is still returned. A
// stopped hub closes the transport straight away.
func (h *Hub) Register(t Transport) string {
	conn := &Connection{
		ID:        h.newID(),
		Transport: t,
		CreatedAt: h.clock.Now(),
	}

	// Holding runningMu keeps Stop from snapshotting connections or waiting
	// on wg until this one is tracked.
	h.runningMu.RLock()
	if !h.running {
		h.runningMu.RUnlock()
		h.logger.Warnf("Connection %s rejected: hub is not running", conn.ID)
		if err := t.Close(); err != nil {
			h.logger.Warnf("Failed to close connection %s: %v", conn.ID, err)
		}
		return conn.ID
	}

	h.connectionsMu.Lock()
	h.connections[conn.ID] = conn
	count := len(h.connections)
	h.connectionsMu.Unlock()

	h.wg.Add(1)
	go h.watch(conn)
	h.runningMu.RUnlock()

	metrics.StreamConnections.Set(float64(count))
	h.logger.Infof("Connection %s registered (type: %s, total: %d)", conn.ID, t.Kind(), count)

	payload, err := notification.Encode(notification.ConnectionAck(conn.ID))
	if err != nil {
		h.logger.Errorf("Failed to encode connection ack: %v", err)
		h.Unregister(conn.ID)
		return conn.ID
	}
	if err := h.deliver(context.Background(), conn, payload); err != nil {
		h.logger.Warnf("Failed to send connection ack to %s: %v", conn.ID, err)
		h.Unregister(conn.ID)
	}

	return conn.ID
}

// Unregister removes a connection by identifier and closes its transport.
// Unknown identifiers are ignored.
func (h *Hub) Unregister(id string) {
	h.connectionsMu.Lock()
	conn, exists := h.connections[id]
	if exists {
		delete(h.connections, id)
	}
	count := len(h.connections)
	h.connectionsMu.Unlock()

	if !exists {
		return
	}

	metrics.StreamConnections.Set(float64(count))
	if err := conn.Transport.Close(); err != nil {
		h.logger.Warnf("Failed to close connection %s: %v", id, err)
	}
	h.logger.Infof("Connection %s unregistered (total: %d)", id, count)
}

// Publish serializes n once and writes it to every registered connection
// concurrently. Connections whose write fails are unregistered. It returns
// the number of successful deliveries.
func (h *Hub) Publish(ctx context.Context, n *notification.Notification) int {
	payload, err := notification.Encode(n)
	if err != nil {
		h.logger.Errorf("Refusing to publish notification: %v", err)
		return 0
	}
	metrics.NotificationsPublished.WithLabelValues(string(n.Type)).Inc()

	// A cancelled publisher must not look like a dead peer.
	ctx = context.WithoutCancel(ctx)

	var (
		delivered atomic.Int64
		eg        errgroup.Group
	)
	for _, conn := range h.snapshot() {
		eg.Go(func() error {
			if err := h.deliver(ctx, conn, payload); err != nil {
				metrics.NotificationDeliveries.WithLabelValues("failed").Inc()
				h.logger.Warnf("Failed to deliver %s to connection %s: %v", n.Type, conn.ID, err)
				h.Unregister(conn.ID)
				return nil
			}
			metrics.NotificationDeliveries.WithLabelValues("ok").Inc()
			delivered.Add(1)
			return nil
		})
	}
	_ = eg.Wait()

	count := int(delivered.Load())
	if n.Type != notification.TypeHeartbeat {
		h.logger.Infof("Published %s to %d connections", n.Type, count)
	}
	return count
}

// Count returns the number of registered connections
func (h *Hub) Count() int {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()
	return len(h.connections)
}

// IDs returns the registered connection identifiers in sorted order
func (h *Hub) IDs() []string {
	h.connectionsMu.RLock()
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	h.connectionsMu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Connections returns a diagnostics view of every registered connection
func (h *Hub) Connections() []ConnectionInfo {
	conns := h.snapshot()
	infos := make([]ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		infos = append(infos, ConnectionInfo{ID: c.ID, Kind: c.Transport.Kind(), CreatedAt: c.CreatedAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (h *Hub) snapshot() []*Connection {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()

	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) deliver(ctx context.Context, conn *Connection, payload []byte) error {
	if h.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.writeTimeout)
		defer cancel()
	}
	return conn.Transport.Write(ctx, payload)
}

// watch unregisters a connection once its transport reports it is done
func (h *Hub) watch(conn *Connection) {
	defer h.wg.Done()
	<-conn.Transport.Done()
	h.Unregister(conn.ID)
}
