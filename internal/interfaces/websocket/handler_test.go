package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/infrastructure/hub"
	"hazard-notification-sse/internal/infrastructure/logger"
)

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewDiscardLogger()
	h := hub.New(log, hub.WithHeartbeatInterval(time.Hour))
	require.NoError(t, h.Start(context.Background()))

	router := gin.New()
	InitWebSocketRouter(log, h, router.Group("/api/notifications"))

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		_ = h.Stop(context.Background())
		srv.Close()
	})
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) *notification.Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	n, err := notification.Decode(data)
	require.NoError(t, err)
	return n
}

func TestConnect_ReceivesAckAndPublishes(t *testing.T) {
	srv, h := newTestServer(t)
	conn := dial(t, srv)
	defer conn.Close()

	ack := readNotification(t, conn)
	assert.Equal(t, notification.TypeConnectionAck, ack.Type)
	assert.Equal(t, h.IDs(), []string{ack.Text("clientId")})

	delivered := h.Publish(context.Background(), notification.Test("hello", time.Now()))
	assert.Equal(t, 1, delivered)

	n := readNotification(t, conn)
	assert.Equal(t, notification.TypeTest, n.Type)
	assert.Equal(t, "hello", n.Text("message"))
}

func TestConnect_CloseUnregisters(t *testing.T) {
	srv, h := newTestServer(t)
	conn := dial(t, srv)
	readNotification(t, conn)
	require.Equal(t, 1, h.Count())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGetConnections(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	defer conn.Close()
	ack := readNotification(t, conn)

	resp, err := http.Get(srv.URL + "/api/notifications/connections")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Total       int                  `json:"total"`
		Connections []hub.ConnectionInfo `json:"connections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Total)
	assert.Equal(t, ack.Text("clientId"), body.Connections[0].ID)
	assert.Equal(t, "websocket", body.Connections[0].Kind)
}
