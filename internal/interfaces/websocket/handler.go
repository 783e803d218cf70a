package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hazard-notification-sse/internal/infrastructure/hub"
	"hazard-notification-sse/internal/infrastructure/logger"
)

// WebSocketHandler serves the same notification stream over WebSocket
type WebSocketHandler struct {
	hub      *hub.Hub
	logger   logger.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler instance
func NewWebSocketHandler(hubInstance *hub.Hub, logger logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hubInstance,
		logger: logger.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins; the stream carries no
			// per-user data.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect upgrades the request and registers the socket with the hub
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if !h.hub.IsRunning() {
		h.logger.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Service temporarily unavailable",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	transport := hub.NewWebSocketTransport(conn, h.logger)
	id := h.hub.Register(transport)

	<-transport.Done()
	h.hub.Unregister(id)
	h.logger.Debugf("WebSocket connection %s disconnected", id)
}

// GetConnections returns the registered connections with their transport kind
func (h *WebSocketHandler) GetConnections(c *gin.Context) {
	connections := h.hub.Connections()

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"total":       len(connections),
		"connections": connections,
		"hub_running": h.hub.IsRunning(),
	})
}
