package sse

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/infrastructure/hub"
	"hazard-notification-sse/internal/infrastructure/logger"
)

const defaultTestMessage = "This is a test notification."

type ServerSentEventHandler struct {
	hub    *hub.Hub
	clock  clockwork.Clock
	logger logger.Logger
}

func NewServerSentEventHandler(hubInstance *hub.Hub, clock clockwork.Clock, logger logger.Logger) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		hub:    hubInstance,
		clock:  clock,
		logger: logger.WithField("handler", "sse"),
	}
}

// Connect opens an event stream and holds it until the client goes away or
// the hub drops the connection.
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
	if !h.hub.IsRunning() {
		h.logger.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Service temporarily unavailable",
		})
		return
	}

	transport := hub.NewSSETransport(c.Writer)
	id := h.hub.Register(transport)

	select {
	case <-transport.Done():
		h.logger.Debugf("Stream %s closed by hub", id)
	case <-c.Request.Context().Done():
		h.logger.Debugf("Client %s disconnected", id)
	}

	// Close waits for an in-flight write, so nothing touches the writer
	// after this handler returns.
	h.hub.Unregister(id)
	_ = transport.Close()
}

type clientInfo struct {
	ID string `json:"id"`
}

// ClientCount lists the registered streaming connections
func (h *ServerSentEventHandler) ClientCount(c *gin.Context) {
	ids := h.hub.IDs()
	clients := make([]clientInfo, len(ids))
	for i, id := range ids {
		clients[i] = clientInfo{ID: id}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"clientCount": len(ids),
		"clients":     clients,
	})
}

type TestNotificationRequest struct {
	Message string `json:"message"`
}

// SendTest publishes a test notification to every connection and reports
// how many deliveries succeeded.
func (h *ServerSentEventHandler) SendTest(c *gin.Context) {
	var req TestNotificationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Invalid request format",
				"error":   err.Error(),
			})
			return
		}
	}
	if req.Message == "" {
		req.Message = defaultTestMessage
	}

	n := notification.Test(req.Message, h.clock.Now().UTC().Truncate(time.Second))
	delivered := h.hub.Publish(c.Request.Context(), n)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Test notification sent.",
		"clientCount": delivered,
	})
}
