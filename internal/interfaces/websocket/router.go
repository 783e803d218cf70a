package websocket

import (
	"github.com/gin-gonic/gin"

	"hazard-notification-sse/internal/infrastructure/hub"
	"hazard-notification-sse/internal/infrastructure/logger"
)

// InitWebSocketRouter mounts the WebSocket stream under rg (/api/notifications)
func InitWebSocketRouter(logger logger.Logger, hubInstance *hub.Hub, rg *gin.RouterGroup) {
	wsHandler := NewWebSocketHandler(hubInstance, logger)

	rg.GET("/ws", wsHandler.Connect)
	rg.GET("/connections", wsHandler.GetConnections)
}
