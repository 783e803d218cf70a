package sse

import (
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"hazard-notification-sse/internal/infrastructure/hub"
	"hazard-notification-sse/internal/infrastructure/logger"
)

// InitSSERouter mounts the stream and its diagnostics under rg, which is
// expected to be the /api/notifications group.
func InitSSERouter(logger logger.Logger, hubInstance *hub.Hub, clock clockwork.Clock, rg *gin.RouterGroup) {
	sseHandler := NewServerSentEventHandler(hubInstance, clock, logger)

	rg.GET("/stream", sseHandler.Connect)
	rg.GET("/clients/count", sseHandler.ClientCount)
	rg.POST("/test", sseHandler.SendTest)
}
