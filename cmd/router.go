package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hazard-notification-sse/internal/infrastructure/hub"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/interfaces/rest/v1/handler"
	"hazard-notification-sse/internal/interfaces/sse"
	"hazard-notification-sse/internal/interfaces/websocket"
	"hazard-notification-sse/internal/port/inbound"
	"hazard-notification-sse/internal/port/outbound"
)

type routerDeps struct {
	hub     *hub.Hub
	hazards inbound.HazardUseCase
	polls   inbound.DeltaPollUseCase
	store   outbound.HazardRepository
	clock   clockwork.Clock
	log     logger.Logger
}

func InitRouter(deps routerDeps) http.Handler {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Cache-Control")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	rootGroup := router.Group("")

	rootGroup.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		storeErr := deps.store.Ping(ctx)
		if storeErr != nil || !deps.hub.IsRunning() {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":      status,
			"hub_running": deps.hub.IsRunning(),
			"connections": deps.hub.Count(),
		}
		if storeErr != nil {
			deps.log.Warnf("Store ping failed: %v", storeErr)
			body["store_error"] = storeErr.Error()
		}
		c.JSON(code, body)
	})

	rootGroup.GET("/metrics", gin.WrapH(promhttp.Handler()))

	notifications := rootGroup.Group("/api/notifications")
	sse.InitSSERouter(deps.log, deps.hub, deps.clock, notifications)
	websocket.InitWebSocketRouter(deps.log, deps.hub, notifications)

	complaintHandler := handler.NewComplaintHandler(deps.hazards, deps.log)
	roadControlHandler := handler.NewRoadControlHandler(deps.hazards, deps.polls, deps.log)
	apiGroup := rootGroup.Group("/api")
	{
		apiGroup.POST("/mobile/reports/submit", complaintHandler.Submit)
		apiGroup.GET("/mobile/road-controls/latest", roadControlHandler.Latest)
		apiGroup.POST("/road-controls", roadControlHandler.Create)
	}

	return router
}
