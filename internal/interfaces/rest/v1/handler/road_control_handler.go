package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hazard-notification-sse/internal/domain/hazard"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/port/inbound"
)

type RoadControlHandler struct {
	hazards inbound.HazardUseCase
	polls   inbound.DeltaPollUseCase
	logger  logger.Logger
}

type CreateRoadControlRequest struct {
	Description  string     `json:"description" binding:"required"`
	ControlType  string     `json:"controlType" binding:"required"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	Lat          float64    `json:"lat"`
	Lon          float64    `json:"lon"`
	Address      string     `json:"address"`
	PredictionID *int64     `json:"predictionId"`
	RoadID       *int64     `json:"roadId"`
}

func NewRoadControlHandler(
	hazards inbound.HazardUseCase,
	polls inbound.DeltaPollUseCase,
	logger logger.Logger,
) *RoadControlHandler {
	return &RoadControlHandler{
		hazards: hazards,
		polls:   polls,
		logger:  logger.WithField("handler", "road-control"),
	}
}

func (h *RoadControlHandler) Create(c *gin.Context) {
	var req CreateRoadControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnf("Invalid road control request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid road control format",
			"error":   err.Error(),
		})
		return
	}

	control := &hazard.RoadControl{
		PredictionID: req.PredictionID,
		Description:  req.Description,
		EndTime:      req.EndTime,
		RoadID:       req.RoadID,
		Lat:          req.Lat,
		Lon:          req.Lon,
		Address:      req.Address,
		Type:         hazard.ControlType(req.ControlType),
	}
	if req.StartTime != nil {
		control.StartTime = *req.StartTime
	}

	created, err := h.hazards.CreateRoadControl(c.Request.Context(), control)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Errorf("Failed to create road control: %v", err)
		}
		c.JSON(status, gin.H{
			"success": false,
			"message": "Failed to create road control",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Road control created",
		"data":    created.Summarize(),
	})
}

// Latest answers the mobile delta poll. The lastRequestTime the client
// receives is the one it must send next; on an empty poll it is the value
// it sent.
func (h *RoadControlHandler) Latest(c *gin.Context) {
	result, err := h.polls.Resolve(c.Request.Context(), c.Query("lastRequestTime"))
	if err != nil {
		h.logger.Errorf("Delta poll failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"newData": false,
			"data":    nil,
			"error":   err.Error(),
		})
		return
	}

	if !result.HasNew {
		c.JSON(http.StatusOK, gin.H{
			"data":            nil,
			"lastRequestTime": result.NextWatermark,
		})
		return
	}

	h.logger.Debugf("Delta poll returned control %d, next watermark %s", result.Record.ID, result.NextWatermark)
	c.JSON(http.StatusOK, gin.H{
		"newData":         true,
		"data":            result.Record,
		"lastRequestTime": result.NextWatermark,
	})
}
