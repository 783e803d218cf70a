package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hazard-notification-sse/internal/domain/hazard"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/port/inbound"
)

type ComplaintHandler struct {
	hazards inbound.HazardUseCase
	logger  logger.Logger
}

type SubmitComplaintRequest struct {
	Detail        string   `json:"detail" binding:"required"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Address       string   `json:"addr"`
	ReporterName  string   `json:"reporterName"`
	ReporterPhone string   `json:"reporterPhone"`
	Files         []string `json:"files" binding:"max=3"`
}

type ComplaintResponse struct {
	ReportID int64    `json:"reportId"`
	Address  string   `json:"addr"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Detail   string   `json:"detail"`
	Files    []string `json:"files"`
}

func NewComplaintHandler(hazards inbound.HazardUseCase, logger logger.Logger) *ComplaintHandler {
	return &ComplaintHandler{
		hazards: hazards,
		logger:  logger.WithField("handler", "complaint"),
	}
}

// Submit stores a citizen report. Subscribers are notified in the
// background, so the response never waits on fan-out.
func (h *ComplaintHandler) Submit(c *gin.Context) {
	var req SubmitComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnf("Invalid complaint request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Report detail is required",
			"error":   err.Error(),
		})
		return
	}

	report, err := h.hazards.SubmitComplaint(c.Request.Context(), &hazard.CitizenReport{
		Lat:           req.Lat,
		Lon:           req.Lon,
		Detail:        req.Detail,
		Address:       req.Address,
		ReporterName:  req.ReporterName,
		ReporterPhone: req.ReporterPhone,
		Files:         req.Files,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Errorf("Failed to submit complaint: %v", err)
		}
		c.JSON(status, gin.H{
			"success": false,
			"message": "Failed to submit complaint",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Complaint submitted",
		"data": ComplaintResponse{
			ReportID: report.ID,
			Address:  report.Address,
			Lat:      report.Lat,
			Lon:      report.Lon,
			Detail:   report.Detail,
			Files:    report.Files,
		},
	})
}

// statusFor maps domain validation errors to 400 and everything else to 500
func statusFor(err error) int {
	switch {
	case errors.Is(err, hazard.ErrDetailRequired),
		errors.Is(err, hazard.ErrDescriptionRequired),
		errors.Is(err, hazard.ErrInvalidCoordinates),
		errors.Is(err, hazard.ErrInvalidControlType),
		errors.Is(err, hazard.ErrInvalidTimeRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
