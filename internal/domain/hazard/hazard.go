package hazard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/domain/watermark"
)

// ReportStatus is the processing state of a citizen report
type ReportStatus string

const (
	StatusPending    ReportStatus = "p"
	StatusInProgress ReportStatus = "i"
	StatusCompleted  ReportStatus = "c"
)

// ControlType classifies a road-control record
type ControlType string

const (
	ControlFlood        ControlType = "flood"
	ControlConstruction ControlType = "construction"
	ControlRisk         ControlType = "risk"
)

// UnknownLocation replaces the address in messages when geocoding found none.
const UnknownLocation = "location unavailable"

var (
	ErrDetailRequired      = errors.New("report detail is required")
	ErrDescriptionRequired = errors.New("control description is required")
	ErrInvalidCoordinates  = errors.New("coordinates out of range")
	ErrInvalidControlType  = errors.New("unknown control type")
	ErrInvalidTimeRange    = errors.New("control end time precedes start time")
)

// CitizenReport is a complaint submitted from the mobile client
type CitizenReport struct {
	ID            int64
	ReportedAt    time.Time
	Lat           float64
	Lon           float64
	Detail        string
	Address       string
	ReporterName  string
	ReporterPhone string
	Status        ReportStatus
	Files         []string
}

// Validate checks the fields a report must carry before it is stored
func (r *CitizenReport) Validate() error {
	if strings.TrimSpace(r.Detail) == "" {
		return ErrDetailRequired
	}
	return validateCoordinates(r.Lat, r.Lon)
}

// Event builds the hazard event announced after the report is stored.
func (r *CitizenReport) Event() notification.HazardEvent {
	addr := r.Address
	if addr == "" {
		addr = UnknownLocation
	}
	return notification.HazardEvent{
		Source:   notification.SourceCitizenReport,
		Message:  fmt.Sprintf("%s: %s complaint received", addr, r.Detail),
		RecordID: r.ID,
		Address:  r.Address,
		Detail:   r.Detail,
		Lat:      r.Lat,
		Lon:      r.Lon,
		At:       r.ReportedAt,
	}
}

// RoadControl is a flood or construction control entry
type RoadControl struct {
	ID           int64
	PredictionID *int64
	Description  string
	StartTime    time.Time
	EndTime      *time.Time
	CreatedAt    time.Time
	RoadID       *int64
	Lat          float64
	Lon          float64
	Address      string
	Type         ControlType
	Completed    bool
}

// Validate checks the fields a control record must carry before it is stored
func (c *RoadControl) Validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return ErrDescriptionRequired
	}
	switch c.Type {
	case ControlFlood, ControlConstruction, ControlRisk:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidControlType, c.Type)
	}
	if c.EndTime != nil && c.EndTime.Before(c.StartTime) {
		return ErrInvalidTimeRange
	}
	return validateCoordinates(c.Lat, c.Lon)
}

// Event builds the hazard event announced after the control is stored.
func (c *RoadControl) Event() notification.HazardEvent {
	addr := c.Address
	if addr == "" {
		addr = UnknownLocation
	}
	return notification.HazardEvent{
		Source:   notification.SourceRoadControl,
		Message:  fmt.Sprintf("%s: %s control started", addr, c.Type),
		RecordID: c.ID,
		Address:  c.Address,
		Detail:   c.Description,
		Lat:      c.Lat,
		Lon:      c.Lon,
		At:       c.CreatedAt,
	}
}

// Summary is the small projection returned by the delta poll
type Summary struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	Address     string `json:"address"`
	CreatedAt   string `json:"createdAt"`
}

// Summarize projects a control into the client's wall-clock convention.
func (c *RoadControl) Summarize() *Summary {
	return &Summary{
		ID:          c.ID,
		Description: c.Description,
		StartTime:   watermark.WallClock(c.StartTime),
		Address:     c.Address,
		CreatedAt:   watermark.WallClock(c.CreatedAt),
	}
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinates, lat, lon)
	}
	return nil
}
