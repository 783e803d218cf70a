package outbound

import (
	"context"
	"time"

	"hazard-notification-sse/internal/domain/hazard"
	"hazard-notification-sse/internal/domain/notification"
)

type ReportRepository interface {
	InsertCitizenReport(ctx context.Context, report *hazard.CitizenReport) (int64, error)
}

type RoadControlRepository interface {
	InsertRoadControl(ctx context.Context, control *hazard.RoadControl) (int64, error)
	// LatestRoadControlAfter returns the newest control created strictly
	// after the given instant, or nil when there is none.
	LatestRoadControlAfter(ctx context.Context, after time.Time) (*hazard.RoadControl, error)
}

type HazardRepository interface {
	ReportRepository
	RoadControlRepository
	Ping(ctx context.Context) error
	Close() error
}

// Publisher fans a notification out to every live stream and reports how
// many deliveries succeeded.
type Publisher interface {
	Publish(ctx context.Context, n *notification.Notification) int
}

// MobilePusher hands a notification to the third-party mobile messaging
// service.
type MobilePusher interface {
	Push(ctx context.Context, n *notification.Notification) error
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}
