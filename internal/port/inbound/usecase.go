package inbound

import (
	"context"

	"hazard-notification-sse/internal/domain/hazard"
)

// HazardUseCase stores hazard records and announces them to subscribers.
type HazardUseCase interface {
	SubmitComplaint(ctx context.Context, report *hazard.CitizenReport) (*hazard.CitizenReport, error)
	CreateRoadControl(ctx context.Context, control *hazard.RoadControl) (*hazard.RoadControl, error)
}

// PollResult is the answer to one delta poll.
type PollResult struct {
	HasNew        bool
	Record        *hazard.Summary
	NextWatermark string
}

// DeltaPollUseCase resolves a client watermark into at most one new record.
type DeltaPollUseCase interface {
	Resolve(ctx context.Context, rawWatermark string) (PollResult, error)
}
