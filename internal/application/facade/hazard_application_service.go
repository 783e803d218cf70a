package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"hazard-notification-sse/internal/domain/hazard"
	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/domain/watermark"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/infrastructure/metrics"
	"hazard-notification-sse/internal/port/inbound"
	"hazard-notification-sse/internal/port/outbound"
)

// HazardApplicationService stores hazard records and then announces them.
// The announcement runs in the background: a failed or panicking publish
// never undoes or fails the store write.
type HazardApplicationService struct {
	reports   outbound.ReportRepository
	controls  outbound.RoadControlRepository
	publisher outbound.Publisher
	pusher    outbound.MobilePusher
	geocoder  outbound.Geocoder
	clock     clockwork.Clock
	logger    logger.Logger

	inflight sync.WaitGroup
}

var _ inbound.HazardUseCase = (*HazardApplicationService)(nil)

type Option func(*HazardApplicationService)

func WithMobilePusher(p outbound.MobilePusher) Option {
	return func(s *HazardApplicationService) { s.pusher = p }
}

func WithGeocoder(g outbound.Geocoder) Option {
	return func(s *HazardApplicationService) { s.geocoder = g }
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *HazardApplicationService) { s.clock = clock }
}

func NewHazardApplicationService(
	repo outbound.HazardRepository,
	publisher outbound.Publisher,
	log logger.Logger,
	opts ...Option,
) *HazardApplicationService {
	s := &HazardApplicationService{
		reports:   repo,
		controls:  repo,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		logger:    log.WithField("component", "hazard-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HazardApplicationService) SubmitComplaint(
	ctx context.Context,
	report *hazard.CitizenReport,
) (*hazard.CitizenReport, error) {
	if err := report.Validate(); err != nil {
		return nil, err
	}

	if report.ReportedAt.IsZero() {
		report.ReportedAt = s.now()
	}
	if report.Status == "" {
		report.Status = hazard.StatusPending
	}
	if report.Address == "" {
		report.Address = s.lookupAddress(ctx, report.Lat, report.Lon)
	}

	id, err := s.reports.InsertCitizenReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("store citizen report: %w", err)
	}
	report.ID = id

	s.logger.Infof("Citizen report %d stored", id)
	s.announce(ctx, report.Event().Notification())
	return report, nil
}

func (s *HazardApplicationService) CreateRoadControl(
	ctx context.Context,
	control *hazard.RoadControl,
) (*hazard.RoadControl, error) {
	now := s.now()
	if control.StartTime.IsZero() {
		control.StartTime = now
	}
	if err := control.Validate(); err != nil {
		return nil, err
	}

	control.CreatedAt = now
	if control.Address == "" {
		control.Address = s.lookupAddress(ctx, control.Lat, control.Lon)
	}

	id, err := s.controls.InsertRoadControl(ctx, control)
	if err != nil {
		return nil, fmt.Errorf("store road control: %w", err)
	}
	control.ID = id

	s.logger.Infof("Road control %d stored (%s)", id, control.Type)
	s.announce(ctx, control.Event().Notification())
	return control, nil
}

// Wait blocks until every background announcement has finished or ctx ends.
func (s *HazardApplicationService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *HazardApplicationService) announce(ctx context.Context, n *notification.Notification) {
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.PublishFailures.Inc()
				s.logger.Errorf("Publishing %s panicked: %v", n.Type, r)
			}
		}()

		delivered := s.publisher.Publish(ctx, n)
		s.logger.Debugf("Announced %s to %d streams", n.Text("message"), delivered)

		if s.pusher == nil {
			return
		}
		if err := s.pusher.Push(ctx, n); err != nil {
			metrics.MobilePushes.WithLabelValues("failed").Inc()
			s.logger.Warnf("Mobile push failed: %v", err)
			return
		}
		metrics.MobilePushes.WithLabelValues("ok").Inc()
	}()
}

// lookupAddress returns "" when no geocoder is configured or it fails; the
// event message then names the location as unavailable.
func (s *HazardApplicationService) lookupAddress(ctx context.Context, lat, lon float64) string {
	if s.geocoder == nil {
		return ""
	}
	addr, err := s.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		s.logger.Warnf("Reverse geocoding (%f, %f) failed: %v", lat, lon, err)
		return ""
	}
	return addr
}

func (s *HazardApplicationService) now() time.Time {
	return s.clock.Now().In(watermark.StoreZone).Truncate(time.Second)
}
