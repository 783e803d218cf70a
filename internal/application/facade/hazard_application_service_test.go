package facade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazard-notification-sse/internal/domain/hazard"
	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/domain/watermark"
	"hazard-notification-sse/internal/infrastructure/logger"
)

type fakeRepo struct {
	mu       sync.Mutex
	reports  []*hazard.CitizenReport
	controls []*hazard.RoadControl
	err      error
}

func (r *fakeRepo) InsertCitizenReport(_ context.Context, rep *hazard.CitizenReport) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.reports = append(r.reports, rep)
	return int64(len(r.reports)), nil
}

func (r *fakeRepo) InsertRoadControl(_ context.Context, c *hazard.RoadControl) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.controls = append(r.controls, c)
	return int64(100 + len(r.controls)), nil
}

func (r *fakeRepo) LatestRoadControlAfter(context.Context, time.Time) (*hazard.RoadControl, error) {
	return nil, nil
}

func (r *fakeRepo) Ping(context.Context) error { return nil }
func (r *fakeRepo) Close() error               { return nil }

type fakePublisher struct {
	mu        sync.Mutex
	published []*notification.Notification
	panics    bool
}

func (p *fakePublisher) Publish(_ context.Context, n *notification.Notification) int {
	if p.panics {
		panic("registry exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
	return 2
}

func (p *fakePublisher) all() []*notification.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*notification.Notification(nil), p.published...)
}

type fakePusher struct {
	mu     sync.Mutex
	pushed int
	err    error
}

func (p *fakePusher) Push(context.Context, *notification.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed++
	return p.err
}

type fakeGeocoder struct {
	addr string
	err  error
}

func (g fakeGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return g.addr, g.err
}

var fixedNow = time.Date(2025, 8, 1, 1, 30, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, pub *fakePublisher, opts ...Option) *HazardApplicationService {
	opts = append([]Option{WithClock(clockwork.NewFakeClockAt(fixedNow))}, opts...)
	return NewHazardApplicationService(repo, pub, logger.NewDiscardLogger(), opts...)
}

func waitIdle(t *testing.T, s *HazardApplicationService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestSubmitComplaint_StoresThenAnnounces(t *testing.T) {
	repo, pub := &fakeRepo{}, &fakePublisher{}
	s := newTestService(repo, pub)

	report, err := s.SubmitComplaint(context.Background(), &hazard.CitizenReport{
		Lat:     35.1,
		Lon:     126.9,
		Detail:  "pothole",
		Address: "Main St",
	})
	require.NoError(t, err)
	waitIdle(t, s)

	assert.Equal(t, int64(1), report.ID)
	assert.Equal(t, hazard.StatusPending, report.Status)
	assert.True(t, fixedNow.Equal(report.ReportedAt))
	assert.Equal(t, watermark.StoreZone, report.ReportedAt.Location())

	published := pub.all()
	require.Len(t, published, 1)
	n := published[0]
	assert.Equal(t, notification.TypeHazardEvent, n.Type)
	assert.Equal(t, "citizen_report", n.Text("source"))
	assert.Equal(t, "Main St: pothole complaint received", n.Text("message"))
	assert.Equal(t, "2025-08-01T10:30:00+09:00", n.Text("timestamp"))
}

func TestSubmitComplaint_InvalidInputIsNotStored(t *testing.T) {
	repo, pub := &fakeRepo{}, &fakePublisher{}
	s := newTestService(repo, pub)

	_, err := s.SubmitComplaint(context.Background(), &hazard.CitizenReport{Detail: " "})
	assert.ErrorIs(t, err, hazard.ErrDetailRequired)

	_, err = s.SubmitComplaint(context.Background(), &hazard.CitizenReport{Detail: "x", Lat: 91})
	assert.ErrorIs(t, err, hazard.ErrInvalidCoordinates)

	waitIdle(t, s)
	assert.Empty(t, repo.reports)
	assert.Empty(t, pub.all())
}

func TestSubmitComplaint_StoreFailureSkipsPublish(t *testing.T) {
	repo, pub := &fakeRepo{err: errors.New("disk full")}, &fakePublisher{}
	s := newTestService(repo, pub)

	_, err := s.SubmitComplaint(context.Background(), &hazard.CitizenReport{Detail: "flooded"})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.err)

	waitIdle(t, s)
	assert.Empty(t, pub.all())
}

func TestSubmitComplaint_PublishPanicDoesNotFailWrite(t *testing.T) {
	repo, pub := &fakeRepo{}, &fakePublisher{panics: true}
	s := newTestService(repo, pub)

	report, err := s.SubmitComplaint(context.Background(), &hazard.CitizenReport{Detail: "debris"})
	require.NoError(t, err)
	waitIdle(t, s)

	assert.Equal(t, int64(1), report.ID)
	assert.Len(t, repo.reports, 1)
}

func TestSubmitComplaint_CancelledRequestStillAnnounces(t *testing.T) {
	repo, pub := &fakeRepo{}, &fakePublisher{}
	s := newTestService(repo, pub)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.SubmitComplaint(ctx, &hazard.CitizenReport{Detail: "ice"})
	require.NoError(t, err)
	cancel()

	waitIdle(t, s)
	assert.Len(t, pub.all(), 1)
}

func TestSubmitComplaint_GeocodesMissingAddress(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		repo, pub := &fakeRepo{}, &fakePublisher{}
		s := newTestService(repo, pub, WithGeocoder(fakeGeocoder{addr: "Bridge Ave"}))

		report, err := s.SubmitComplaint(context.Background(), &hazard.CitizenReport{Detail: "crack"})
		require.NoError(t, err)
		waitIdle(t, s)

		assert.Equal(t, "Bridge Ave", report.Address)
		assert.Equal(t, "Bridge Ave: crack complaint received", pub.all()[0].Text("message"))
	})

	t.Run("unavailable", func(t *testing.T) {
		repo, pub := &fakeRepo{}, &fakePublisher{}
		s := newTestService(repo, pub, WithGeocoder(fakeGeocoder{err: errors.New("quota")}))

		report, err := s.SubmitComplaint(context.Background(), &hazard.CitizenReport{Detail: "crack"})
		require.NoError(t, err)
		waitIdle(t, s)

		assert.Empty(t, report.Address)
		assert.Equal(t, "location unavailable: crack complaint received", pub.all()[0].Text("message"))
	})
}

func TestCreateRoadControl_StoresThenAnnounces(t *testing.T) {
	repo, pub := &fakeRepo{}, &fakePublisher{}
	pusher := &fakePusher{}
	s := newTestService(repo, pub, WithMobilePusher(pusher))

	control, err := s.CreateRoadControl(context.Background(), &hazard.RoadControl{
		Description: "underpass flooded",
		Address:     "Station Rd",
		Type:        hazard.ControlFlood,
	})
	require.NoError(t, err)
	waitIdle(t, s)

	assert.Equal(t, int64(101), control.ID)
	assert.True(t, fixedNow.Equal(control.CreatedAt))
	assert.True(t, fixedNow.Equal(control.StartTime))

	published := pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, "road_control", published[0].Text("source"))
	assert.Equal(t, "Station Rd: flood control started", published[0].Text("message"))

	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	assert.Equal(t, 1, pusher.pushed)
}

func TestCreateRoadControl_RejectsInvalid(t *testing.T) {
	repo, pub := &fakeRepo{}, &fakePublisher{}
	s := newTestService(repo, pub)

	_, err := s.CreateRoadControl(context.Background(), &hazard.RoadControl{Description: "x", Type: "meteor"})
	assert.ErrorIs(t, err, hazard.ErrInvalidControlType)

	end := fixedNow.Add(-time.Hour)
	_, err = s.CreateRoadControl(context.Background(), &hazard.RoadControl{
		Description: "x",
		Type:        hazard.ControlRisk,
		EndTime:     &end,
	})
	assert.ErrorIs(t, err, hazard.ErrInvalidTimeRange)

	waitIdle(t, s)
	assert.Empty(t, repo.controls)
}

func TestCreateRoadControl_PushFailureIsOnlyLogged(t *testing.T) {
	repo, pub := &fakeRepo{}, &fakePublisher{}
	s := newTestService(repo, pub, WithMobilePusher(&fakePusher{err: errors.New("unavailable")}))

	_, err := s.CreateRoadControl(context.Background(), &hazard.RoadControl{
		Description: "lane closed",
		Type:        hazard.ControlConstruction,
	})
	require.NoError(t, err)
	waitIdle(t, s)
	assert.Len(t, pub.all(), 1)
}
