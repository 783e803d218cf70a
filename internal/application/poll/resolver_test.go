package poll

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
	"hazard-notification-sse/internal/domain/watermark"
	"hazard-notification-sse/internal/infrastructure/logger"
)

type memoryControls struct {
	mu       sync.Mutex
	controls []*hazard.RoadControl
	err      error
	lastArg  time.Time
}

func (m *memoryControls) InsertRoadControl(_ context.Context, c *hazard.RoadControl) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = int64(len(m.controls) + 1)
	m.controls = append(m.controls, c)
	return c.ID, nil
}

func (m *memoryControls) LatestRoadControlAfter(_ context.Context, after time.Time) (*hazard.RoadControl, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastArg = after
	if m.err != nil {
		return nil, m.err
	}
	var latest *hazard.RoadControl
	for _, c := range m.controls {
		if !c.CreatedAt.After(after) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest, nil
}

func (m *memoryControls) add(desc string, created time.Time) {
	_, _ = m.InsertRoadControl(context.Background(), &hazard.RoadControl{
		Description: desc,
		StartTime:   created,
		CreatedAt:   created,
		Address:     "River Rd",
		Type:        hazard.ControlFlood,
	})
}

func kst(hour, minute, second int) time.Time {
	return time.Date(2025, 8, 1, hour, minute, second, 0, watermark.StoreZone)
}

func newTestResolver(store *memoryControls, now time.Time) *Resolver {
	return NewResolver(store, logger.NewDiscardLogger(), WithClock(clockwork.NewFakeClockAt(now)))
}

func TestResolve_EmptyEchoesWatermark(t *testing.T) {
	store := &memoryControls{}
	r := newTestResolver(store, kst(12, 0, 0))

	for _, raw := range []string{
		"2025-08-01 10:00:00",
		"2025-08-01T10:00:00+09:00",
		"2025-08-01T10:00:00 09:00",
	} {
		res, err := r.Resolve(context.Background(), raw)
		require.NoError(t, err)
		assert.False(t, res.HasNew)
		assert.Nil(t, res.Record)
		assert.Equal(t, raw, res.NextWatermark)
	}
}

func TestResolve_ReturnsNewestAndAdvances(t *testing.T) {
	store := &memoryControls{}
	store.add("older", kst(10, 5, 0))
	store.add("newest", kst(10, 10, 0))
	r := newTestResolver(store, kst(12, 0, 0))

	res, err := r.Resolve(context.Background(), "2025-08-01 10:00:00")
	require.NoError(t, err)
	require.True(t, res.HasNew)
	require.NotNil(t, res.Record)
	assert.Equal(t, "newest", res.Record.Description)
	assert.Equal(t, "2025-08-01T10:10:00", res.Record.CreatedAt)
	assert.Equal(t, "2025-08-01T10:10:00", res.Record.StartTime)
	assert.Equal(t, "River Rd", res.Record.Address)
	assert.Equal(t, "2025-08-01T10:10:00+09:00", res.NextWatermark)
}

func TestResolve_ResubmittedWatermarkDoesNotRepeat(t *testing.T) {
	store := &memoryControls{}
	store.add("only", kst(10, 10, 0))
	r := newTestResolver(store, kst(12, 0, 0))

	first, err := r.Resolve(context.Background(), "2025-08-01 10:00:00")
	require.NoError(t, err)
	require.True(t, first.HasNew)

	second, err := r.Resolve(context.Background(), first.NextWatermark)
	require.NoError(t, err)
	assert.False(t, second.HasNew)
	assert.Equal(t, first.NextWatermark, second.NextWatermark)
}

func TestResolve_OnlyNewestAfterLaterRecord(t *testing.T) {
	store := &memoryControls{}
	store.add("t2", kst(10, 10, 0))
	r := newTestResolver(store, kst(12, 0, 0))

	first, err := r.Resolve(context.Background(), "2025-08-01 10:00:00")
	require.NoError(t, err)
	require.True(t, first.HasNew)

	store.add("t3", kst(10, 20, 0))

	second, err := r.Resolve(context.Background(), first.NextWatermark)
	require.NoError(t, err)
	require.True(t, second.HasNew)
	assert.Equal(t, "t3", second.Record.Description)
	assert.Equal(t, "2025-08-01T10:20:00+09:00", second.NextWatermark)
}

func TestResolve_PendingOlderRecordIsSkipped(t *testing.T) {
	store := &memoryControls{}
	store.add("t2", kst(10, 10, 0))
	store.add("t3", kst(10, 20, 0))
	r := newTestResolver(store, kst(12, 0, 0))

	first, err := r.Resolve(context.Background(), "2025-08-01 10:00:00")
	require.NoError(t, err)
	require.True(t, first.HasNew)
	assert.Equal(t, "t3", first.Record.Description)
	assert.Equal(t, "2025-08-01T10:20:00+09:00", first.NextWatermark)

	second, err := r.Resolve(context.Background(), first.NextWatermark)
	require.NoError(t, err)
	assert.False(t, second.HasNew)
	assert.Nil(t, second.Record)
	assert.Equal(t, first.NextWatermark, second.NextWatermark)
}

func TestResolve_SubSecondRecordIsNotRepeated(t *testing.T) {
	store := &memoryControls{}
	store.add("external", kst(10, 10, 0).Add(500*time.Millisecond))
	r := newTestResolver(store, kst(12, 0, 0))

	first, err := r.Resolve(context.Background(), "2025-08-01 10:00:00")
	require.NoError(t, err)
	require.True(t, first.HasNew)
	assert.Equal(t, "2025-08-01T10:10:00+09:00", first.NextWatermark)

	for i := 0; i < 2; i++ {
		next, err := r.Resolve(context.Background(), first.NextWatermark)
		require.NoError(t, err)
		assert.False(t, next.HasNew)
		assert.Equal(t, first.NextWatermark, next.NextWatermark)
	}

	store.add("later", kst(10, 10, 1))
	next, err := r.Resolve(context.Background(), first.NextWatermark)
	require.NoError(t, err)
	require.True(t, next.HasNew)
	assert.Equal(t, "later", next.Record.Description)
	assert.Equal(t, "2025-08-01T10:10:01+09:00", next.NextWatermark)
}

func TestResolve_MissingWatermarkUsesGraceWindow(t *testing.T) {
	store := &memoryControls{}
	now := kst(12, 0, 0)
	store.add("an hour ago", now.Add(-time.Hour))
	r := newTestResolver(store, now)

	res, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, res.HasNew)
	assert.Nil(t, res.Record)
	assert.Equal(t, "2025-08-01 11:55:00", res.NextWatermark)
	assert.True(t, store.lastArg.Equal(now.Add(-watermark.GraceWindow)))
}

func TestResolve_MalformedWatermarkFallsBackToDefault(t *testing.T) {
	store := &memoryControls{}
	now := kst(12, 0, 0)
	store.add("recent", now.Add(-time.Minute))
	r := newTestResolver(store, now)

	res, err := r.Resolve(context.Background(), "yesterday-ish")
	require.NoError(t, err)
	require.True(t, res.HasNew)
	assert.Equal(t, "recent", res.Record.Description)
	assert.True(t, store.lastArg.Equal(now.Add(-watermark.GraceWindow)))
}

func TestResolve_EncodedAndUTCWatermarks(t *testing.T) {
	store := &memoryControls{}
	r := newTestResolver(store, kst(12, 0, 0))

	for _, raw := range []string{
		"2025-08-01T10%3A00%3A00%2B09%3A00",
		"2025-08-01T01:00:00Z",
		"2025-08-01T01:00:00.250Z",
		"2025-08-01T10:00:00",
	} {
		_, err := r.Resolve(context.Background(), raw)
		require.NoError(t, err)
		assert.True(t, store.lastArg.Equal(kst(10, 0, 0)), raw)
	}
}

func TestResolve_StoreErrorIsReturned(t *testing.T) {
	store := &memoryControls{err: errors.New("connection refused")}
	r := newTestResolver(store, kst(12, 0, 0))

	_, err := r.Resolve(context.Background(), "2025-08-01 10:00:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.err)
}
