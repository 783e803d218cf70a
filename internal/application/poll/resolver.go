// Package poll answers mobile delta polls: "what is the newest road
// control created after the watermark I hold?"
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"hazard-notification-sse/internal/domain/watermark"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/infrastructure/metrics"
	"hazard-notification-sse/internal/port/inbound"
	"hazard-notification-sse/internal/port/outbound"
)

// Resolver returns at most one record per poll: the newest one after the
// watermark. Records created between the watermark and that newest one are
// never reported to the client.
type Resolver struct {
	source       outbound.RoadControlRepository
	clock        clockwork.Clock
	logger       logger.Logger
	queryTimeout time.Duration
}

var _ inbound.DeltaPollUseCase = (*Resolver)(nil)

type Option func(*Resolver)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Resolver) { r.clock = clock }
}

// WithQueryTimeout bounds the store lookup; zero leaves it to the caller.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.queryTimeout = d }
}

func NewResolver(source outbound.RoadControlRepository, log logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		clock:  clockwork.NewRealClock(),
		logger: log.WithField("component", "delta-poll"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve normalizes rawWatermark and looks up the newest newer record.
// A missing or malformed watermark is replaced by the default one; it is
// not a client error.
func (r *Resolver) Resolve(ctx context.Context, rawWatermark string) (inbound.PollResult, error) {
	after, echo := r.watermark(rawWatermark)

	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	record, err := r.source.LatestRoadControlAfter(ctx, after)
	if err != nil {
		metrics.DeltaPolls.WithLabelValues("error").Inc()
		return inbound.PollResult{}, fmt.Errorf("lookup records after %s: %w", watermark.Canonical(after), err)
	}

	// Watermarks carry whole seconds, so a record inside the watermark's own
	// second has already been reported.
	if record != nil && !record.CreatedAt.Truncate(time.Second).After(after) {
		record = nil
	}

	if record == nil {
		metrics.DeltaPolls.WithLabelValues("empty").Inc()
		return inbound.PollResult{NextWatermark: echo}, nil
	}

	metrics.DeltaPolls.WithLabelValues("new").Inc()
	r.logger.Debugf("Record %d is newer than %s", record.ID, watermark.Canonical(after))

	return inbound.PollResult{
		HasNew:        true,
		Record:        record.Summarize(),
		NextWatermark: watermark.Resubmittable(record.CreatedAt),
	}, nil
}

// watermark returns the instant to query after and the value to echo back
// when nothing newer exists.
func (r *Resolver) watermark(raw string) (time.Time, string) {
	if raw == "" {
		def := watermark.Default(r.clock.Now())
		return def, watermark.Canonical(def)
	}

	t, err := watermark.Parse(raw)
	if err != nil {
		def := watermark.Default(r.clock.Now())
		r.logger.Warnf("Replacing watermark: %v", err)
		return def, watermark.Canonical(def)
	}
	return t, raw
}
