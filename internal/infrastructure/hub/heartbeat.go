package hub

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/port/outbound"
)

// Heartbeat publishes a ping on a fixed interval so idle streams are not
// closed by intermediaries and dead peers are pruned by the failed write.
type Heartbeat struct {
	publisher outbound.Publisher
	clock     clockwork.Clock
	interval  time.Duration
	logger    logger.Logger
}

func NewHeartbeat(
	publisher outbound.Publisher,
	clock clockwork.Clock,
	interval time.Duration,
	log logger.Logger,
) *Heartbeat {
	return &Heartbeat{
		publisher: publisher,
		clock:     clock,
		interval:  interval,
		logger:    log.WithField("component", "heartbeat"),
	}
}

// Run blocks until ctx is cancelled.
func (hb *Heartbeat) Run(ctx context.Context) {
	ticker := hb.clock.NewTicker(hb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			delivered := hb.publisher.Publish(ctx, notification.Heartbeat())
			hb.logger.Debugf("Heartbeat delivered to %d connections", delivered)

		case <-ctx.Done():
			hb.logger.Info("Heartbeat stopped")
			return
		}
	}
}
