// Package push hands hazard notifications to the mobile messaging service.
package push

import (
	"context"
	"fmt"

	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/port/outbound"
)

// LogPusher records the push it would send instead of calling a provider.
// It stands in for the mobile service in development and when push is
// disabled in configuration.
type LogPusher struct {
	logger logger.Logger
}

var _ outbound.MobilePusher = (*LogPusher)(nil)

func NewLogPusher(log logger.Logger) *LogPusher {
	return &LogPusher{logger: log.WithField("component", "mobile-push")}
}

func (p *LogPusher) Push(ctx context.Context, n *notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := notification.Validate(n); err != nil {
		return fmt.Errorf("push: %w", err)
	}

	p.logger.WithFields(logger.Fields{
		"type":     string(n.Type),
		"source":   n.Text("source"),
		"recordId": n.Payload["recordId"],
	}).Infof("Mobile push: %s", n.Text("message"))
	return nil
}
