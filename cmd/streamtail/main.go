// Command streamtail follows the hazard notification stream and logs each
// notification as a dashboard tray would show it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"hazard-notification-sse/internal/domain/notification"
	"hazard-notification-sse/internal/infrastructure/config"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/streamclient"
)

func main() {
	configPath := flag.String("config", os.Getenv("HAZARD_CONFIG"), "path to a YAML config file")
	streamURL := flag.String("url", "", "stream URL (overrides client.stream_url)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *streamURL != "" {
		cfg.Client.StreamURL = *streamURL
	}

	log := logger.NewLogrusLogger(cfg.Logger("hazard-streamtail"))
	clock := clockwork.NewRealClock()
	inbox := streamclient.NewInbox(clock, cfg.Client.ReadMarkDelay)

	handler := streamclient.HandlerFunc(func(n *notification.Notification) {
		inbox.HandleNotification(n)
		log.WithFields(logger.Fields{
			"type":   string(n.Type),
			"source": n.Text("source"),
			"unread": inbox.Unread(),
		}).Info(n.Text("message"))
	})

	client := streamclient.New(cfg.Client.StreamURL, handler, log,
		streamclient.WithClock(clock),
		streamclient.WithRetryDelay(cfg.Client.RetryDelay),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("following %s", cfg.Client.StreamURL)
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("stream client stopped: %v", err)
	}
}
