package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream metrics
var (
	// StreamConnections tracks currently registered streaming connections
	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_connections_current",
			Help: "Currently registered streaming connections",
		},
	)

	// NotificationsPublished counts publish calls by notification type
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications published by type",
		},
		[]string{"type"},
	)

	// NotificationDeliveries counts per-connection writes by result (ok/failed)
	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Per-connection notification writes by result",
		},
		[]string{"result"},
	)

	// PublishFailures counts background publishes that panicked or were rejected
	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_publish_failures_total",
			Help: "Background publishes that failed before fan-out",
		},
	)

	// MobilePushes counts hand-offs to the mobile push service by result
	MobilePushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobile_pushes_total",
			Help: "Notifications handed to the mobile push service by result",
		},
		[]string{"result"},
	)
)

// Delta poll metrics
var (
	// DeltaPolls counts polls by outcome (new, empty, error)
	DeltaPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delta_polls_total",
			Help: "Delta polls by outcome",
		},
		[]string{"outcome"},
	)

	// StoreQueryDuration tracks store latency by operation
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Store query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)
