package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingTransitions counts successful lifecycle transitions by target status.
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "transitions_total",
			Help:      "The total number of booking status transitions",
		},
		[]string{"status"},
	)

	// OutboxPublished counts events the relay published, by event type.
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "published_total",
			Help:      "The total number of outbox events published",
		},
		[]string{"event_type"},
	)

	// OutboxPublishFailed counts publish attempts that left the event unprocessed.
	OutboxPublishFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "publish_failed_total",
			Help:      "The total number of failed outbox publish attempts",
		},
		[]string{"event_type"},
	)

	// OutboxBacklog is the number of unprocessed events seen by the last relay cycle.
	OutboxBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "outbox",
			Name:      "backlog",
			Help:      "Unprocessed outbox events read by the last relay cycle",
		},
	)

	// NoShowsMarked counts bookings moved to NO_SHOW, split by free and paid slot.
	NoShowsMarked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "no_shows_total",
			Help:      "The total number of bookings marked as no-show",
		},
		[]string{"free_slot"},
	)

	// MessagesConsumed counts broker deliveries handled by a consumer, by outcome.
	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "consumed_total",
			Help:      "The total number of consumed messages",
		},
		[]string{"queue", "outcome"},
	)

	// HTTPRequestDuration observes request latency by route and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
)
