package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talks_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// CommentsCreated counts created comments by kind (presenter|anonymous).
	CommentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talks_comments_created_total",
			Help: "Total number of comments created",
		},
		[]string{"kind"},
	)

	// EmailsQueued counts notification emails accepted into the pending queue.
	EmailsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talks_emails_queued_total",
			Help: "Total number of notification emails queued",
		},
	)

	// EmailsSent counts dispatcher deliveries by result (success|failure).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talks_emails_sent_total",
			Help: "Total number of notification emails dispatched",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "talks_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
