// Package monitoring exposes the platform's Prometheus metrics.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts handled HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msaada_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks handler latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msaada_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AuthOutcomes counts credential resolution results.
	AuthOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msaada_auth_resolutions_total",
			Help: "Credential resolution outcomes",
		},
		[]string{"outcome"}, // resolved, unauthenticated, forbidden, error
	)

	// ChatFallbacks counts chat requests answered by the canned composer
	// because the generative backend failed.
	ChatFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "msaada_chat_fallbacks_total",
			Help: "Chat replies served from the canned fallback composer",
		},
	)

	// AnomalyFlags counts suspicion flags emitted per detector type.
	AnomalyFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msaada_anomaly_flags_total",
			Help: "Suspicion flags emitted by the usage anomaly detectors",
		},
		[]string{"flag_type", "severity"},
	)

	// WebhookEvents counts payment webhook deliveries by outcome.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msaada_payment_webhooks_total",
			Help: "Payment provider webhook deliveries",
		},
		[]string{"outcome"}, // processed, ignored, rejected, verify_error, error
	)
)
