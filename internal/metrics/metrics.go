// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP boundary
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melomatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melomatch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// Outbound calls to the model and the catalog
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melomatch_upstream_requests_total",
			Help: "Total number of outbound requests by upstream and outcome",
		},
		[]string{"upstream", "outcome"}, // outcome: success, failure, rejected, retry
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melomatch_upstream_request_duration_seconds",
			Help:    "Outbound request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"upstream"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "melomatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Recommendation pipeline
	RecommendationLinesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melomatch_recommendation_lines_dropped_total",
			Help: "Model reply lines that did not match the recommendation line format",
		},
	)

	ArtworkLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melomatch_artwork_lookups_total",
			Help: "Album art lookups by result",
		},
		[]string{"result"}, // found, missing, error, disabled
	)
)
