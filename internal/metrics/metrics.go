// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poster outcomes recorded by the resolver.
const (
	OutcomeFound       = "found"
	OutcomeNoPoster    = "no_poster"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
)

var (
	// Poster resolution
	PosterResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_poster_resolutions_total",
			Help: "Poster resolutions by outcome",
		},
		[]string{"outcome"}, // found, no_poster, unavailable, rejected
	)

	PosterAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_poster_attempts_total",
			Help: "Metadata API lookup attempts by result",
		},
		[]string{"result"}, // ok, transport_error, retryable_status, status
	)

	PosterResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelmatch_poster_resolve_duration_seconds",
			Help:    "Wall time of a full poster resolution including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reelmatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Recommendations
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_recommendations_total",
			Help: "Recommendation requests by result",
		},
		[]string{"result"}, // ok, not_found, error
	)

	// Catalog
	CatalogMovies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelmatch_catalog_movies",
			Help: "Number of movies in the loaded catalog",
		},
	)

	ArtifactsStale = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelmatch_artifacts_stale",
			Help: "1 when catalog artifacts changed on disk after load",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelmatch_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route string, status int, elapsed time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SetStale mirrors the artifact staleness flag.
func SetStale(stale bool) {
	if stale {
		ArtifactsStale.Set(1)
		return
	}
	ArtifactsStale.Set(0)
}
