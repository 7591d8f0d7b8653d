// Package metrics defines the Prometheus collectors exported by osechi.
//
// Collectors are registered on an injected registry rather than the global
// default so tests and multiple servers in one process do not collide.
// Every recording method is safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "osechi"

// Metrics holds every collector.
type Metrics struct {
	// claims counts claim attempts.
	// Labels: result (accepted or a rejection reason)
	claims *prometheus.CounterVec

	// releases counts release attempts.
	// Labels: result
	releases *prometheus.CounterVec

	// refreshes counts wholesale snapshot replacements.
	// Labels: trigger (initial, event, resync)
	refreshes *prometheus.CounterVec

	repairs prometheus.Counter

	// transportFailures counts store errors surfaced to the synchronizer.
	// Labels: op (read, seed, subscribe, write)
	transportFailures *prometheus.CounterVec

	filled prometheus.Gauge

	// rateLimited counts requests refused by the limiter.
	// Labels: endpoint
	rateLimited *prometheus.CounterVec

	// textgenRequests counts upstream completions.
	// Labels: operation, status (ok, error, not_configured)
	textgenRequests *prometheus.CounterVec

	textgenLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		claims: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "arbiter",
			Name:      "claims_total",
			Help:      "Total claim attempts by result",
		}, []string{"result"}),
		releases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "arbiter",
			Name:      "releases_total",
			Help:      "Total release attempts by result",
		}, []string{"result"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "refreshes_total",
			Help:      "Total snapshot replacements by trigger",
		}, []string{"trigger"}),
		repairs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "normalization_repairs_total",
			Help:      "Fields dropped or tiers filled in while normalizing snapshots",
		}),
		transportFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "transport_failures_total",
			Help:      "Store failures reported to the synchronizer",
		}, []string{"op"}),
		filled: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "filled_slots",
			Help:      "Filled slots in the latest snapshot",
		}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate limiter",
		}, []string{"endpoint"}),
		textgenRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "textgen",
			Name:      "requests_total",
			Help:      "Text generation requests by operation and status",
		}, []string{"operation", "status"}),
		textgenLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "textgen",
			Name:      "latency_seconds",
			Help:      "Upstream completion latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"operation"}),
	}
}

// Claim records the outcome of a claim.
func (m *Metrics) Claim(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

// Release records the outcome of a release.
func (m *Metrics) Release(result string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(result).Inc()
}

// Refresh records a snapshot replacement and the resulting fill level.
func (m *Metrics) Refresh(trigger string, filled, repairs int) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(trigger).Inc()
	m.filled.Set(float64(filled))
	if repairs > 0 {
		m.repairs.Add(float64(repairs))
	}
}

// TransportFailure records a store failure.
func (m *Metrics) TransportFailure(op string) {
	if m == nil {
		return
	}
	m.transportFailures.WithLabelValues(op).Inc()
}

// RateLimited records a refused request.
func (m *Metrics) RateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// TextGen records an upstream completion.
func (m *Metrics) TextGen(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.textgenRequests.WithLabelValues(operation, status).Inc()
	m.textgenLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
