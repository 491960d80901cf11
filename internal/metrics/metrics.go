// Package metrics exposes Prometheus collectors for the token cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"oauth-token-cache/internal/common/errors"
)

const namespace = "oauth_token_cache"

// TokenCacheMetrics records cache lookups, endpoint fetches and invalidations.
// The zero value and a nil pointer are both safe no-ops.
type TokenCacheMetrics struct {
	lookupsTotal       *prometheus.CounterVec
	fetchesTotal       *prometheus.CounterVec
	fetchDuration      *prometheus.HistogramVec
	invalidationsTotal prometheus.Counter
}

// NewTokenCacheMetrics registers the collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler, or a fresh registry in tests.
func NewTokenCacheMetrics(reg prometheus.Registerer) *TokenCacheMetrics {
	factory := promauto.With(reg)

	return &TokenCacheMetrics{
		lookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Token cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Token endpoint fetches by outcome (success or error type)",
			},
			[]string{"outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of token endpoint fetches in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		invalidationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalidations_total",
				Help:      "Explicit cache invalidations",
			},
		),
	}
}

func (m *TokenCacheMetrics) enabled() bool {
	return m != nil && m.lookupsTotal != nil
}

// CacheHit records a lookup served from the store.
func (m *TokenCacheMetrics) CacheHit() {
	if !m.enabled() {
		return
	}
	m.lookupsTotal.WithLabelValues("hit").Inc()
}

// CacheMiss records a lookup that had to go to the endpoint.
func (m *TokenCacheMetrics) CacheMiss() {
	if !m.enabled() {
		return
	}
	m.lookupsTotal.WithLabelValues("miss").Inc()
}

// FetchCompleted records one token endpoint round trip.
func (m *TokenCacheMetrics) FetchCompleted(d time.Duration, err error) {
	if !m.enabled() {
		return
	}
	outcome := Outcome(err)
	m.fetchesTotal.WithLabelValues(outcome).Inc()
	m.fetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Invalidated records an explicit invalidation.
func (m *TokenCacheMetrics) Invalidated() {
	if !m.enabled() {
		return
	}
	m.invalidationsTotal.Inc()
}

// Outcome maps a fetch error to its label value.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.GetType(err))
}
