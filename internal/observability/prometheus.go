package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrohub_upstream_requests_total",
			Help: "Upstream generation calls by provider, model and result",
		},
		[]string{"provider", "model", "status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrohub_upstream_request_duration_seconds",
			Help:    "Latency of upstream generation calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider", "model"},
	)

	retryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrohub_retry_attempts_total",
			Help: "Retries scheduled after a failed upstream attempt",
		},
		[]string{"operation"},
	)

	quotaTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrohub_quota_trips_total",
			Help: "Times a rate-limit response tripped the quota guard",
		},
		[]string{"operation"},
	)

	quotaPaused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrohub_quota_paused_total",
			Help: "Calls refused by the quota guard without a network attempt",
		},
		[]string{"operation"},
	)

	quotaResetAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agrohub_quota_reset_timestamp_seconds",
			Help: "Unix time at which the current quota pause ends",
		},
	)

	resolverOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrohub_resolver_outcomes_total",
			Help: "Resolver results by source (upstream, cache, fallback) and fallback reason",
		},
		[]string{"resolver", "source", "reason"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrohub_location_cache_lookups_total",
			Help: "Location cache lookups by result",
		},
		[]string{"result"},
	)
)

// NewPrometheusHooks returns hooks that record into the default Prometheus registry.
func NewPrometheusHooks() *Hooks {
	return &Hooks{
		OnUpstreamResponse: func(_ context.Context, provider, model string, latency time.Duration, err error) {
			status := "success"
			if err != nil {
				status = "error"
			}
			upstreamRequests.WithLabelValues(provider, model, status).Inc()
			upstreamDuration.WithLabelValues(provider, model).Observe(latency.Seconds())
		},
		OnRetry: func(_ context.Context, operation string, _ int, _ time.Duration, _ error) {
			retryAttempts.WithLabelValues(operation).Inc()
		},
		OnQuotaTrip: func(_ context.Context, operation string, resetAt time.Time) {
			quotaTrips.WithLabelValues(operation).Inc()
			quotaResetAt.Set(float64(resetAt.Unix()))
		},
		OnQuotaPaused: func(_ context.Context, operation string) {
			quotaPaused.WithLabelValues(operation).Inc()
		},
		OnResolverOutcome: func(_ context.Context, resolver, source, reason string) {
			resolverOutcomes.WithLabelValues(resolver, source, reason).Inc()
		},
		OnCacheLookup: func(_ context.Context, result string) {
			cacheLookups.WithLabelValues(result).Inc()
		},
	}
}
