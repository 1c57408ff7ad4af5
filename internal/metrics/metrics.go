// Package metrics holds the prometheus collectors of the converter service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversion outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeUnavailable  = "unavailable"
	OutcomeFailure      = "failure"
)

// Cache lookup results.
const (
	CacheHit     = "hit"
	CacheStale   = "stale"
	CacheMiss    = "miss"
	CacheCorrupt = "corrupt"
	CacheError   = "error"
)

// Metrics groups all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ConversionsTotal    *prometheus.CounterVec
	ProviderFetchTotal  *prometheus.CounterVec
	CacheLookupsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConversionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "converter_conversions_total",
				Help: "Conversion requests by outcome",
			},
			[]string{"outcome"},
		),
		ProviderFetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "converter_provider_fetch_total",
				Help: "Rate provider fetch attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		CacheLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "converter_cache_lookups_total",
				Help: "Cached snapshot lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "converter_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Conversion counts one conversion request.
func (m *Metrics) Conversion(outcome string) {
	if m == nil {
		return
	}
	m.ConversionsTotal.WithLabelValues(outcome).Inc()
}

// ProviderFetch counts one provider attempt.
func (m *Metrics) ProviderFetch(provider, outcome string) {
	if m == nil {
		return
	}
	m.ProviderFetchTotal.WithLabelValues(provider, outcome).Inc()
}

// CacheLookup counts one freshness check against the cache.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// HTTPRequest observes the latency of one served request.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
