// Package metrics provides Prometheus metrics for the quote service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	CacheLookups *prometheus.CounterVec
	QuotesServed *prometheus.CounterVec

	MarketRefreshes *prometheus.CounterVec
	TickerMessages  prometheus.Counter
}

// NewMetrics creates a new Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "quote_engine"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Upstream provider calls by chain, provider and outcome",
		}, []string{"chain", "provider", "outcome"}),

		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Upstream provider call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain", "provider"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_breaker_state",
			Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		}, []string{"provider"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache reads by cache name and result",
		}, []string{"cache", "result"}),

		QuotesServed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_served_total",
			Help:      "Quotes returned to callers by source tag",
		}, []string{"source"}),

		MarketRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_refreshes_total",
			Help:      "Market snapshot refresh attempts by result",
		}, []string{"result"}),

		TickerMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticker_messages_total",
			Help:      "Trades received from the realtime price stream",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ProviderResult records one provider call.
func (m *Metrics) ProviderResult(chain, provider, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(chain, provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(chain, provider).Observe(took.Seconds())
}

// SetBreakerState records a circuit breaker transition.
func (m *Metrics) SetBreakerState(provider string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(provider).Set(float64(state))
}

// CacheResult implements quotecache.Observer.
func (m *Metrics) CacheResult(name string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(name, result).Inc()
}

// QuoteServed counts a quote by source tag.
func (m *Metrics) QuoteServed(source string) {
	if m == nil {
		return
	}
	m.QuotesServed.WithLabelValues(source).Inc()
}

// RefreshResult counts a market refresh attempt.
func (m *Metrics) RefreshResult(result string) {
	if m == nil {
		return
	}
	m.MarketRefreshes.WithLabelValues(result).Inc()
}

// TickerMessage counts a trade from the realtime stream.
func (m *Metrics) TickerMessage() {
	if m == nil {
		return
	}
	m.TickerMessages.Inc()
}
