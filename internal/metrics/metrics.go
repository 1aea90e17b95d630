// Package metrics exposes Prometheus instrumentation for the cache engine
// and the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ProviderFetches prometheus.Counter
	TicksCached     prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdcache_cache_hits_total",
			Help: "Candle requests answered from cached rows.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdcache_cache_misses_total",
			Help: "Candle requests that fell through to the provider.",
		}),
		ProviderFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdcache_provider_fetches_total",
			Help: "Candle fetches issued to the market data provider.",
		}),
		TicksCached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdcache_ticks_cached_total",
			Help: "Real-time ticks persisted to storage.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdcache_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	reg.MustRegister(m.CacheHits, m.CacheMisses, m.ProviderFetches, m.TicksCached, m.RequestDuration)
	return m
}
