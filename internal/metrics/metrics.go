package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "options_cache_lookups_total",
		Help: "Quote cache lookups by result (hit, miss, expired).",
	}, []string{"result"})

	CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "options_cache_evictions_total",
		Help: "Quote cache entries evicted for capacity or expiry.",
	})

	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "options_cache_entries",
		Help: "Current number of quote cache entries.",
	})

	ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "options_provider_requests_total",
		Help: "Outbound provider requests by outcome.",
	}, []string{"provider", "outcome"})

	ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "options_provider_request_seconds",
		Help:    "Outbound provider request latency in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.025, 2, 10),
	}, []string{"provider"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "options_http_requests_total",
		Help: "Inbound HTTP requests by route and status code.",
	}, []string{"route", "code"})
)

// InitMetrics registers every collector with reg.
func InitMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CacheLookups)
	reg.MustRegister(CacheEvictions)
	reg.MustRegister(CacheEntries)
	reg.MustRegister(ProviderRequests)
	reg.MustRegister(ProviderLatency)
	reg.MustRegister(HTTPRequests)
}
