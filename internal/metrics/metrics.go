package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tierboard",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tierboard",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	AdapterRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tierboard",
		Name:      "adapter_requests_total",
		Help:      "Total requests to media service adapters by adapter name and result status.",
	}, []string{"adapter", "status"})

	AdapterRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tierboard",
		Name:      "adapter_request_duration_seconds",
		Help:      "Media service adapter request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"adapter"})

	AdapterAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tierboard",
		Name:      "adapter_available",
		Help:      "Whether an adapter is available (1) or blocked after repeated failures (0).",
	}, []string{"adapter"})

	TokenRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tierboard",
		Name:      "token_refreshes_total",
		Help:      "Total credential token refreshes by adapter and outcome.",
	}, []string{"adapter", "status"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tierboard",
		Name:      "search_cache_hits_total",
		Help:      "Total number of search result cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tierboard",
		Name:      "search_cache_misses_total",
		Help:      "Total number of search result cache misses.",
	})

	CacheItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tierboard",
		Name:      "item_cache_entries",
		Help:      "Current number of entries in the media item cache.",
	})

	CacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tierboard",
		Name:      "item_cache_evictions_total",
		Help:      "Total number of media items evicted from the item cache.",
	})

	CacheMergeNoopsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tierboard",
		Name:      "item_cache_merge_noops_total",
		Help:      "Total item merges skipped because the merged result was identical.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AdapterRequestsTotal,
		AdapterRequestDuration,
		AdapterAvailable,
		TokenRefreshesTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheItems,
		CacheEvictionsTotal,
		CacheMergeNoopsTotal,
	)
}
