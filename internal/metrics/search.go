package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search and recommendation Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketdex",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"status"}, // "ok" / "error"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marketdex",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marketdex",
			Name:      "search_results",
			Help:      "Number of hits returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketdex",
			Name:      "cache_total",
			Help:      "Result cache hits and misses by data class",
		},
		[]string{"class", "result"}, // result: "hit" / "miss" / "error"
	)

	RecommendationStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketdex",
			Name:      "recommendation_strategy_total",
			Help:      "Recommendation strategy executions by outcome",
		},
		[]string{"strategy", "status"}, // status: "ok" / "error" / "skipped"
	)

	RecommendationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marketdex",
			Name:      "recommendation_duration_seconds",
			Help:      "Recommendation generation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	AnalyticsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketdex",
			Name:      "analytics_events_total",
			Help:      "Analytics events emitted, by outcome",
		},
		[]string{"status"}, // "ok" / "dropped"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search Prometheus metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(RecommendationStrategyTotal)
	prometheus.MustRegister(RecommendationDuration)
	prometheus.MustRegister(AnalyticsEventsTotal)
	searchMetricsRegistered = true
}

// ObserveSearch records one completed search.
func ObserveSearch(d time.Duration, results int, err error) {
	if err != nil {
		SearchRequestsTotal.WithLabelValues("error").Inc()
		return
	}
	SearchRequestsTotal.WithLabelValues("ok").Inc()
	SearchDuration.Observe(d.Seconds())
	SearchResults.Observe(float64(results))
}
