package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the search service collectors.
type Metrics struct {
	searches        *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	recordFailures  *prometheus.CounterVec
	indexDocuments  *prometheus.CounterVec
	suggestionCache *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg creates
// unregistered collectors, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Total number of executed searches",
		}, []string{"outcome"}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Search execution time in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		recordFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "search_query_log_failures_total",
			Help: "Query log and suggestion writes that failed after a search",
		}, []string{"kind"}),
		indexDocuments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "index_documents_total",
			Help: "Documents processed by the indexing engine",
		}, []string{"result"}),
		suggestionCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "suggestion_cache_requests_total",
			Help: "Autocomplete cache lookups",
		}, []string{"result"}),
	}
}
