package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// CacheLookups counts search cache lookups by result (hit, miss)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_lookups_total",
			Help: "Search cache lookups by result.",
		},
		[]string{"result"},
	)

	// CreditDeductions counts post-search billing attempts by outcome (ok,
	// insufficient, error)
	CreditDeductions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_deductions_total",
			Help: "Credit deductions after searches by outcome.",
		},
		[]string{"outcome"},
	)

	// MediaLookups counts media lookups by the layer that answered (redis,
	// database, upstream)
	MediaLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lookups_total",
			Help: "Media lookups by answering layer.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency, HTTPInflight, CacheLookups, CreditDeductions, MediaLookups)
}
