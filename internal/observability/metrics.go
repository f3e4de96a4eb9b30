package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideboard", Name: "searches_total", Help: "Total ride searches served"})
	SearchLatency     = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "rideboard", Name: "search_latency_seconds", Help: "Search pipeline latency seconds"})
	SearchEtaDegraded = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideboard", Name: "search_eta_degraded_total", Help: "Searches answered without ETAs after a routing provider failure"})
	RidesPosted       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideboard", Name: "rides_posted_total", Help: "Total ride postings accepted"})
	RidesBooked       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideboard", Name: "rides_booked_total", Help: "Total rides booked"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideboard", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rideboard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
