package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CSRFDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_server_csrf_decisions_total",
			Help: "Total number of CSRF guard decisions by outcome",
		},
		[]string{"decision"},
	)

	CSRFTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "course_server_csrf_tokens_issued_total",
			Help: "Total number of CSRF tokens issued",
		},
	)

	CSRFRecordsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "course_server_csrf_records_swept_total",
			Help: "Total number of expired CSRF records removed by the background sweep",
		},
	)

	CSRFLiveRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "course_server_csrf_live_records",
			Help: "Number of CSRF records held by the in-memory store after the last sweep",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_server_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "course_server_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)
