package httpapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_mailer_http_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_mailer_http_request_duration_seconds",
			Help:    "Duration of admin API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func observeRequest(method, route string, status int, d time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
