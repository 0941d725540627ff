package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_mailer_delivery_attempts_total",
			Help: "Delivery attempts by result",
		},
		[]string{"result"}, // sent, failed, skipped, orphaned, conflict, unrecorded
	)

	attemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "report_mailer_delivery_send_duration_seconds",
			Help:    "Time spent in the email-sending collaborator per attempt",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	finalizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_mailer_delivery_permanent_failures_total",
			Help: "Reports marked failed after exhausting their attempts",
		},
	)

	enqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_mailer_delivery_enqueue_total",
			Help: "Enqueue requests by result",
		},
		[]string{"result"}, // enqueued, already_sent, not_found, error
	)
)
