package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics for Prometheus monitoring.
var (
	MessagesEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_mailer_queue_messages_enqueued_total",
			Help: "Total number of delivery payloads enqueued",
		},
	)

	MessagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_mailer_queue_messages_processed_total",
			Help: "Total number of delivery attempts by outcome",
		},
		[]string{"outcome"}, // ack, retry, dead
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "report_mailer_queue_attempt_duration_seconds",
			Help:    "Duration of delivery attempts",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	DLQMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_mailer_queue_dlq_messages_total",
			Help: "Total number of payloads moved to the DLQ",
		},
	)

	DLQReprocessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_mailer_queue_dlq_reprocessed_total",
			Help: "Total number of DLQ payloads re-enqueued",
		},
	)
)
