package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sungwon/report-mailer/internal/queue"
	"github.com/sungwon/report-mailer/internal/report"
)

// Deps are the router's collaborators. Nil fields disable their routes.
type Deps struct {
	Reports    report.Store
	Dispatcher Dispatcher
	DLQ        queue.DeadLetterQueue
	Ready      map[string]Pinger
	// AdminToken, when set, guards the report and DLQ routes.
	AdminToken string
	Log        zerolog.Logger
}

// NewRouter creates a chi.Mux with all routes and middleware configured.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(d.Log))
	r.Use(RecoverMiddleware(d.Log))

	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(d.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if d.AdminToken != "" {
			r.Use(BearerAuth(d.AdminToken))
		}
		if d.Reports != nil {
			r.Get("/reports/{id}", GetReportHandler(d.Reports))
		}
		if d.Dispatcher != nil {
			r.Post("/reports/{id}/deliveries", EnqueueDeliveryHandler(d.Dispatcher))
		}
		if d.DLQ != nil {
			r.Post("/dlq/reprocess", DLQReprocessHandler(d.DLQ))
		}
	})

	return r
}
