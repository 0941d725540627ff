package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sungwon/report-mailer/internal/logger"
	"github.com/sungwon/report-mailer/internal/queue"
	"github.com/sungwon/report-mailer/internal/report"
)

// Dispatcher enqueues a delivery for a report.
type Dispatcher interface {
	Enqueue(ctx context.Context, reportID string) (*queue.Message, string, error)
}

type enqueueResponse struct {
	ReportID  string `json:"report_id"`
	MessageID string `json:"message_id"`
	EntryID   string `json:"entry_id"`
}

// EnqueueDeliveryHandler handles POST /reports/{id}/deliveries.
func EnqueueDeliveryHandler(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		id := chi.URLParam(r, "id")

		msg, entryID, err := d.Enqueue(r.Context(), id)
		switch {
		case errors.Is(err, report.ErrAlreadySent):
			respondError(w, http.StatusConflict, "report already sent")
			return
		case errors.Is(err, report.ErrNotFound):
			respondError(w, http.StatusNotFound, "report not found")
			return
		case err != nil:
			log.Error().Err(err).Str("report_id", id).Msg("enqueue failed")
			respondError(w, http.StatusInternalServerError, "enqueue failed")
			return
		}

		respondJSON(w, http.StatusAccepted, enqueueResponse{
			ReportID:  id,
			MessageID: msg.ID,
			EntryID:   entryID,
		})
	}
}

type reportResponse struct {
	ID          string     `json:"id"`
	Period      string     `json:"period"`
	EmailStatus string     `json:"email_status"`
	GeneratedAt time.Time  `json:"generated_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

// GetReportHandler handles GET /reports/{id} and shows the delivery status.
func GetReportHandler(reports report.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rep, err := reports.Get(r.Context(), id)
		if errors.Is(err, report.ErrNotFound) {
			respondError(w, http.StatusNotFound, "report not found")
			return
		}
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("report_id", id).Msg("get report failed")
			respondError(w, http.StatusInternalServerError, "get report failed")
			return
		}

		respondJSON(w, http.StatusOK, reportResponse{
			ID:          rep.ID,
			Period:      rep.Period(),
			EmailStatus: string(rep.EmailStatus),
			GeneratedAt: rep.GeneratedAt,
			SentAt:      rep.SentAt,
		})
	}
}
