package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sungwon/report-mailer/internal/logger"
	"github.com/sungwon/report-mailer/internal/queue"
)

// dlqReprocessRequest is the JSON body for POST /dlq/reprocess.
type dlqReprocessRequest struct {
	EntryIDs []string `json:"entry_ids"`
}

type dlqReprocessResponse struct {
	Reprocessed int `json:"reprocessed"`
	Total       int `json:"total"`
}

// DLQReprocessHandler handles POST /dlq/reprocess. It moves the named DLQ
// entries back to the primary queue with a fresh attempt count.
func DLQReprocessHandler(dlq queue.DeadLetterQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req dlqReprocessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.EntryIDs) == 0 {
			respondError(w, http.StatusBadRequest, "entry_ids is required and must not be empty")
			return
		}

		reprocessed, err := dlq.Reprocess(r.Context(), req.EntryIDs)
		if err != nil {
			log.Error().Err(err).
				Int("requested", len(req.EntryIDs)).
				Int("reprocessed", reprocessed).
				Msg("dlq reprocess failed")
			respondError(w, http.StatusInternalServerError, "reprocess failed")
			return
		}

		log.Info().
			Int("reprocessed", reprocessed).
			Int("total", len(req.EntryIDs)).
			Msg("dlq reprocess completed")

		respondJSON(w, http.StatusOK, dlqReprocessResponse{
			Reprocessed: reprocessed,
			Total:       len(req.EntryIDs),
		})
	}
}
