package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sungwon/report-mailer/internal/queue"
	"github.com/sungwon/report-mailer/internal/report"
)

// Dispatcher enqueues delivery payloads for the worker pool.
type Dispatcher struct {
	reports  report.Store
	enqueuer queue.Enqueuer
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(reports report.Store, enqueuer queue.Enqueuer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		reports:  reports,
		enqueuer: enqueuer,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Enqueue publishes an id-only payload for reportID. Reports that are
// already sent are refused with report.ErrAlreadySent and unknown ids with
// report.ErrNotFound.
func (d *Dispatcher) Enqueue(ctx context.Context, reportID string) (*queue.Message, string, error) {
	r, err := d.reports.Get(ctx, reportID)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			enqueuedTotal.WithLabelValues("not_found").Inc()
		} else {
			enqueuedTotal.WithLabelValues("error").Inc()
		}
		return nil, "", fmt.Errorf("load report %s: %w", reportID, err)
	}
	if r.EmailStatus == report.StatusSent {
		enqueuedTotal.WithLabelValues("already_sent").Inc()
		d.log.Info().Str("report_id", reportID).Msg("report already sent, not enqueuing")
		return nil, "", report.ErrAlreadySent
	}

	msg := queue.NewMessage(reportID)
	entryID, err := d.enqueuer.Enqueue(ctx, msg)
	if err != nil {
		enqueuedTotal.WithLabelValues("error").Inc()
		d.log.Error().Err(err).Str("report_id", reportID).Msg("failed to enqueue report delivery")
		return nil, "", fmt.Errorf("enqueue report %s: %w", reportID, err)
	}

	enqueuedTotal.WithLabelValues("enqueued").Inc()
	d.log.Info().
		Str("report_id", reportID).
		Str("message_id", msg.ID).
		Str("entry_id", entryID).
		Msg("report delivery enqueued")
	return msg, entryID, nil
}
