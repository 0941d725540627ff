package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Action tells a dequeuer what to do with a payload after an attempt.
type Action int

const (
	// ActionAck drops the payload: the attempt succeeded or the handler
	// chose to acknowledge it.
	ActionAck Action = iota
	// ActionRetry re-enqueues the payload after Outcome.Backoff.
	ActionRetry
	// ActionDead moves the payload to the DLQ. The finalizer has already run.
	ActionDead
)

func (a Action) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionRetry:
		return "retry"
	case ActionDead:
		return "dead"
	}
	return "unknown"
}

// Outcome is the result of one executed attempt.
type Outcome struct {
	Action  Action
	Backoff time.Duration
	Err     error
}

// Executor runs handler attempts under a RetryPolicy. It is independent of
// the queue backend: dequeuers feed it payloads and act on the Outcome.
type Executor struct {
	handler   MessageHandler
	finalizer Finalizer
	policy    RetryPolicy
	log       zerolog.Logger
}

// NewExecutor creates an Executor. finalizer may be nil.
func NewExecutor(handler MessageHandler, finalizer Finalizer, policy RetryPolicy, log zerolog.Logger) *Executor {
	return &Executor{
		handler:   handler,
		finalizer: finalizer,
		policy:    policy,
		log:       log,
	}
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() RetryPolicy { return e.policy }

// Execute runs one attempt of msg. It increments msg.Attempt, bounds the
// handler by the per-attempt timeout and, when the last attempt fails, calls
// the finalizer exactly once before reporting ActionDead.
func (e *Executor) Execute(ctx context.Context, msg *Message) Outcome {
	start := time.Now()
	msg.Attempt++

	attemptCtx, cancel := context.WithTimeout(ctx, e.policy.AttemptTimeout)
	err := e.handler.HandleMessage(attemptCtx, msg)
	cancel()

	MessageProcessingDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		MessagesProcessedTotal.WithLabelValues(ActionAck.String()).Inc()
		return Outcome{Action: ActionAck}
	}

	if e.policy.ShouldRetry(msg.Attempt) {
		backoff := e.policy.NextBackoff(msg.Attempt)
		e.log.Info().
			Str("message_id", msg.ID).
			Str("report_id", msg.ReportID).
			Int("attempt", msg.Attempt).
			Int("max_attempts", e.policy.MaxAttempts).
			Dur("backoff", backoff).
			Msg("scheduling retry")
		MessagesProcessedTotal.WithLabelValues(ActionRetry.String()).Inc()
		return Outcome{Action: ActionRetry, Backoff: backoff, Err: err}
	}

	e.log.Warn().
		Str("message_id", msg.ID).
		Str("report_id", msg.ReportID).
		Int("attempt", msg.Attempt).
		Msg("attempts exhausted, moving to DLQ")

	if e.finalizer != nil {
		if ferr := e.finalizer.HandleExhausted(context.WithoutCancel(ctx), msg, err); ferr != nil {
			e.log.Error().
				Err(ferr).
				Str("message_id", msg.ID).
				Str("report_id", msg.ReportID).
				Msg("finalization failed")
		}
	}
	MessagesProcessedTotal.WithLabelValues(ActionDead.String()).Inc()
	return Outcome{Action: ActionDead, Err: err}
}
