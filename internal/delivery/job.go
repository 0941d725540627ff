// Package delivery runs report delivery attempts and enqueues new ones.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/report-mailer/internal/fault"
	"github.com/sungwon/report-mailer/internal/lock"
	"github.com/sungwon/report-mailer/internal/queue"
	"github.com/sungwon/report-mailer/internal/report"
)

const defaultLockMargin = 30 * time.Second

// ReportSender composes and transmits the monthly report email. It returns
// true when the message was accepted for delivery.
type ReportSender interface {
	GenerateAndSendMonthlyReport(ctx context.Context, r *report.Report) (bool, error)
}

// Job performs one delivery attempt per queue payload and reconciles the
// report's email status. It implements queue.MessageHandler and
// queue.Finalizer.
type Job struct {
	reports report.Store
	sender  ReportSender
	locker  lock.Locker
	log     zerolog.Logger

	now            func() time.Time
	maxAttempts    int
	attemptTimeout time.Duration
	lockMargin     time.Duration
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithClock overrides the time source used for sent_at.
func WithClock(now func() time.Time) JobOption {
	return func(j *Job) { j.now = now }
}

// WithPolicy tells the job the attempt budget it runs under. It only feeds
// log fields and the lock TTL; the executor enforces the policy.
func WithPolicy(p queue.RetryPolicy) JobOption {
	return func(j *Job) {
		j.maxAttempts = p.MaxAttempts
		j.attemptTimeout = p.AttemptTimeout
	}
}

// WithLockMargin sets how long the report lock outlives the attempt
// timeout.
func WithLockMargin(d time.Duration) JobOption {
	return func(j *Job) { j.lockMargin = d }
}

// NewJob creates a Job. locker may be nil, in which case no cross-worker
// exclusion is applied.
func NewJob(reports report.Store, sender ReportSender, locker lock.Locker, log zerolog.Logger, opts ...JobOption) *Job {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	def := queue.DefaultRetryPolicy()
	j := &Job{
		reports:        reports,
		sender:         sender,
		locker:         locker,
		log:            log.With().Str("component", "delivery_job").Logger(),
		now:            time.Now,
		maxAttempts:    def.MaxAttempts,
		attemptTimeout: def.AttemptTimeout,
		lockMargin:     defaultLockMargin,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

type sendResult struct {
	ok  bool
	err error
}

// HandleMessage runs one delivery attempt for the report referenced by msg.
// Every failure is recorded on the report, logged and returned so the
// executor can count it.
func (j *Job) HandleMessage(ctx context.Context, msg *queue.Message) error {
	if err := msg.Validate(); err != nil {
		j.log.Error().Err(err).Str("message_id", msg.ID).Int("version", msg.Version).Msg("rejecting delivery payload")
		return fault.InvalidInput("decode", "%v", err)
	}

	log := j.log.With().
		Str("report_id", msg.ReportID).
		Int("attempt", msg.Attempt).
		Logger()

	lease, err := j.locker.Acquire(ctx, lockKey(msg.ReportID), j.attemptTimeout+j.lockMargin)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			attemptsTotal.WithLabelValues("conflict").Inc()
			log.Warn().Msg("report delivery already in progress")
			return fault.Conflict("lock", err)
		}
		log.Error().Err(err).Msg("failed to acquire report lock")
		return fault.Storage("lock", err)
	}
	release := func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("failed to release report lock")
		}
	}

	r, err := j.reports.Get(ctx, msg.ReportID)
	if err != nil {
		release()
		if errors.Is(err, report.ErrNotFound) {
			attemptsTotal.WithLabelValues("orphaned").Inc()
			log.Warn().Msg("report not found, acknowledging payload")
			return nil
		}
		log.Error().Err(err).Msg("failed to load report")
		return fault.Storage("get report", err)
	}

	if r.EmailStatus == report.StatusSent {
		release()
		attemptsTotal.WithLabelValues("skipped").Inc()
		log.Info().Str("period", r.Period()).Msg("report already sent, skipping")
		return nil
	}

	log = log.With().Str("period", r.Period()).Logger()
	log.Info().Msg("sending monthly report")

	start := j.now()
	done := make(chan sendResult, 1)
	go func() {
		ok, err := j.sender.GenerateAndSendMonthlyReport(ctx, r)
		done <- sendResult{ok: ok, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
		defer release()
	case <-ctx.Done():
		// The abandoned send keeps the lock until it returns.
		go j.settleAbandoned(ctx, r.ID, done, release, log)
		res = sendResult{err: ctxFault(ctx)}
	}
	attemptDuration.Observe(j.now().Sub(start).Seconds())

	if res.err == nil && res.ok {
		return j.markSent(ctx, r, log)
	}

	cause := res.err
	if cause == nil {
		cause = fault.Transport("send", errors.New("report email was not accepted"))
	} else {
		cause = fault.Classify("send", cause)
	}
	j.markFailed(ctx, r.ID, log)

	attemptsTotal.WithLabelValues("failed").Inc()
	log.Error().
		Err(cause).
		Str("fault", string(fault.KindOf(cause))).
		Int("max_attempts", j.maxAttempts).
		Msg("report delivery attempt failed")
	return cause
}

// HandleExhausted is the terminal failure hook. It leaves the report in
// failed and logs the permanent failure. Calling it again repeats the same
// write and log line.
func (j *Job) HandleExhausted(ctx context.Context, msg *queue.Message, cause error) error {
	log := j.log.With().Str("report_id", msg.ReportID).Logger()

	err := j.reports.Update(ctx, msg.ReportID, report.Fields{EmailStatus: report.StatusFailed})
	switch {
	case errors.Is(err, report.ErrAlreadySent):
		log.Info().Msg("report was sent by a later attempt, not marking failed")
		return nil
	case errors.Is(err, report.ErrNotFound):
		log.Warn().Msg("exhausted payload references a missing report")
		return nil
	case err != nil:
		log.Error().Err(err).Msg("failed to record permanent failure")
		return fault.Storage("finalize", err)
	}

	finalizedTotal.Inc()
	log.Error().
		Err(cause).
		Int("attempts", msg.Attempt).
		Int("max_attempts", j.maxAttempts).
		Msg("report delivery permanently failed")
	return nil
}

func (j *Job) markSent(ctx context.Context, r *report.Report, log zerolog.Logger) error {
	sentAt := j.now()
	err := j.reports.Update(context.WithoutCancel(ctx), r.ID, report.Fields{
		EmailStatus: report.StatusSent,
		SentAt:      &sentAt,
	})
	if err != nil {
		attemptsTotal.WithLabelValues("unrecorded").Inc()
		log.Error().Err(err).Msg("report sent but status write failed")
		return fault.Storage("mark sent", err)
	}

	attemptsTotal.WithLabelValues("sent").Inc()
	log.Info().Time("sent_at", sentAt).Msg("monthly report sent")
	return nil
}

// markFailed records the interim failed status. It runs detached from ctx so
// a timed out attempt still leaves its mark.
func (j *Job) markFailed(ctx context.Context, id string, log zerolog.Logger) {
	err := j.reports.Update(context.WithoutCancel(ctx), id, report.Fields{EmailStatus: report.StatusFailed})
	switch {
	case err == nil:
	case errors.Is(err, report.ErrAlreadySent):
		log.Info().Msg("report already marked sent, keeping status")
	default:
		log.Error().Err(err).Msg("failed to record failed status")
	}
}

// settleAbandoned waits for a send that outlived its attempt. A late success
// is recorded so the next attempt sees the report as sent; the lock is
// released only afterwards.
func (j *Job) settleAbandoned(ctx context.Context, id string, done <-chan sendResult, release func(), log zerolog.Logger) {
	defer release()

	res := <-done
	if res.err != nil || !res.ok {
		return
	}
	sentAt := j.now()
	if err := j.reports.Update(context.WithoutCancel(ctx), id, report.Fields{
		EmailStatus: report.StatusSent,
		SentAt:      &sentAt,
	}); err != nil {
		log.Error().Err(err).Msg("late delivery could not be recorded")
		return
	}
	log.Warn().Time("sent_at", sentAt).Msg("report delivered after its attempt timed out")
}

func ctxFault(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fault.Timeout("send", ctx.Err())
	}
	return fault.Transport("send", ctx.Err())
}

func lockKey(reportID string) string {
	return "report:" + reportID
}
