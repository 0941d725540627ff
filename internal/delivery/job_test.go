package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/report-mailer/internal/fault"
	"github.com/sungwon/report-mailer/internal/lock"
	"github.com/sungwon/report-mailer/internal/queue"
	"github.com/sungwon/report-mailer/internal/report"
)

// fakeSender returns scripted results and counts calls.
type fakeSender struct {
	mu    sync.Mutex
	ok    bool
	err   error
	block bool
	calls int
}

func (s *fakeSender) GenerateAndSendMonthlyReport(ctx context.Context, _ *report.Report) (bool, error) {
	s.mu.Lock()
	s.calls++
	block, ok, err := s.block, s.ok, s.err
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return ok, err
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) count(msg string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), `"message":"`+msg+`"`)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var generatedAt = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func januaryReport() report.Report {
	return report.Report{
		ID:          "rep-1",
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		GeneratedAt: generatedAt,
		EmailStatus: report.StatusPending,
		ZipPath:     "2024/01/rep-1.zip",
	}
}

func newTestJob(store report.Store, sender ReportSender, logs *syncBuffer, opts ...JobOption) *Job {
	log := zerolog.Nop()
	if logs != nil {
		log = zerolog.New(logs)
	}
	return NewJob(store, sender, lock.NewMemoryLocker(), log, opts...)
}

func payload(reportID string, attempt int) *queue.Message {
	msg := queue.NewMessage(reportID)
	msg.Attempt = attempt
	return msg
}

func TestJob_SuccessMarksSent(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	sender := &fakeSender{ok: true}
	logs := &syncBuffer{}
	now := generatedAt.Add(time.Hour)
	job := newTestJob(store, sender, logs, WithClock(func() time.Time { return now }))

	if err := job.HandleMessage(context.Background(), payload("rep-1", 1)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	r, _ := store.Get(context.Background(), "rep-1")
	if r.EmailStatus != report.StatusSent {
		t.Errorf("EmailStatus = %q, want sent", r.EmailStatus)
	}
	if r.SentAt == nil || r.SentAt.Before(r.GeneratedAt) {
		t.Errorf("SentAt = %v, want >= %v", r.SentAt, r.GeneratedAt)
	}
	if logs.count("sending monthly report") != 1 || logs.count("monthly report sent") != 1 {
		t.Errorf("unexpected logs:\n%s", logs)
	}
	if !strings.Contains(logs.String(), `"period":"2024-01-01..2024-01-31"`) {
		t.Errorf("attempt log missing period:\n%s", logs)
	}
}

func TestJob_FailureMarksFailedAndReturnsFault(t *testing.T) {
	tests := []struct {
		name     string
		sender   *fakeSender
		wantKind fault.Kind
	}{
		{name: "negative result", sender: &fakeSender{ok: false}, wantKind: fault.KindTransport},
		{name: "transport error", sender: &fakeSender{err: errors.New("connection refused")}, wantKind: fault.KindTransport},
		{name: "invalid input", sender: &fakeSender{err: fault.InvalidInput("attachment", "archive missing")}, wantKind: fault.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := report.NewMemoryStore(januaryReport())
			logs := &syncBuffer{}
			job := newTestJob(store, tt.sender, logs)

			err := job.HandleMessage(context.Background(), payload("rep-1", 2))
			if err == nil {
				t.Fatal("expected fault, got nil")
			}
			if got := fault.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(err) = %q, want %q", got, tt.wantKind)
			}

			r, _ := store.Get(context.Background(), "rep-1")
			if r.EmailStatus != report.StatusFailed {
				t.Errorf("EmailStatus = %q, want failed", r.EmailStatus)
			}
			if r.SentAt != nil {
				t.Errorf("SentAt = %v, want nil", r.SentAt)
			}
			out := logs.String()
			if logs.count("report delivery attempt failed") != 1 {
				t.Errorf("expected one failure log:\n%s", out)
			}
			if !strings.Contains(out, `"attempt":2`) || !strings.Contains(out, `"max_attempts":3`) {
				t.Errorf("failure log missing attempt fields:\n%s", out)
			}
		})
	}
}

func TestJob_SkipsSentReport(t *testing.T) {
	r := januaryReport()
	r.EmailStatus = report.StatusSent
	store := report.NewMemoryStore(r)
	sender := &fakeSender{ok: true}
	job := newTestJob(store, sender, nil)

	if err := job.HandleMessage(context.Background(), payload("rep-1", 1)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if sender.callCount() != 0 {
		t.Errorf("sender called %d times, want 0", sender.callCount())
	}
	if store.Writes("rep-1") != 0 {
		t.Errorf("store written %d times, want 0", store.Writes("rep-1"))
	}
}

func TestJob_MissingReportIsAcknowledged(t *testing.T) {
	store := report.NewMemoryStore()
	sender := &fakeSender{ok: true}
	job := newTestJob(store, sender, nil)

	if err := job.HandleMessage(context.Background(), payload("gone", 1)); err != nil {
		t.Errorf("HandleMessage() error = %v, want nil", err)
	}
	if sender.callCount() != 0 {
		t.Error("sender must not be called for a missing report")
	}
}

func TestJob_RejectsInvalidPayload(t *testing.T) {
	job := newTestJob(report.NewMemoryStore(januaryReport()), &fakeSender{ok: true}, nil)

	bad := payload("rep-1", 1)
	bad.Version = 99
	if err := job.HandleMessage(context.Background(), bad); !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("unknown version error = %v, want invalid input", err)
	}

	empty := payload("", 1)
	if err := job.HandleMessage(context.Background(), empty); !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("empty report id error = %v, want invalid input", err)
	}
}

func TestJob_LockConflict(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	sender := &fakeSender{ok: true}
	locker := lock.NewMemoryLocker()
	job := NewJob(store, sender, locker, zerolog.Nop())

	held, err := locker.Acquire(context.Background(), lockKey("rep-1"), time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release(context.Background())

	err = job.HandleMessage(context.Background(), payload("rep-1", 1))
	if !errors.Is(err, fault.ErrConflict) {
		t.Errorf("HandleMessage() error = %v, want conflict", err)
	}
	if sender.callCount() != 0 {
		t.Error("sender must not run without the lock")
	}
	r, _ := store.Get(context.Background(), "rep-1")
	if r.EmailStatus != report.StatusPending {
		t.Errorf("EmailStatus = %q, want pending", r.EmailStatus)
	}
}

func TestJob_ReleasesLockAfterAttempt(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	locker := lock.NewMemoryLocker()
	job := NewJob(store, &fakeSender{err: errors.New("down")}, locker, zerolog.Nop())

	_ = job.HandleMessage(context.Background(), payload("rep-1", 1))

	lease, err := locker.Acquire(context.Background(), lockKey("rep-1"), time.Minute)
	if err != nil {
		t.Fatalf("lock still held after attempt: %v", err)
	}
	_ = lease.Release(context.Background())
}

func TestJob_StatusWriteFailureAfterSend(t *testing.T) {
	store := &failingStore{MemoryStore: report.NewMemoryStore(januaryReport()), updateErr: errors.New("db down")}
	job := newTestJob(store, &fakeSender{ok: true}, nil)

	err := job.HandleMessage(context.Background(), payload("rep-1", 1))
	if !errors.Is(err, fault.ErrStorage) {
		t.Errorf("HandleMessage() error = %v, want storage fault", err)
	}
}

type failingStore struct {
	*report.MemoryStore
	updateErr error
}

func (f *failingStore) Update(context.Context, string, report.Fields) error { return f.updateErr }

func TestJob_HandleExhaustedIsIdempotent(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	logs := &syncBuffer{}
	job := newTestJob(store, &fakeSender{}, logs)
	msg := payload("rep-1", 3)
	cause := fault.Transport("send", errors.New("down"))

	for range 2 {
		if err := job.HandleExhausted(context.Background(), msg, cause); err != nil {
			t.Fatalf("HandleExhausted() error = %v", err)
		}
		r, _ := store.Get(context.Background(), "rep-1")
		if r.EmailStatus != report.StatusFailed {
			t.Errorf("EmailStatus = %q, want failed", r.EmailStatus)
		}
	}
	if got := logs.count("report delivery permanently failed"); got != 2 {
		t.Errorf("permanent failure logged %d times, want 2", got)
	}
	if !strings.Contains(logs.String(), `"attempts":3`) {
		t.Errorf("permanent failure log missing attempts:\n%s", logs)
	}
}

func TestJob_HandleExhaustedKeepsSent(t *testing.T) {
	r := januaryReport()
	r.EmailStatus = report.StatusSent
	store := report.NewMemoryStore(r)
	logs := &syncBuffer{}
	job := newTestJob(store, &fakeSender{}, logs)

	if err := job.HandleExhausted(context.Background(), payload("rep-1", 3), errors.New("x")); err != nil {
		t.Fatalf("HandleExhausted() error = %v", err)
	}
	got, _ := store.Get(context.Background(), "rep-1")
	if got.EmailStatus != report.StatusSent {
		t.Errorf("EmailStatus = %q, want sent", got.EmailStatus)
	}
	if logs.count("report delivery permanently failed") != 0 {
		t.Error("a sent report must not be logged as permanently failed")
	}
}

// A January report is sent on the first attempt.
func TestJobUnderExecutor_DeliversOnFirstAttempt(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	job := newTestJob(store, &fakeSender{ok: true}, nil)
	exec := queue.NewExecutor(job, job, queue.DefaultRetryPolicy(), zerolog.Nop())

	before := time.Now()
	out := exec.Execute(context.Background(), queue.NewMessage("rep-1"))
	if out.Action != queue.ActionAck {
		t.Fatalf("Action = %v, want ack", out.Action)
	}

	r, _ := store.Get(context.Background(), "rep-1")
	if r.EmailStatus != report.StatusSent {
		t.Errorf("EmailStatus = %q, want sent", r.EmailStatus)
	}
	if r.SentAt == nil || r.SentAt.Before(before) || r.SentAt.After(time.Now()) {
		t.Errorf("SentAt = %v, want close to call time", r.SentAt)
	}
}

// Three transport faults, then exactly one finalization.
func TestJobUnderExecutor_ExhaustsRetries(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	logs := &syncBuffer{}
	sender := &fakeSender{err: fault.Transport("send", errors.New("421 service not available"))}
	policy := queue.RetryPolicy{MaxAttempts: 3, AttemptTimeout: time.Second, Schedule: []time.Duration{time.Millisecond}}
	job := newTestJob(store, sender, logs, WithPolicy(policy))
	exec := queue.NewExecutor(job, job, policy, zerolog.Nop())

	msg := queue.NewMessage("rep-1")
	var out queue.Outcome
	for out = exec.Execute(context.Background(), msg); out.Action == queue.ActionRetry; out = exec.Execute(context.Background(), msg) {
		r, _ := store.Get(context.Background(), "rep-1")
		if r.EmailStatus != report.StatusFailed {
			t.Errorf("interim EmailStatus = %q, want failed", r.EmailStatus)
		}
	}

	if out.Action != queue.ActionDead {
		t.Fatalf("final Action = %v, want dead", out.Action)
	}
	if sender.callCount() != 3 {
		t.Errorf("sender called %d times, want 3", sender.callCount())
	}
	r, _ := store.Get(context.Background(), "rep-1")
	if r.EmailStatus != report.StatusFailed {
		t.Errorf("EmailStatus = %q, want failed", r.EmailStatus)
	}
	if got := logs.count("report delivery attempt failed"); got != 3 {
		t.Errorf("attempt failures logged %d times, want 3", got)
	}
	if got := logs.count("report delivery permanently failed"); got != 1 {
		t.Errorf("permanent failure logged %d times, want 1", got)
	}
}

// An attempt that exceeds its budget fails like any other.
func TestJobUnderExecutor_AttemptTimeout(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	sender := &fakeSender{block: true}
	policy := queue.RetryPolicy{MaxAttempts: 3, AttemptTimeout: 30 * time.Millisecond, Schedule: []time.Duration{time.Millisecond}}
	job := newTestJob(store, sender, nil, WithPolicy(policy))
	exec := queue.NewExecutor(job, job, policy, zerolog.Nop())

	out := exec.Execute(context.Background(), queue.NewMessage("rep-1"))
	if out.Action != queue.ActionRetry {
		t.Fatalf("Action = %v, want retry", out.Action)
	}
	if !errors.Is(out.Err, fault.ErrTimeout) {
		t.Errorf("Err = %v, want timeout fault", out.Err)
	}
	r, _ := store.Get(context.Background(), "rep-1")
	if r.EmailStatus != report.StatusFailed {
		t.Errorf("EmailStatus = %q, want failed", r.EmailStatus)
	}
}

func TestJob_LateSuccessIsRecorded(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	release := make(chan struct{})
	sender := &lateSender{release: release}
	locker := lock.NewMemoryLocker()
	job := NewJob(store, sender, locker, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := job.HandleMessage(ctx, payload("rep-1", 1))
	if !errors.Is(err, fault.ErrTimeout) {
		t.Fatalf("HandleMessage() error = %v, want timeout", err)
	}

	// The abandoned send still holds the lock.
	if _, err := locker.Acquire(context.Background(), lockKey("rep-1"), time.Minute); !errors.Is(err, lock.ErrNotAcquired) {
		t.Errorf("lock acquired while send in flight: %v", err)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for {
		r, _ := store.Get(context.Background(), "rep-1")
		if r.EmailStatus == report.StatusSent {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("late success not recorded, status %q", r.EmailStatus)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// lateSender ignores cancellation and succeeds once released.
type lateSender struct {
	release chan struct{}
}

func (s *lateSender) GenerateAndSendMonthlyReport(context.Context, *report.Report) (bool, error) {
	<-s.release
	return true, nil
}
