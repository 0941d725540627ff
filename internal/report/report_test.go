package report

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusSent, true},
		{StatusPending, StatusFailed, true},
		{StatusFailed, StatusFailed, true},
		{StatusFailed, StatusSent, true},
		{StatusSent, StatusFailed, false},
		{StatusSent, StatusPending, false},
		{StatusSent, StatusSent, false},
		{StatusPending, StatusPending, false},
		{Status("bogus"), StatusSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusSent, StatusFailed} {
		if !s.Valid() {
			t.Errorf("%q.Valid() = false, want true", s)
		}
	}
	if Status("queued").Valid() {
		t.Error(`"queued".Valid() = true, want false`)
	}
	if !StatusSent.Terminal() || StatusFailed.Terminal() {
		t.Error("only sent should be terminal")
	}
}

func TestReport_Period(t *testing.T) {
	r := &Report{
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	if got, want := r.Period(), "2024-01-01..2024-01-31"; got != want {
		t.Errorf("Period() = %q, want %q", got, want)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Report{ID: "rep-1", EmailStatus: StatusPending})

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, "missing", Fields{EmailStatus: StatusFailed}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Update(ctx, "rep-1", Fields{EmailStatus: StatusFailed}); err != nil {
		t.Fatalf("Update(failed) error = %v", err)
	}
	sentAt := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	if err := s.Update(ctx, "rep-1", Fields{EmailStatus: StatusSent, SentAt: &sentAt}); err != nil {
		t.Fatalf("Update(sent) error = %v", err)
	}
	if err := s.Update(ctx, "rep-1", Fields{EmailStatus: StatusFailed}); !errors.Is(err, ErrAlreadySent) {
		t.Errorf("Update(failed) after sent error = %v, want ErrAlreadySent", err)
	}

	r, err := s.Get(ctx, "rep-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.EmailStatus != StatusSent || r.SentAt == nil || !r.SentAt.Equal(sentAt) {
		t.Errorf("report = %+v", r)
	}
	if got := s.Writes("rep-1"); got != 2 {
		t.Errorf("Writes() = %d, want 2", got)
	}

	// Returned reports are copies.
	r.EmailStatus = StatusPending
	again, _ := s.Get(ctx, "rep-1")
	if again.EmailStatus != StatusSent {
		t.Error("mutating a returned report changed the store")
	}
}
