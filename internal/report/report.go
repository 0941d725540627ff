// Package report holds the monthly report record and its delivery status
// state machine. Reports are produced by the report generator; this service
// only reads them and writes the delivery status fields.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a report does not exist.
	ErrNotFound = errors.New("report: not found")
	// ErrAlreadySent is returned when a write would move a report out of
	// the terminal sent state.
	ErrAlreadySent = errors.New("report: already sent")
)

// Status is the email delivery status of a report.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further delivery attempts may follow s.
// Failed is only terminal once the retry budget is spent, which the status
// alone cannot tell.
func (s Status) Terminal() bool {
	return s == StatusSent
}

// CanTransitionTo reports whether a report in status s may be moved to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending, StatusFailed:
		return next == StatusSent || next == StatusFailed
	default:
		return false
	}
}

// Report is a generated monthly accounting report awaiting email delivery.
type Report struct {
	ID          string
	PeriodStart time.Time
	PeriodEnd   time.Time
	GeneratedAt time.Time
	SentAt      *time.Time
	EmailStatus Status
	// ZipPath is the attachment store key of the generated archive.
	ZipPath string
	// Recipient overrides the configured default recipient when set.
	Recipient string
}

// Period returns the human-readable period used in log lines, e.g.
// "2024-01-01..2024-01-31".
func (r *Report) Period() string {
	return fmt.Sprintf("%s..%s", r.PeriodStart.UTC().Format(time.DateOnly), r.PeriodEnd.UTC().Format(time.DateOnly))
}

// Fields is the set of delivery fields a status write may change. Nil
// pointers leave the stored value untouched.
type Fields struct {
	EmailStatus Status
	SentAt      *time.Time
}

// Store is the persistence collaborator for reports.
type Store interface {
	// Get resolves a report by its identifier. Returns ErrNotFound if it
	// does not exist.
	Get(ctx context.Context, id string) (*Report, error)
	// Update atomically writes the delivery fields of a report. Returns
	// ErrNotFound for unknown ids and ErrAlreadySent when the report is
	// already sent and the write is not itself a sent write.
	Update(ctx context.Context, id string, fields Fields) error
}
