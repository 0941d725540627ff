package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sungwon/report-mailer/internal/report"
)

// ReportStore implements report.Store on PostgreSQL.
type ReportStore struct {
	db *DB
}

// NewReportStore creates a ReportStore over db.
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db}
}

const getReport = `
SELECT id, period_start, period_end, generated_at, sent_at, email_status, zip_path, recipient
FROM reports
WHERE id = $1`

// Get loads the report with the given id.
func (s *ReportStore) Get(ctx context.Context, id string) (*report.Report, error) {
	var (
		r      report.Report
		sentAt pgtype.Timestamptz
		status string
	)
	err := s.db.Pool.QueryRow(ctx, getReport, id).Scan(
		&r.ID,
		&r.PeriodStart,
		&r.PeriodEnd,
		&r.GeneratedAt,
		&sentAt,
		&status,
		&r.ZipPath,
		&r.Recipient,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, report.ErrNotFound
		}
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}

	// pgx scans timestamptz into time.Local.
	r.GeneratedAt = r.GeneratedAt.UTC()
	r.EmailStatus = report.Status(status)
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		r.SentAt = &t
	}
	return &r, nil
}

// The status guard keeps a sent report sent: only another sent write may
// touch it.
const updateReport = `
UPDATE reports
SET email_status = $2,
    sent_at      = COALESCE($3, sent_at),
    updated_at   = now()
WHERE id = $1
  AND (email_status <> 'sent' OR $2 = 'sent')`

const reportExists = `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`

// Update writes the delivery fields in a single statement. Zero affected rows
// means either an unknown id or a sent report, told apart by a follow-up
// existence check.
func (s *ReportStore) Update(ctx context.Context, id string, fields report.Fields) error {
	if !fields.EmailStatus.Valid() {
		return fmt.Errorf("update report %s: invalid status %q", id, fields.EmailStatus)
	}

	var sentAt pgtype.Timestamptz
	if fields.SentAt != nil {
		sentAt = pgtype.Timestamptz{Time: fields.SentAt.UTC().Truncate(time.Microsecond), Valid: true}
	}

	tag, err := s.db.Pool.Exec(ctx, updateReport, id, string(fields.EmailStatus), sentAt)
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.Pool.QueryRow(ctx, reportExists, id).Scan(&exists); err != nil {
		return fmt.Errorf("check report %s: %w", id, err)
	}
	if !exists {
		return report.ErrNotFound
	}
	return report.ErrAlreadySent
}

const insertReport = `
INSERT INTO reports (id, period_start, period_end, generated_at, email_status, zip_path, recipient)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Create inserts a new report. The report generator owns this in
// production; the worker only uses it for seeding and tests.
func (s *ReportStore) Create(ctx context.Context, r *report.Report) error {
	status := r.EmailStatus
	if status == "" {
		status = report.StatusPending
	}
	_, err := s.db.Pool.Exec(ctx, insertReport,
		r.ID, r.PeriodStart, r.PeriodEnd, r.GeneratedAt, string(status), r.ZipPath, r.Recipient)
	if err != nil {
		return fmt.Errorf("create report %s: %w", r.ID, err)
	}
	return nil
}

const listReports = `
SELECT id FROM reports
WHERE email_status = $1
ORDER BY generated_at
LIMIT $2`

// ListIDsByStatus returns up to limit report ids in status, oldest first.
func (s *ReportStore) ListIDsByStatus(ctx context.Context, status report.Status, limit int) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx, listReports, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan reports: %w", err)
	}
	return ids, nil
}
