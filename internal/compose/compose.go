// Package compose builds the outgoing monthly report email from a report
// record. It performs no I/O and formats dates with fixed Czech layouts in a
// fixed time zone, so the same input always yields the same message whatever
// the host locale or zone.
package compose

import (
	"fmt"
	"maps"
	"time"

	"github.com/sungwon/report-mailer/internal/fault"
	"github.com/sungwon/report-mailer/internal/report"
)

const (
	// ZipContentType is the MIME type of the report archive attachment.
	ZipContentType = "application/zip"

	dateLayout     = "02.01.2006"
	dateTimeLayout = "02.01.2006 15:04"
	subjectPrefix  = "Měsíční přehled účetnictví"
	filenameFormat = "mesicni_prehled_%04d_%02d.zip"
)

// Context keys set on every message.
const (
	KeyPeriodStart = "period_start"
	KeyPeriodEnd   = "period_end"
	KeyGeneratedAt = "generated_at"
	KeyPeriodLabel = "period_label"
)

var czechMonths = [12]string{
	"leden", "únor", "březen", "duben", "květen", "červen",
	"červenec", "srpen", "září", "říjen", "listopad", "prosinec",
}

// Attachment references the report archive to attach.
type Attachment struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// Message describes the email to send: subject, template context and the
// single archive attachment.
type Message struct {
	Subject    string            `json:"subject"`
	Context    map[string]string `json:"context"`
	Attachment Attachment        `json:"attachment"`
}

// Composer builds report messages. Static context entries (company details
// and the like) are merged into every message; report-derived keys win on
// collision.
type Composer struct {
	static map[string]string
	loc    *time.Location
}

// Option configures a Composer.
type Option func(*Composer)

// WithLocation sets the zone generated_at is rendered in. Nil keeps UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *Composer) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New returns a Composer that adds the given static entries to each
// message context. The map is copied.
func New(static map[string]string, opts ...Option) *Composer {
	c := &Composer{static: maps.Clone(static), loc: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// calendarDate returns the UTC calendar day of a period bound. Period bounds
// are zone-less dates and the store hands them back as UTC midnight.
func calendarDate(t time.Time) time.Time {
	return t.UTC()
}

// Compose builds a message with no static context.
func Compose(r *report.Report, attachmentPath string) (*Message, error) {
	return New(nil).Compose(r, attachmentPath)
}

// Compose builds the message for r with attachmentPath as the archive.
func (c *Composer) Compose(r *report.Report, attachmentPath string) (*Message, error) {
	if err := validate(r, attachmentPath); err != nil {
		return nil, err
	}

	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	start := calendarDate(r.PeriodStart).Format(dateLayout)
	end := calendarDate(r.PeriodEnd).Format(dateLayout)

	ctx := make(map[string]string, len(c.static)+4)
	maps.Copy(ctx, c.static)
	ctx[KeyPeriodStart] = start
	ctx[KeyPeriodEnd] = end
	ctx[KeyGeneratedAt] = r.GeneratedAt.In(loc).Format(dateTimeLayout)
	ctx[KeyPeriodLabel] = PeriodLabel(r)

	return &Message{
		Subject: fmt.Sprintf("%s %s - %s", subjectPrefix, start, end),
		Context: ctx,
		Attachment: Attachment{
			Path:        attachmentPath,
			Filename:    AttachmentFilename(r),
			ContentType: ZipContentType,
		},
	}, nil
}

// AttachmentFilename returns the archive name derived from the period start,
// e.g. "mesicni_prehled_2024_01.zip".
func AttachmentFilename(r *report.Report) string {
	start := calendarDate(r.PeriodStart)
	return fmt.Sprintf(filenameFormat, start.Year(), int(start.Month()))
}

// PeriodLabel returns the Czech month label of the period start, e.g.
// "leden 2024".
func PeriodLabel(r *report.Report) string {
	start := calendarDate(r.PeriodStart)
	return fmt.Sprintf("%s %d", czechMonths[start.Month()-1], start.Year())
}

func validate(r *report.Report, attachmentPath string) error {
	const op = "compose"
	switch {
	case r == nil:
		return fault.InvalidInput(op, "report is nil")
	case r.PeriodStart.IsZero():
		return fault.InvalidInput(op, "report %s: period_start is not set", r.ID)
	case r.PeriodEnd.IsZero():
		return fault.InvalidInput(op, "report %s: period_end is not set", r.ID)
	case r.GeneratedAt.IsZero():
		return fault.InvalidInput(op, "report %s: generated_at is not set", r.ID)
	case r.PeriodStart.After(r.PeriodEnd):
		return fault.InvalidInput(op, "report %s: period_start after period_end", r.ID)
	case attachmentPath == "":
		return fault.InvalidInput(op, "report %s: attachment path is empty", r.ID)
	}
	return nil
}
