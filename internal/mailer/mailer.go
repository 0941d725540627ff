// Package mailer sends a generated monthly report to its recipient: it
// composes the message, loads the archive, renders the bodies and hands the
// result to a transport provider.
package mailer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/report-mailer/internal/attachment"
	"github.com/sungwon/report-mailer/internal/compose"
	"github.com/sungwon/report-mailer/internal/fault"
	"github.com/sungwon/report-mailer/internal/provider"
	"github.com/sungwon/report-mailer/internal/report"
)

// Config is the sender identity and fallback recipient.
type Config struct {
	From             string `mapstructure:"from"`
	FromName         string `mapstructure:"from_name"`
	DefaultRecipient string `mapstructure:"default_recipient"`
}

// WithSender fills an unset sender address and display name, typically from
// the company profile.
func (c Config) WithSender(name, email string) Config {
	if c.From == "" {
		c.From = email
	}
	if c.FromName == "" {
		c.FromName = name
	}
	return c
}

// ReportMailer implements the email-sending collaborator of the delivery
// job.
type ReportMailer struct {
	archives attachment.Store
	composer *compose.Composer
	renderer *Renderer
	provider provider.Provider
	cfg      Config
	log      zerolog.Logger
}

// New creates a ReportMailer.
func New(archives attachment.Store, composer *compose.Composer, p provider.Provider, cfg Config, log zerolog.Logger) (*ReportMailer, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &ReportMailer{
		archives: archives,
		composer: composer,
		renderer: renderer,
		provider: p,
		cfg:      cfg,
		log:      log.With().Str("component", "mailer").Logger(),
	}, nil
}

// GenerateAndSendMonthlyReport emails r with its archive attached. It
// returns true once the provider accepted the message and false with a nil
// error when the provider reported a non-sent status without an error.
func (m *ReportMailer) GenerateAndSendMonthlyReport(ctx context.Context, r *report.Report) (bool, error) {
	msg, err := m.composer.Compose(r, r.ZipPath)
	if err != nil {
		return false, err
	}

	recipient := r.Recipient
	if recipient == "" {
		recipient = m.cfg.DefaultRecipient
	}
	if recipient == "" {
		return false, fault.InvalidInput("recipient", "report %s: no recipient configured", r.ID)
	}
	if err := validateAddress(recipient); err != nil {
		return false, fault.InvalidInput("recipient", "report %s: %v", r.ID, err)
	}

	archive, err := m.archives.Get(ctx, msg.Attachment.Path)
	if err != nil {
		if errors.Is(err, attachment.ErrNotFound) {
			return false, fault.InvalidInput("attachment", "report %s: archive %q is missing", r.ID, msg.Attachment.Path)
		}
		return false, fault.Classify("attachment", err)
	}

	textBody, htmlBody, err := m.renderer.Render(msg)
	if err != nil {
		return false, fault.InvalidInput("render", "report %s: %v", r.ID, err)
	}

	out := &provider.Message{
		ID:       uuid.NewString(),
		From:     m.cfg.From,
		FromName: m.cfg.FromName,
		To:       []string{recipient},
		Subject:  msg.Subject,
		Headers:  map[string]string{"X-Report-ID": r.ID},
		TextBody: textBody,
		HTMLBody: htmlBody,
		Attachments: []provider.Attachment{{
			Filename:    msg.Attachment.Filename,
			ContentType: msg.Attachment.ContentType,
			Content:     archive,
		}},
	}

	result, err := m.provider.Send(ctx, out)
	if err != nil {
		m.log.Warn().
			Err(err).
			Str("report_id", r.ID).
			Str("provider", m.provider.GetName()).
			Bool("permanent", provider.IsPermanent(err)).
			Msg("provider rejected report email")
		return false, fault.Classify("send", err)
	}

	if result == nil || result.Status != provider.StatusSent {
		return false, nil
	}

	m.log.Debug().
		Str("report_id", r.ID).
		Str("provider", m.provider.GetName()).
		Str("provider_message_id", result.ProviderMessageID).
		Str("message_id", out.ID).
		Msg("report email accepted")
	return true, nil
}
