package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// SMTP implements the Provider interface by relaying through an SMTP
// submission server.
type SMTP struct {
	addr     string
	host     string
	username string
	password string
	tlsMode  string
	timeout  time.Duration

	tlsConfig *tls.Config
	now       func() time.Time
}

// NewSMTP creates an SMTP provider from a validated configuration.
func NewSMTP(cfg ProviderConfig) *SMTP {
	return &SMTP{
		addr:      net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:      cfg.Host,
		username:  cfg.Username,
		password:  cfg.Password,
		tlsMode:   cfg.TLS,
		timeout:   cfg.Timeout,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		now:       time.Now,
	}
}

func (s *SMTP) GetName() string { return "smtp" }

// Send renders msg and submits it in a single SMTP transaction. The
// connection deadline follows ctx so a stalled server cannot outlive the
// caller.
func (s *SMTP) Send(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	raw, err := BuildMIME(msg, s.now())
	if err != nil {
		return nil, &ProviderError{Provider: "smtp", Message: err.Error(), Permanent: true}
	}

	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.SendMail(msg.From, msg.To, bytes.NewReader(raw)); err != nil {
		return nil, s.classify("send", err)
	}
	// The message is accepted once DATA completes; a failed QUIT does not undo that.
	_ = c.Quit()

	return &DeliveryResult{
		ProviderMessageID: msg.ID,
		Status:            StatusSent,
		Timestamp:         s.now(),
		Metadata:          map[string]string{"relay": s.addr},
	}, nil
}

// HealthCheck opens and authenticates a session, then quits.
func (s *SMTP) HealthCheck(ctx context.Context) error {
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Noop(); err != nil {
		return s.classify("noop", err)
	}
	return c.Quit()
}

func (s *SMTP) connect(ctx context.Context) (*gosmtp.Client, error) {
	dialer := &net.Dialer{Timeout: s.timeout}

	var (
		conn net.Conn
		err  error
	)
	if s.tlsMode == "implicit" {
		td := &tls.Dialer{NetDialer: dialer, Config: s.tlsConfig}
		conn, err = td.DialContext(ctx, "tcp", s.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", s.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", s.addr, err)
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	var c *gosmtp.Client
	if s.tlsMode == "starttls" {
		c, err = gosmtp.NewClientStartTLS(conn, s.tlsConfig)
		if err != nil {
			conn.Close()
			return nil, s.classify("starttls", err)
		}
	} else {
		c = gosmtp.NewClient(conn)
	}

	if s.username != "" {
		auth := sasl.NewPlainClient("", s.username, s.password)
		if err := c.Auth(auth); err != nil {
			c.Close()
			return nil, s.classify("auth", err)
		}
	}
	return c, nil
}

func (s *SMTP) classify(op string, err error) error {
	var smtpErr *gosmtp.SMTPError
	if errors.As(err, &smtpErr) {
		return ClassifySMTPCode("smtp", smtpErr.Code, op+": "+smtpErr.Message)
	}
	return fmt.Errorf("smtp: %s: %w", op, err)
}
