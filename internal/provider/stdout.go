package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// Stdout implements the Provider interface by writing a summary of each
// message to standard output. Nothing is delivered.
type Stdout struct {
	writer io.Writer
}

// NewStdout creates a Stdout provider that prints messages to os.Stdout.
func NewStdout(_ ProviderConfig) *Stdout {
	return &Stdout{writer: os.Stdout}
}

func (s *Stdout) GetName() string { return "stdout" }

// Send prints the message envelope and attachment list.
func (s *Stdout) Send(_ context.Context, msg *Message) (*DeliveryResult, error) {
	var b strings.Builder
	b.WriteString("--- stdout provider: message ---\n")
	fmt.Fprintf(&b, "ID:      %s\n", msg.ID)
	fmt.Fprintf(&b, "From:    %s\n", msg.From)
	fmt.Fprintf(&b, "To:      %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "Header:  %s: %s\n", k, msg.Headers[k])
	}
	fmt.Fprintf(&b, "Text:    (%d bytes)\n", len(msg.TextBody))
	fmt.Fprintf(&b, "HTML:    (%d bytes)\n", len(msg.HTMLBody))
	for _, att := range msg.Attachments {
		fmt.Fprintf(&b, "Attach:  %s %s (%d bytes)\n", att.Filename, att.ContentType, len(att.Content))
	}
	b.WriteString("--- end ---\n")

	if _, err := io.WriteString(s.writer, b.String()); err != nil {
		return nil, fmt.Errorf("stdout: write: %w", err)
	}

	return &DeliveryResult{
		ProviderMessageID: "stdout-" + msg.ID,
		Status:            StatusSent,
		Timestamp:         time.Now(),
	}, nil
}

// HealthCheck always returns nil since stdout is always available.
func (s *Stdout) HealthCheck(_ context.Context) error {
	return nil
}
