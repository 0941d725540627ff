package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PayloadVersion is the current delivery payload format.
const PayloadVersion = 1

var (
	// ErrUnsupportedVersion is returned for payloads from an unknown format.
	ErrUnsupportedVersion = errors.New("queue: unsupported payload version")
	// ErrMissingReportID is returned for payloads without a report id.
	ErrMissingReportID = errors.New("queue: payload has no report id")
)

// Message is the delivery payload. It carries only the report identifier;
// the worker re-reads the report when the attempt starts.
type Message struct {
	Version  int    `json:"version"`
	ID       string `json:"id"`
	ReportID string `json:"report_id"`
	// Attempt counts the attempts made so far. The executor increments it
	// before each run, so handlers see the 1-based number of the current
	// attempt.
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewMessage creates a fresh delivery payload for a report.
func NewMessage(reportID string) *Message {
	return &Message{
		Version:    PayloadVersion,
		ID:         uuid.NewString(),
		ReportID:   reportID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Validate checks the payload version and the report reference.
func (m *Message) Validate() error {
	if m.Version != PayloadVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	if m.ReportID == "" {
		return ErrMissingReportID
	}
	return nil
}

// Encode serializes the payload.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

// Decode parses a serialized payload. It does not validate it; the handler
// decides what to do with an unknown version.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}
