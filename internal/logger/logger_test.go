package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New("info").Output(&buf)

	log.Info().Str("report_id", "rep-1").Msg("test message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v, output: %s", err, buf.String())
	}
	if entry["message"] != "test message" {
		t.Errorf("expected message 'test message', got %v", entry["message"])
	}
	if entry["report_id"] != "rep-1" {
		t.Errorf("expected report_id rep-1, got %v", entry["report_id"])
	}
	if entry["service"] != "report-mailer" {
		t.Errorf("expected service report-mailer, got %v", entry["service"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON output")
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logAt     zerolog.Level
		shouldLog bool
	}{
		{"info logger logs info", "info", zerolog.InfoLevel, true},
		{"info logger logs error", "info", zerolog.ErrorLevel, true},
		{"info logger skips debug", "info", zerolog.DebugLevel, false},
		{"debug logger logs debug", "debug", zerolog.DebugLevel, true},
		{"warn logger skips info", "warn", zerolog.InfoLevel, false},
		{"invalid level defaults to info", "loud", zerolog.DebugLevel, false},
		{"empty level defaults to info", "", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(tt.level).Output(&buf)
			log.WithLevel(tt.logAt).Msg("test")

			if got := buf.Len() > 0; got != tt.shouldLog {
				t.Errorf("level=%s, logAt=%s: expected shouldLog=%v, got output %q",
					tt.level, tt.logAt, tt.shouldLog, buf.String())
			}
		})
	}
}

func TestNewFromConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailer.log")
	log := NewFromConfig(Config{Level: "info", Output: "file", FilePath: path, MaxSizeMB: 1, MaxFiles: 1})

	log.Info().Msg("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file, got error: %v", err)
	}
	if !bytes.Contains(data, []byte(`"message":"to file"`)) {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := New("info").Output(&buf)

	ctx := WithLogger(context.Background(), base)
	ctx = WithCorrelationID(ctx, "corr-123")

	log := FromContext(ctx)
	log.Info().Msg("with correlation")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["correlation_id"] != "corr-123" {
		t.Errorf("expected correlation_id corr-123, got %v", entry["correlation_id"])
	}
}

func TestFromContext_NoLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() != zerolog.Disabled {
		t.Errorf("expected disabled logger, got level %s", log.GetLevel())
	}
}

func TestNewCorrelationID_Unique(t *testing.T) {
	a, b := NewCorrelationID(), NewCorrelationID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a, b)
	}
	if CorrelationIDFromContext(context.Background()) != "" {
		t.Error("expected empty correlation id on bare context")
	}
}
