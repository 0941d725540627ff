package provider

import (
	"bytes"
	"context"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFile_Send(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f := NewFile(ProviderConfig{Endpoint: dir})
	f.now = func() time.Time { return time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC) }

	result, err := f.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := filepath.Join(dir, "20240201_083000_rep-1.eml")
	if result.Metadata["path"] != want {
		t.Errorf("path = %q, want %q", result.Metadata["path"], want)
	}
	raw, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read eml: %v", err)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse eml: %v", err)
	}
	if !strings.HasPrefix(msg.Header.Get("Content-Type"), "multipart/mixed") {
		t.Errorf("Content-Type = %q", msg.Header.Get("Content-Type"))
	}
}

func TestFile_SendInvalidMessage(t *testing.T) {
	f := NewFile(ProviderConfig{Endpoint: t.TempDir()})
	msg := testMessage()
	msg.To = nil
	_, err := f.Send(context.Background(), msg)
	if !IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestStdout_Send(t *testing.T) {
	var buf bytes.Buffer
	s := &Stdout{writer: &buf}
	result, err := s.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.ProviderMessageID != "stdout-rep-1" {
		t.Errorf("ProviderMessageID = %q", result.ProviderMessageID)
	}
	out := buf.String()
	for _, want := range []string{"client@example.com", "mesicni_prehled_2024_01.zip", "(200 bytes)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
