package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultOutputDir = "./mail_output"

// File implements the Provider interface by writing each message as a
// complete .eml file into a directory. Useful for inspecting rendered
// reports without a relay.
type File struct {
	outputDir string
	now       func() time.Time
}

// NewFile creates a File provider. ProviderConfig.Endpoint selects the
// output directory; it defaults to "./mail_output".
func NewFile(cfg ProviderConfig) *File {
	dir := cfg.Endpoint
	if dir == "" {
		dir = defaultOutputDir
	}
	return &File{outputDir: dir, now: time.Now}
}

func (f *File) GetName() string { return "file" }

// Send writes the MIME rendering of msg to <timestamp>_<id>.eml.
func (f *File) Send(_ context.Context, msg *Message) (*DeliveryResult, error) {
	now := f.now()
	raw, err := BuildMIME(msg, now)
	if err != nil {
		return nil, &ProviderError{Provider: "file", Message: err.Error(), Permanent: true}
	}

	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("file: create output dir: %w", err)
	}

	safeID := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(msg.ID)
	filename := fmt.Sprintf("%s_%s.eml", now.Format("20060102_150405"), safeID)
	path := filepath.Join(f.outputDir, filename)

	if err := os.WriteFile(path, raw, 0o640); err != nil {
		return nil, fmt.Errorf("file: write %s: %w", path, err)
	}

	return &DeliveryResult{
		ProviderMessageID: "file-" + msg.ID,
		Status:            StatusSent,
		Timestamp:         now,
		Metadata:          map[string]string{"path": path},
	}, nil
}

// HealthCheck verifies the output directory is writable.
func (f *File) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return fmt.Errorf("file: output dir not writable: %w", err)
	}
	return nil
}
