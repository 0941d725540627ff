package logger

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig holds configuration for file-based log output with rotation.
type FileConfig struct {
	Path      string
	MaxSizeMB int
	MaxFiles  int
}

// NewFileWriter returns a size-rotated, gzip-compressing log file writer.
func NewFileWriter(cfg FileConfig) io.Writer {
	path := cfg.Path
	if path == "" {
		path = "report-mailer.log"
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		Compress:   true,
	}
}
