package queue

import "time"

// Config holds configuration for the queue system.
type Config struct {
	// Type selects the queue backend: "redis" (default) or "sqs".
	Type            string        `mapstructure:"type"`
	Stream          string        `mapstructure:"stream"`
	DLQStream       string        `mapstructure:"dlq_stream"`
	Group           string        `mapstructure:"group"`
	WorkerCount     int           `mapstructure:"worker_count"`
	BlockTimeout    time.Duration `mapstructure:"block_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// SQS-specific config
	SQSQueueURL   string `mapstructure:"sqs_queue_url"`
	SQSDLQueueURL string `mapstructure:"sqs_dlq_url"`
	SQSRegion     string `mapstructure:"sqs_region"`
	SQSEndpoint   string `mapstructure:"sqs_endpoint"`
	SQSWaitTime   int32  `mapstructure:"sqs_wait_time"`          // long poll seconds, default 20
	SQSVisTimeout int32  `mapstructure:"sqs_visibility_timeout"` // seconds, must exceed the attempt timeout
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:            "redis",
		Stream:          "report_mailer:deliveries",
		DLQStream:       "report_mailer:deliveries:dlq",
		Group:           "report-mailer",
		WorkerCount:     4,
		BlockTimeout:    5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		SQSWaitTime:     20,
		SQSVisTimeout:   360,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Type == "" {
		c.Type = d.Type
	}
	if c.Stream == "" {
		c.Stream = d.Stream
	}
	if c.DLQStream == "" {
		c.DLQStream = d.DLQStream
	}
	if c.Group == "" {
		c.Group = d.Group
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = d.BlockTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.SQSWaitTime <= 0 {
		c.SQSWaitTime = d.SQSWaitTime
	}
	if c.SQSVisTimeout <= 0 {
		c.SQSVisTimeout = d.SQSVisTimeout
	}
	return c
}
