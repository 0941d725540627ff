package provider

import (
	"errors"
	"time"
)

// ProviderConfig holds configuration for a transport provider.
type ProviderConfig struct {
	// Type identifies the provider: "smtp", "sendgrid", "stdout", "file".
	Type string `mapstructure:"type"`

	// APIKey is the SendGrid API key.
	APIKey string `mapstructure:"api_key"`

	// Endpoint overrides the default API URL for HTTP providers and is the
	// output directory for the file provider.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout is the maximum duration for one transport call.
	Timeout time.Duration `mapstructure:"timeout"`

	// SMTP-specific fields.
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// TLS selects "starttls" (default), "implicit" or "none".
	TLS string `mapstructure:"tls"`
}

const defaultTimeout = 30 * time.Second

// Validate checks that required fields are set based on provider type.
func (c *ProviderConfig) Validate() error {
	if c.Type == "" {
		return errors.New("provider type is required")
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	switch c.Type {
	case "smtp":
		if c.Host == "" {
			return errors.New("smtp: host is required")
		}
		if c.Port == 0 {
			c.Port = 587
		}
		switch c.TLS {
		case "":
			c.TLS = "starttls"
		case "starttls", "implicit", "none":
		default:
			return errors.New("smtp: tls must be starttls, implicit or none")
		}
		if c.Username != "" && c.Password == "" {
			return errors.New("smtp: password is required when username is set")
		}
	case "sendgrid":
		if c.APIKey == "" {
			return errors.New("sendgrid: api_key is required")
		}
	case "stdout":
		// No configuration required.
	case "file":
		// Endpoint is used as output directory; optional (defaults to ./mail_output).
	default:
		return errors.New("unknown provider type: " + c.Type)
	}

	return nil
}
