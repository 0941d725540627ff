package provider

import (
	"fmt"
)

// NewProvider creates a provider instance from the given config. The HTTP
// client is only used by API-based providers and may be nil otherwise.
func NewProvider(cfg ProviderConfig, client HTTPClient) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}

	switch cfg.Type {
	case "smtp":
		return NewSMTP(cfg), nil
	case "sendgrid":
		if client == nil {
			client = NewHTTPClient(cfg.Timeout)
		}
		return NewSendGrid(cfg, client), nil
	case "stdout":
		return NewStdout(cfg), nil
	case "file":
		return NewFile(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}
