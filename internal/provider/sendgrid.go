package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	sendgridDefaultEndpoint = "https://api.sendgrid.com"
	sendgridSendPath        = "/v3/mail/send"
	sendgridScopesPath      = "/v3/scopes"
)

// SendGrid implements the Provider interface for the SendGrid v3 API.
type SendGrid struct {
	apiKey   string
	endpoint string
	client   HTTPClient
}

// NewSendGrid creates a SendGrid provider from the given configuration.
func NewSendGrid(cfg ProviderConfig, client HTTPClient) *SendGrid {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = sendgridDefaultEndpoint
	}
	return &SendGrid{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   client,
	}
}

func (s *SendGrid) GetName() string { return "sendgrid" }

// Send delivers a message via the SendGrid v3 Mail Send API.
func (s *SendGrid) Send(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	body, err := json.Marshal(s.buildPayload(msg))
	if err != nil {
		return nil, fmt.Errorf("sendgrid: marshal request: %w", err)
	}

	resp, err := s.client.Do(ctx, &HTTPRequest{
		Method: http.MethodPost,
		URL:    s.endpoint + sendgridSendPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, fmt.Errorf("sendgrid: send request: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &DeliveryResult{
			ProviderMessageID: resp.Headers["X-Message-Id"],
			Status:            StatusSent,
			Timestamp:         time.Now(),
			Metadata: map[string]string{
				"status_code": strconv.Itoa(resp.StatusCode),
			},
		}, nil
	}

	return nil, ClassifyHTTPError("sendgrid", resp.StatusCode, string(resp.Body))
}

// HealthCheck verifies SendGrid API connectivity by calling the scopes endpoint.
func (s *SendGrid) HealthCheck(ctx context.Context) error {
	resp, err := s.client.Do(ctx, &HTTPRequest{
		Method: http.MethodGet,
		URL:    s.endpoint + sendgridScopesPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
		},
	})
	if err != nil {
		return fmt.Errorf("sendgrid: health check request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendgrid: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// sendgridPayload matches the SendGrid v3 mail/send JSON schema.
type sendgridPayload struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridEmail             `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
	Headers          map[string]string         `json:"headers,omitempty"`
	Attachments      []sendgridAttachment      `json:"attachments,omitempty"`
}

type sendgridPersonalization struct {
	To []sendgridEmail `json:"to"`
}

type sendgridEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridAttachment struct {
	Content     string `json:"content"` // base64 encoded
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

func (s *SendGrid) buildPayload(msg *Message) sendgridPayload {
	tos := make([]sendgridEmail, len(msg.To))
	for i, addr := range msg.To {
		tos[i] = sendgridEmail{Email: addr}
	}

	// SendGrid requires text/plain before text/html.
	var content []sendgridContent
	if msg.TextBody != "" {
		content = append(content, sendgridContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		content = append(content, sendgridContent{Type: "text/html", Value: msg.HTMLBody})
	}

	payload := sendgridPayload{
		Personalizations: []sendgridPersonalization{{To: tos}},
		From:             sendgridEmail{Email: msg.From, Name: msg.FromName},
		Subject:          msg.Subject,
		Content:          content,
		Headers:          msg.Headers,
	}

	for _, att := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, sendgridAttachment{
			Content:     base64.StdEncoding.EncodeToString(att.Content),
			Type:        att.ContentType,
			Filename:    att.Filename,
			Disposition: "attachment",
		})
	}

	return payload
}
