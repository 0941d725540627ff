package provider

import (
	"errors"
	"strings"
)

// ProviderError wraps a transport error with classification metadata.
type ProviderError struct {
	// Provider is the name of the transport that returned the error.
	Provider string
	// StatusCode is the HTTP or SMTP reply code, when one is known.
	StatusCode int
	// Message is the error description returned by the transport.
	Message string
	// Permanent indicates the error will not succeed on retry.
	Permanent bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Message
}

// IsPermanent returns true if the error is a permanent failure that will
// not succeed on retry.
func IsPermanent(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Permanent
	}
	return false
}

// ClassifyHTTPError creates a ProviderError from an HTTP status code and
// response body, classifying it as permanent or transient.
func ClassifyHTTPError(providerName string, statusCode int, body string) *ProviderError {
	pe := &ProviderError{
		Provider:   providerName,
		StatusCode: statusCode,
		Message:    body,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil

	case statusCode == 400:
		pe.Permanent = containsAny(body, permanentRequestPatterns)

	case statusCode == 401, statusCode == 403, statusCode == 404:
		pe.Permanent = true

	case statusCode == 429:
		pe.Permanent = false

	case statusCode >= 500:
		pe.Permanent = containsAny(body, permanentServerPatterns)

	default:
		pe.Permanent = statusCode >= 400 && statusCode < 500
	}

	return pe
}

// ClassifySMTPCode creates a ProviderError from an SMTP reply. 5xx replies
// are permanent, 4xx transient.
func ClassifySMTPCode(providerName string, code int, message string) *ProviderError {
	return &ProviderError{
		Provider:   providerName,
		StatusCode: code,
		Message:    message,
		Permanent:  code >= 500 && code < 600,
	}
}

var permanentRequestPatterns = []string{
	"invalid recipient",
	"invalid email",
	"does not exist",
	"mailbox not found",
	"recipient rejected",
	"bad request",
	"validation error",
	"invalid address",
}

var permanentServerPatterns = []string{
	"invalid api key",
	"authentication failed",
	"account suspended",
	"account disabled",
	"unauthorized",
}

func containsAny(body string, patterns []string) bool {
	lower := strings.ToLower(body)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
