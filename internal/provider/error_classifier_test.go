package provider

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantNil    bool
		wantPerm   bool
	}{
		{name: "202 returns nil", statusCode: 202, wantNil: true},
		{name: "400 with invalid email body is permanent", statusCode: 400, body: "invalid email address provided", wantPerm: true},
		{name: "400 with temporary body is not permanent", statusCode: 400, body: "temporary server issue"},
		{name: "401 is permanent", statusCode: 401, body: "unauthorized", wantPerm: true},
		{name: "404 is permanent", statusCode: 404, wantPerm: true},
		{name: "429 is transient", statusCode: 429, body: "rate limited"},
		{name: "500 is transient", statusCode: 500, body: "internal error"},
		{name: "500 with invalid api key is permanent", statusCode: 500, body: "Invalid API Key", wantPerm: true},
		{name: "422 is permanent", statusCode: 422, body: "unprocessable", wantPerm: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := ClassifyHTTPError("sendgrid", tt.statusCode, tt.body)
			if tt.wantNil {
				if pe != nil {
					t.Fatalf("expected nil, got %v", pe)
				}
				return
			}
			if pe == nil {
				t.Fatal("expected error, got nil")
			}
			if pe.Permanent != tt.wantPerm {
				t.Errorf("Permanent = %v, want %v", pe.Permanent, tt.wantPerm)
			}
			if pe.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", pe.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestClassifySMTPCode(t *testing.T) {
	tests := []struct {
		code     int
		wantPerm bool
	}{
		{421, false},
		{450, false},
		{535, true},
		{550, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			pe := ClassifySMTPCode("smtp", tt.code, "reply")
			if pe.Permanent != tt.wantPerm {
				t.Errorf("Permanent = %v, want %v", pe.Permanent, tt.wantPerm)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	perm := &ProviderError{Provider: "smtp", Message: "rejected", Permanent: true}
	if !IsPermanent(perm) {
		t.Error("expected permanent error")
	}
	if !IsPermanent(fmt.Errorf("wrapped: %w", perm)) {
		t.Error("expected wrapped permanent error to be detected")
	}
	if IsPermanent(errors.New("plain")) {
		t.Error("plain errors are not permanent")
	}
	if IsPermanent(nil) {
		t.Error("nil is not permanent")
	}
}
