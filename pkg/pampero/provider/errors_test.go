package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCountsAsFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", &TransientError{Err: errors.New("connection reset")}, true},
		{"wrapped transient", fmt.Errorf("all 3 attempts failed: %w", &TransientError{Err: errors.New("timeout")}), true},
		{"http 500", &HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}, true},
		{"http 503", &HTTPError{StatusCode: 503, Status: "503 Service Unavailable"}, true},
		{"http 401", &HTTPError{StatusCode: 401, Status: "401 Unauthorized"}, false},
		{"http 403", &HTTPError{StatusCode: 403, Status: "403 Forbidden"}, false},
		{"http 422", &HTTPError{StatusCode: 422, Status: "422 Unprocessable Entity"}, false},
		{"payload", &PayloadError{Err: errors.New("unexpected EOF")}, false},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountsAsFailure(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestClassifyTransport(t *testing.T) {
	if classifyTransport(nil) != nil {
		t.Error("Expected nil passthrough")
	}

	// Caller cancellation must not be treated as a provider fault.
	wrapped := fmt.Errorf("Post \"http://x\": %w", context.Canceled)
	if got := classifyTransport(wrapped); IsTransient(got) {
		t.Errorf("Expected cancellation to stay non-transient, got %v", got)
	}

	if got := classifyTransport(errors.New("dial tcp: connection refused")); !IsTransient(got) {
		t.Errorf("Expected transient wrap, got %v", got)
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	cause := errors.New("dns failure")
	err := &TransientError{Err: cause}
	if !errors.Is(err, cause) {
		t.Error("Expected Unwrap to expose the cause")
	}
}
