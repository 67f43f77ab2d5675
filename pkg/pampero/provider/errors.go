package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TransientError marks a network-layer fault: connection failure, DNS
// resolution, request timeout. Transient failures are the only class the
// retry policy acts on.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx provider response. Never retried.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider returned %s", e.Status)
}

// PermanentClient reports whether the status points at the request itself
// (bad key, forbidden, malformed query) rather than provider health.
// Permanent client errors do not feed the circuit breaker.
func (e *HTTPError) PermanentClient() bool {
	switch e.StatusCode {
	case http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// PayloadError is a response body the client could not parse. Not retried
// and not counted by the breaker; the source simply contributes no data.
type PayloadError struct {
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("bad provider payload: %v", e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is eligible for retry.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// CountsAsFailure reports whether err should count toward the per-source
// circuit breaker: transient faults and server-side HTTP errors do,
// permanent client errors and parse failures do not.
func CountsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return !he.PermanentClient()
	}
	return IsTransient(err)
}

// classifyTransport wraps an http.Client transport error as transient.
// Caller cancellation passes through untouched so it is neither retried
// nor counted against the source.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransientError{Err: err}
}
