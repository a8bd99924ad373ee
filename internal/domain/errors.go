package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals an empty question, unknown answer type or bad session id.
	ErrInvalidInput = errors.New("invalid input")
	// ErrQuotaExceeded signals an exhausted daily allowance for an answer category.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrProviderError signals a failed call to the generative-text provider.
	ErrProviderError = errors.New("provider error")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable signals that stored quota state could not be read.
	ErrUnavailable = errors.New("quota state unavailable")
)

// FailureKind classifies a provider failure.
type FailureKind string

// Provider failure kinds.
const (
	// FailureTransport covers connection/DNS failures, bare non-success statuses,
	// rate limiting and server-side provider failures.
	FailureTransport FailureKind = "transport"
	// FailureTimeout means no response arrived within the call timeout.
	FailureTimeout FailureKind = "timeout"
	// FailureMalformedResponse means the response lacked the answer field.
	FailureMalformedResponse FailureKind = "malformed_response"
	// FailureUpstreamRejected means the provider rejected the request with an error payload.
	FailureUpstreamRejected FailureKind = "upstream_rejected"
)

// IsValid checks if the kind is one of the known values.
func (k FailureKind) IsValid() bool {
	switch k {
	case FailureTransport, FailureTimeout, FailureMalformedResponse, FailureUpstreamRejected:
		return true
	}
	return false
}

// Retryable reports whether another attempt may succeed.
// Rejections and malformed answers are deterministic for the same prompt.
func (k FailureKind) Retryable() bool {
	return k == FailureTransport || k == FailureTimeout
}

// ProviderError is a classified provider failure.
// It matches both ErrProviderError and the underlying cause via errors.Is.
type ProviderError struct {
	Kind       FailureKind
	StatusCode int // HTTP status when one was received, 0 otherwise
	Attempts   int // set by the broker once retries are exhausted
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrProviderError.Error(), e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderError}
	}
	return []error{ErrProviderError, e.Err}
}

// NewProviderError creates a classified provider failure.
func NewProviderError(kind FailureKind, statusCode int, err error) error {
	return &ProviderError{Kind: kind, StatusCode: statusCode, Err: err}
}

// FailureKindOf extracts the failure kind from err. ok is false for non-provider errors.
func FailureKindOf(err error) (FailureKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
