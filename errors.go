package studybuddy

import "github.com/kailas-cloud/studybuddy/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput  = domain.ErrInvalidInput
	ErrQuotaExceeded = domain.ErrQuotaExceeded
	ErrProviderError = domain.ErrProviderError
	ErrUnavailable   = domain.ErrUnavailable
)

// ProviderError is a classified provider failure. Use errors.As() to inspect Kind.
type ProviderError = domain.ProviderError

// FailureKind classifies a provider failure.
type FailureKind = domain.FailureKind

// Provider failure kinds.
const (
	FailureTransport         = domain.FailureTransport
	FailureTimeout           = domain.FailureTimeout
	FailureMalformedResponse = domain.FailureMalformedResponse
	FailureUpstreamRejected  = domain.FailureUpstreamRejected
)

// NewProviderError lets custom providers report a classified failure.
func NewProviderError(kind FailureKind, statusCode int, err error) error {
	return domain.NewProviderError(kind, statusCode, err)
}
