package domain

import (
	"context"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/generation"
)

// Provider is the generative-text contract between layers.
// Send performs a single attempt. Failures are always *ProviderError.
// A non-positive timeout selects the implementation's default.
type Provider interface {
	Send(ctx context.Context, req generation.Request, timeout time.Duration) (string, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
