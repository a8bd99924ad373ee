package broker

import (
	"context"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/domain/generation"
	"github.com/kailas-cloud/studybuddy/internal/domain/message"
	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
)

// QuotaTracker is the reservation interface of the daily allowance.
type QuotaTracker interface {
	CheckAndReserve(ctx context.Context, c category.Category) (domquota.Reservation, error)
	Commit(r domquota.Reservation) bool
	Rollback(r domquota.Reservation) bool
	RemainingForCategory(c category.Category) int
}

// Composer builds provider requests.
type Composer interface {
	Build(question string, c category.Category) (generation.Request, error)
}

// Provider performs a single generative call.
type Provider interface {
	Send(ctx context.Context, req generation.Request, timeout time.Duration) (string, error)
}

// ConversationLog records chat history.
type ConversationLog interface {
	Append(drafts ...message.Draft) []message.Message
}
