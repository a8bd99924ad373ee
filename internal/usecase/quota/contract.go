package quota

import (
	"context"

	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
)

// Store is the persistence interface for per-session quota state.
// Load reports found=false for a session that was never saved.
type Store interface {
	Load(ctx context.Context, session string) (state domquota.State, found bool, err error)
	Save(ctx context.Context, session string, state domquota.State) error
}
