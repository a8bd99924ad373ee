package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/studybuddy/internal/domain"
	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
	"github.com/kailas-cloud/studybuddy/internal/metrics"
)

const (
	persistTimeout = 2 * time.Second
	loadTimeout    = 5 * time.Second
)

// Tracker owns the daily answer counters of one session.
// Reserve/commit/rollback run under a single mutex; store writes happen after it is released.
type Tracker struct {
	mu      sync.Mutex
	state   domquota.State
	limits  domquota.Limits
	pending map[string]domquota.Reservation
	version uint64
	loc     *time.Location
	now     func() time.Time

	session   string
	store     Store
	persistMu sync.Mutex
	persisted uint64

	logger *zap.Logger
}

// NewTracker creates a tracker with zeroed counters reset today.
// loc defines where the calendar day boundary falls (nil means UTC).
func NewTracker(limits domquota.Limits, loc *time.Location, logger *zap.Logger) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	t := &Tracker{
		limits:  limits,
		pending: make(map[string]domquota.Reservation),
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
	t.state = domquota.NewState(t.today())
	return t
}

// WithClock replaces the wall clock. Intended for tests and must be called before use.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.state = domquota.NewState(t.today())
	return t
}

// WithStore attaches a persistence store and loads the session's counters.
// A failed load returns domain.ErrUnavailable and the tracker must be discarded:
// its zeroed counters would otherwise overwrite the stored ones on the next write.
func (t *Tracker) WithStore(ctx context.Context, store Store, session string) (*Tracker, error) {
	t.store = store
	t.session = session
	if err := t.loadFromStore(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) loadFromStore(ctx context.Context) error {
	// The request that triggered the load may be cancelled; the load itself must finish.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	state, found, err := t.store.Load(ctx, t.session)
	if err != nil {
		return fmt.Errorf("load quota state of session %q: %w: %w", t.session, domain.ErrUnavailable, err)
	}
	if !found {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if state.ResetDate().IsZero() {
		state = domquota.RestoreState(state.Counts(), t.today())
	}
	t.state = state
	t.resetIfNeeded()

	t.logger.Debug("Quota state loaded from store",
		zap.String("session", t.session),
		zap.Stringer("reset_date", t.state.ResetDate()),
		zap.Int("short_form_used", t.state.Count(category.ShortForm)),
		zap.Int("long_form_used", t.state.Count(category.LongForm)),
	)
	return nil
}

// CheckAndReserve resets stale counters, then takes one unit of the category's allowance.
// Returns domain.ErrQuotaExceeded without mutation when the allowance is used up.
func (t *Tracker) CheckAndReserve(_ context.Context, c category.Category) (domquota.Reservation, error) {
	if !c.IsValid() {
		return domquota.Reservation{}, fmt.Errorf("answer type %q: %w", c, domain.ErrInvalidInput)
	}

	t.mu.Lock()
	t.resetIfNeeded()

	limit := t.limits.Limit(c)
	if t.state.Count(c) >= limit {
		t.mu.Unlock()
		metrics.QuotaReservationsTotal.WithLabelValues(string(c), "denied").Inc()
		return domquota.Reservation{}, fmt.Errorf("daily %s allowance of %d used: %w",
			c.Label(), limit, domain.ErrQuotaExceeded)
	}

	t.state.Increment(c)
	r := domquota.Reservation{
		ID:       uuid.NewString(),
		Category: c,
		Date:     t.state.ResetDate(),
	}
	t.pending[r.ID] = r
	t.version++
	t.mu.Unlock()

	metrics.QuotaReservationsTotal.WithLabelValues(string(c), "reserved").Inc()
	t.persist()
	return r, nil
}

// Commit finalizes a reservation; it can no longer be rolled back.
// Returns false when the reservation was already settled or is unknown.
func (t *Tracker) Commit(r domquota.Reservation) bool {
	t.mu.Lock()
	if _, ok := t.pending[r.ID]; !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, r.ID)
	t.resetIfNeeded()
	t.version++
	t.mu.Unlock()

	metrics.QuotaReservationsTotal.WithLabelValues(string(r.Category), "committed").Inc()
	t.persist()
	return true
}

// Rollback returns a pending reservation's unit to the allowance.
// Settled or unknown reservations are no-ops, as are reservations taken before the
// last daily reset (their unit was already cleared). Returns true if the count changed.
func (t *Tracker) Rollback(r domquota.Reservation) bool {
	t.mu.Lock()
	res, ok := t.pending[r.ID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, r.ID)
	t.resetIfNeeded()

	restored := false
	if res.Date == t.state.ResetDate() && t.state.Count(res.Category) > 0 {
		t.state.Decrement(res.Category)
		restored = true
	}
	t.version++
	t.mu.Unlock()

	metrics.QuotaReservationsTotal.WithLabelValues(string(r.Category), "rolled_back").Inc()
	t.persist()
	return restored
}

// RemainingForCategory returns answers left today, clamped to [0, limit].
func (t *Tracker) RemainingForCategory(c category.Category) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()
	remaining := t.limits.Limit(c) - t.state.Count(c)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Limit returns the daily cap for c.
func (t *Tracker) Limit(c category.Category) int { return t.limits.Limit(c) }

// Used returns units consumed or reserved today for c.
func (t *Tracker) Used(c category.Category) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.state.Count(c)
}

// ResetDate returns the date the counters were last zeroed.
func (t *Tracker) ResetDate() domquota.Date {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.state.ResetDate()
}

// Pending returns the number of reservations awaiting commit or rollback.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Location returns the time zone of the daily boundary.
func (t *Tracker) Location() *time.Location { return t.loc }

// Session returns the session id the tracker persists under ("" when detached).
func (t *Tracker) Session() string { return t.session }

// resetIfNeeded zeroes counters when the calendar day rolls over. Caller holds mu.
func (t *Tracker) resetIfNeeded() {
	prev := t.state.ResetDate()
	if t.state.ResetIfStale(t.today()) {
		t.version++
		t.logger.Info("Daily quota reset",
			zap.String("session", t.session),
			zap.Stringer("previous", prev),
			zap.Stringer("reset_date", t.state.ResetDate()),
		)
	}
}

// persist writes the latest state unless it has already been stored.
// It snapshots under persistMu, so a write can never replace a newer state with an older one,
// and a failed write is repaired by the next one.
func (t *Tracker) persist() {
	if t.store == nil {
		return
	}

	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.Lock()
	snap, ver := t.state.Clone(), t.version
	t.mu.Unlock()
	if ver <= t.persisted {
		return
	}

	// Detached from the request: a cancelled Ask must still record its commit or rollback.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := t.store.Save(ctx, t.session, snap); err != nil {
		t.logger.Warn("Failed to persist quota state",
			zap.String("session", t.session), zap.Uint64("version", ver), zap.Error(err))
		return
	}
	t.persisted = ver
}

func (t *Tracker) today() domquota.Date {
	return domquota.DateOf(t.now(), t.loc)
}
