package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/studybuddy/internal/domain"
	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
	"github.com/kailas-cloud/studybuddy/internal/metrics"
	"github.com/kailas-cloud/studybuddy/internal/usecase/broker"
	"github.com/kailas-cloud/studybuddy/internal/usecase/conversation"
	"github.com/kailas-cloud/studybuddy/internal/usecase/quota"
)

const maxIDLength = 128

// Session bundles the per-device state.
type Session struct {
	ID      string
	Tracker *quota.Tracker
	Log     *conversation.Log
	Broker  *broker.Broker
}

// BrokerOptions is the answer policy applied to every session's broker.
type BrokerOptions struct {
	Timeout            time.Duration
	MaxAttempts        int
	RetryBackoff       time.Duration
	MaxQuestionLength  int
	FailurePlaceholder string
}

// Registry lazily creates one Session per id and shares composer, provider and limits.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	limits   domquota.Limits
	loc      *time.Location
	composer broker.Composer
	provider broker.Provider
	store    quota.Store
	opts     BrokerOptions
	now      func() time.Time
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(
	limits domquota.Limits, loc *time.Location,
	composer broker.Composer, provider broker.Provider, logger *zap.Logger,
) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		limits:   limits,
		loc:      loc,
		composer: composer,
		provider: provider,
		opts: BrokerOptions{
			MaxAttempts:       broker.DefaultMaxAttempts,
			RetryBackoff:      broker.DefaultRetryBackoff,
			MaxQuestionLength: broker.DefaultMaxQuestionLength,
		},
		now:    time.Now,
		logger: logger,
	}
}

// WithStore persists quota state of every session through store.
func (r *Registry) WithStore(store quota.Store) *Registry {
	r.store = store
	return r
}

// WithBrokerOptions sets the answer policy for sessions created afterwards.
func (r *Registry) WithBrokerOptions(opts BrokerOptions) *Registry {
	r.opts = opts
	return r
}

// WithClock replaces the clock of sessions created afterwards.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Get returns the session for id, creating it on first use.
// Concurrent first calls for the same id observe the same Session.
// When the stored quota state cannot be loaded nothing is cached and the next call retries.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	// Built outside the lock: loading from the store may block on the network.
	created, err := r.build(ctx, id)
	if err != nil {
		r.logger.Warn("Session not created", zap.String("session", id), zap.Error(err))
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	// TODO: evict sessions idle for longer than the quota TTL; the map grows with every device.
	r.sessions[id] = created
	metrics.ActiveSessions.Set(float64(len(r.sessions)))

	r.logger.Debug("Session created", zap.String("session", id))
	return created, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) build(ctx context.Context, id string) (*Session, error) {
	logger := r.logger.With(zap.String("session", id))

	tracker := quota.NewTracker(r.limits, r.loc, logger).WithClock(r.now)
	if r.store != nil {
		var err error
		if tracker, err = tracker.WithStore(ctx, r.store, id); err != nil {
			return nil, err
		}
	}
	log := conversation.NewLog().WithClock(r.now)

	b := broker.New(tracker, r.composer, r.provider, log, logger).
		WithTimeout(r.opts.Timeout).
		WithRetry(r.opts.MaxAttempts, r.opts.RetryBackoff).
		WithMaxQuestionLength(r.opts.MaxQuestionLength).
		WithFailurePlaceholder(r.opts.FailurePlaceholder)

	return &Session{ID: id, Tracker: tracker, Log: log, Broker: b}, nil
}

// ValidateID checks that id is 1-128 characters of [A-Za-z0-9_.-].
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is empty: %w", domain.ErrInvalidInput)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("session id exceeds %d characters: %w", maxIDLength, domain.ErrInvalidInput)
	}
	for _, ch := range id {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '_' || ch == '.' || ch == '-':
		default:
			return fmt.Errorf("session id contains %q: %w", ch, domain.ErrInvalidInput)
		}
	}
	return nil
}
