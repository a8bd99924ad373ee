package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
)

const fieldResetDate = "reset_date"

// store is the consumer interface for quota operations (ISP).
type store interface {
	HSetWithTTL(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Store persists per-session quota state as one hash:
// <prefix>quota:<session> {short_form, long_form, reset_date}.
type Store struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a quota store. ttl bounds how long an idle session is remembered (recommended: 48h).
func New(s store, prefix string, ttl time.Duration) *Store {
	return &Store{store: s, prefix: prefix, ttl: ttl}
}

// Key returns the hash key of a session.
func (s *Store) Key(session string) string {
	return s.prefix + "quota:" + session
}

// Save writes the snapshot and refreshes the TTL.
func (s *Store) Save(ctx context.Context, session string, st domquota.State) error {
	counts := st.Counts()
	fields := make(map[string]string, len(counts)+1)
	for c, n := range counts {
		fields[string(c)] = strconv.Itoa(n)
	}
	fields[fieldResetDate] = st.ResetDate().String()

	key := s.Key(session)
	if err := s.store.HSetWithTTL(ctx, key, fields, s.ttl); err != nil {
		return fmt.Errorf("quota HSET %s: %w", key, err)
	}
	return nil
}

// Load reads a session's snapshot. found is false when nothing was stored.
// Missing or unparsable counters decode as zero and a missing reset date as the zero Date,
// which the tracker replaces with today. Unknown fields are ignored.
func (s *Store) Load(ctx context.Context, session string) (domquota.State, bool, error) {
	key := s.Key(session)
	m, err := s.store.HGetAll(ctx, key)
	if err != nil {
		return domquota.State{}, false, fmt.Errorf("quota HGETALL %s: %w", key, err)
	}
	if len(m) == 0 {
		return domquota.State{}, false, nil
	}

	counts := make(map[category.Category]int, len(category.All()))
	for _, c := range category.All() {
		if v, ok := m[string(c)]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				counts[c] = n
			}
		}
	}

	var resetDate domquota.Date
	if v, ok := m[fieldResetDate]; ok {
		if d, err := domquota.ParseDate(v); err == nil {
			resetDate = d
		}
	}

	return domquota.RestoreState(counts, resetDate), true, nil
}
