package quota

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
)

const dateLayout = "2006-01-02"

// Date is a calendar date in the tracker's time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses the YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == Date{} }

// Start returns midnight of the date in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Next returns midnight of the following day in loc, i.e. the next reset instant.
func (d Date) Next(loc *time.Location) time.Time {
	return d.Start(loc).AddDate(0, 0, 1)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Limits is the immutable per-category daily cap.
type Limits struct {
	caps map[category.Category]int
}

// NewLimits validates caps: every category needs a positive limit.
func NewLimits(caps map[category.Category]int) (Limits, error) {
	out := make(map[category.Category]int, len(caps))
	for _, c := range category.All() {
		v, ok := caps[c]
		if !ok {
			return Limits{}, fmt.Errorf("limit for %s is required", c)
		}
		if v <= 0 {
			return Limits{}, fmt.Errorf("limit for %s must be positive, got %d", c, v)
		}
		out[c] = v
	}
	for c := range caps {
		if !c.IsValid() {
			return Limits{}, fmt.Errorf("unknown category %q in limits", c)
		}
	}
	return Limits{caps: out}, nil
}

// DefaultLimits returns the free-tier allowance: 3 short-form and 2 long-form answers per day.
func DefaultLimits() Limits {
	return Limits{caps: map[category.Category]int{
		category.ShortForm: 3,
		category.LongForm:  2,
	}}
}

// Limit returns the daily cap for c (0 for unknown categories).
func (l Limits) Limit(c category.Category) int { return l.caps[c] }

// State holds per-category usage counters and the date they were last zeroed.
// Not safe for concurrent use; the tracker owns synchronization.
type State struct {
	counts    map[category.Category]int
	resetDate Date
}

// NewState creates a zeroed state reset on the given date.
func NewState(resetDate Date) State {
	return State{counts: make(map[category.Category]int), resetDate: resetDate}
}

// RestoreState rebuilds a state from persisted values. Negative counts are clamped to zero.
func RestoreState(counts map[category.Category]int, resetDate Date) State {
	s := NewState(resetDate)
	for c, n := range counts {
		if c.IsValid() && n > 0 {
			s.counts[c] = n
		}
	}
	return s
}

// Count returns the usage counter for c.
func (s *State) Count(c category.Category) int { return s.counts[c] }

// ResetDate returns the date on which the counters were last zeroed.
func (s *State) ResetDate() Date { return s.resetDate }

// Counts returns a copy of the counters including zero entries for every category.
func (s *State) Counts() map[category.Category]int {
	out := make(map[category.Category]int, len(category.All()))
	for _, c := range category.All() {
		out[c] = s.counts[c]
	}
	return out
}

// ResetIfStale zeroes every counter when today differs from the reset date.
// Returns true if a reset happened. Repeated calls for the same day are no-ops.
func (s *State) ResetIfStale(today Date) bool {
	if s.resetDate == today {
		return false
	}
	if s.counts == nil {
		s.counts = make(map[category.Category]int)
	}
	clear(s.counts)
	s.resetDate = today
	return true
}

// Increment bumps the counter for c.
func (s *State) Increment(c category.Category) {
	if s.counts == nil {
		s.counts = make(map[category.Category]int)
	}
	s.counts[c]++
}

// Decrement lowers the counter for c, never below zero.
func (s *State) Decrement(c category.Category) {
	if s.counts[c] > 0 {
		s.counts[c]--
	}
}

// Clone returns an independent copy.
func (s *State) Clone() State {
	return RestoreState(s.counts, s.resetDate)
}

// Reservation is a provisionally consumed unit of quota pending commit or rollback.
type Reservation struct {
	ID       string
	Category category.Category
	Date     Date // reset date the unit was taken against
}
