package quota

import (
	"testing"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
)

func TestDateOf_TimeZone(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC) // 01:30 next day in IST

	if got := DateOf(ts, time.UTC); got.String() != "2026-03-09" {
		t.Errorf("UTC date = %s", got)
	}
	if got := DateOf(ts, kolkata); got.String() != "2026-03-10" {
		t.Errorf("IST date = %s", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-12-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != (Date{Year: 2026, Month: time.December, Day: 31}) {
		t.Errorf("ParseDate = %+v", d)
	}
	if next := d.Next(time.UTC); !next.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Next = %s", next)
	}

	if _, err := ParseDate("31/12/2026"); err == nil {
		t.Error("expected error for bad layout")
	}
}

func TestNewLimits(t *testing.T) {
	l, err := NewLimits(map[category.Category]int{category.ShortForm: 5, category.LongForm: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Limit(category.ShortForm) != 5 || l.Limit(category.LongForm) != 1 {
		t.Errorf("limits = %d/%d", l.Limit(category.ShortForm), l.Limit(category.LongForm))
	}

	bad := []map[category.Category]int{
		{category.ShortForm: 3},
		{category.ShortForm: 3, category.LongForm: 0},
		{category.ShortForm: -1, category.LongForm: 2},
		{category.ShortForm: 3, category.LongForm: 2, "essay": 1},
	}
	for i, caps := range bad {
		if _, err := NewLimits(caps); err == nil {
			t.Errorf("case %d: expected error for %v", i, caps)
		}
	}
}

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	if l.Limit(category.ShortForm) != 3 || l.Limit(category.LongForm) != 2 {
		t.Errorf("defaults = %d/%d", l.Limit(category.ShortForm), l.Limit(category.LongForm))
	}
}

func TestState_ResetIfStale(t *testing.T) {
	day1 := Date{Year: 2026, Month: time.May, Day: 1}
	day2 := Date{Year: 2026, Month: time.May, Day: 2}

	s := NewState(day1)
	s.Increment(category.ShortForm)
	s.Increment(category.LongForm)

	if s.ResetIfStale(day1) {
		t.Error("same day must not reset")
	}
	if s.Count(category.ShortForm) != 1 {
		t.Errorf("count = %d", s.Count(category.ShortForm))
	}

	if !s.ResetIfStale(day2) {
		t.Error("expected reset on new day")
	}
	if s.ResetIfStale(day2) {
		t.Error("second reset on the same day must be a no-op")
	}
	if s.Count(category.ShortForm) != 0 || s.Count(category.LongForm) != 0 {
		t.Errorf("counts after reset = %v", s.Counts())
	}
	if s.ResetDate() != day2 {
		t.Errorf("reset date = %s", s.ResetDate())
	}
}

func TestState_DecrementFloor(t *testing.T) {
	s := NewState(Date{Year: 2026, Month: time.May, Day: 1})
	s.Decrement(category.ShortForm)
	if s.Count(category.ShortForm) != 0 {
		t.Errorf("count = %d, want 0", s.Count(category.ShortForm))
	}
}

func TestRestoreState_ClampsAndClones(t *testing.T) {
	d := Date{Year: 2026, Month: time.May, Day: 1}
	s := RestoreState(map[category.Category]int{category.ShortForm: -4, category.LongForm: 2, "x": 9}, d)

	counts := s.Counts()
	if counts[category.ShortForm] != 0 || counts[category.LongForm] != 2 {
		t.Errorf("counts = %v", counts)
	}
	if _, ok := counts["x"]; ok {
		t.Error("unknown category leaked into counts")
	}

	c := s.Clone()
	c.Increment(category.LongForm)
	if s.Count(category.LongForm) != 2 {
		t.Error("clone shares counters with original")
	}
}
