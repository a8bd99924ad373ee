package usage

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
)

// --- Mock ---

type mockQuotaReader struct {
	limits map[category.Category]int
	used   map[category.Category]int
	date   domquota.Date
	loc    *time.Location
}

func (m *mockQuotaReader) Session() string               { return "s1" }
func (m *mockQuotaReader) Limit(c category.Category) int { return m.limits[c] }
func (m *mockQuotaReader) Used(c category.Category) int  { return m.used[c] }
func (m *mockQuotaReader) ResetDate() domquota.Date      { return m.date }
func (m *mockQuotaReader) Location() *time.Location      { return m.loc }
func (m *mockQuotaReader) RemainingForCategory(c category.Category) int {
	return m.limits[c] - m.used[c]
}

func newMockReader() *mockQuotaReader {
	return &mockQuotaReader{
		limits: map[category.Category]int{category.ShortForm: 3, category.LongForm: 2},
		used:   map[category.Category]int{category.ShortForm: 1, category.LongForm: 2},
		date:   domquota.Date{Year: 2024, Month: time.March, Day: 1},
		loc:    time.UTC,
	}
}

// --- Tests ---

func TestGetReport_AllCategories(t *testing.T) {
	r := New().GetReport(context.Background(), newMockReader())

	if r.Session() != "s1" {
		t.Errorf("expected session s1, got %q", r.Session())
	}
	if r.ResetDate() != "2024-03-01" {
		t.Errorf("expected reset date 2024-03-01, got %q", r.ResetDate())
	}
	want := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	if r.PeriodEnd() != want {
		t.Errorf("expected period end %d, got %d", want, r.PeriodEnd())
	}
	if len(r.Budgets()) != 2 {
		t.Fatalf("expected 2 budgets, got %d", len(r.Budgets()))
	}

	short, ok := r.Budget(category.ShortForm)
	if !ok {
		t.Fatal("expected short_form budget")
	}
	if short.Limit() != 3 || short.Used() != 1 || short.Remaining() != 2 {
		t.Errorf("unexpected short_form budget: limit=%d used=%d remaining=%d",
			short.Limit(), short.Used(), short.Remaining())
	}
	if short.IsExhausted() {
		t.Error("short_form should not be exhausted")
	}

	long, _ := r.Budget(category.LongForm)
	if !long.IsExhausted() {
		t.Error("long_form should be exhausted")
	}
	if long.ResetsAt() != want {
		t.Errorf("expected resets_at %d, got %d", want, long.ResetsAt())
	}
}

func TestGetReport_SingleCategory(t *testing.T) {
	r := New().GetReport(context.Background(), newMockReader(), category.LongForm)

	if len(r.Budgets()) != 1 {
		t.Fatalf("expected 1 budget, got %d", len(r.Budgets()))
	}
	if _, ok := r.Budget(category.ShortForm); ok {
		t.Error("short_form should not be in a long_form report")
	}
}

func TestGetReport_LocalMidnight(t *testing.T) {
	qr := newMockReader()
	qr.loc = time.FixedZone("IST", 5*3600+1800)

	r := New().GetReport(context.Background(), qr)

	want := time.Date(2024, 3, 2, 0, 0, 0, 0, qr.loc).UnixMilli()
	if r.PeriodEnd() != want {
		t.Errorf("expected next reset at local midnight %d, got %d", want, r.PeriodEnd())
	}
}
