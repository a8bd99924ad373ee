package usage

import (
	"testing"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/domain/usage/budget"
)

func TestNewReport(t *testing.T) {
	short := budget.New(category.ShortForm, 3, 1, 2, 1700000000000)
	long := budget.New(category.LongForm, 2, 2, 0, 1700000000000)

	r := NewReport("device-1", "2026-05-01", 1700000000000, []budget.Budget{short, long})

	if r.Session() != "device-1" {
		t.Errorf("Session() = %q", r.Session())
	}
	if r.ResetDate() != "2026-05-01" {
		t.Errorf("ResetDate() = %q", r.ResetDate())
	}
	if r.PeriodEnd() != 1700000000000 {
		t.Errorf("PeriodEnd() = %d", r.PeriodEnd())
	}
	if len(r.Budgets()) != 2 {
		t.Fatalf("Budgets() len = %d", len(r.Budgets()))
	}

	b, ok := r.Budget(category.LongForm)
	if !ok {
		t.Fatal("Budget(LongForm) not found")
	}
	if !b.IsExhausted() {
		t.Error("long form should be exhausted")
	}
	if _, ok := r.Budget("essay"); ok {
		t.Error("Budget(essay) should not be found")
	}
}
