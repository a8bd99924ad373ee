package usage

import (
	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/domain/usage/budget"
)

// Report is the daily quota status of one session.
type Report struct {
	session   string
	resetDate string // YYYY-MM-DD the counters were last zeroed
	periodEnd int64  // unix millis of the next reset
	budgets   []budget.Budget
}

// NewReport creates a usage report.
func NewReport(session, resetDate string, periodEnd int64, budgets []budget.Budget) Report {
	return Report{
		session:   session,
		resetDate: resetDate,
		periodEnd: periodEnd,
		budgets:   budgets,
	}
}

// Session returns the session the report belongs to.
func (r *Report) Session() string { return r.session }

// ResetDate returns the calendar date the counters were last zeroed.
func (r *Report) ResetDate() string { return r.resetDate }

// PeriodEnd returns the next reset timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Budgets returns per-category allowances in display order.
func (r *Report) Budgets() []budget.Budget { return r.budgets }

// Budget returns the allowance for c.
func (r *Report) Budget(c category.Category) (budget.Budget, bool) {
	for _, b := range r.budgets {
		if b.Category() == c {
			return b, true
		}
	}
	return budget.Budget{}, false
}
