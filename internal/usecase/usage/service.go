package usage

import (
	"context"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	domusage "github.com/kailas-cloud/studybuddy/internal/domain/usage"
	"github.com/kailas-cloud/studybuddy/internal/domain/usage/budget"
)

// Service handles usage reporting.
type Service struct{}

// New creates a Service.
func New() *Service {
	return &Service{}
}

// GetReport builds the daily quota report of the session behind qr.
// Categories is optional; empty means every category.
func (s *Service) GetReport(_ context.Context, qr QuotaReader, categories ...category.Category) domusage.Report {
	if len(categories) == 0 {
		categories = category.All()
	}

	resetDate := qr.ResetDate()
	resetsAt := resetDate.Next(qr.Location()).UnixMilli()

	budgets := make([]budget.Budget, 0, len(categories))
	for _, c := range categories {
		budgets = append(budgets, budget.New(
			c, qr.Limit(c), qr.Used(c), qr.RemainingForCategory(c), resetsAt,
		))
	}

	return domusage.NewReport(qr.Session(), resetDate.String(), resetsAt, budgets)
}
