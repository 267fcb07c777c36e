package usage

import "github.com/kailas-cloud/nlquery/internal/domain"

// BudgetReader exposes the token counters of the generation budget.
type BudgetReader interface {
	Window(period domain.BudgetPeriod) domain.BudgetWindow
}
