package domain

// BudgetPeriod is the window a token counter covers.
type BudgetPeriod string

// Budget windows.
const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// BudgetWindow is a point-in-time view of one token counter.
// Limit 0 means unlimited; Remaining is then -1.
type BudgetWindow struct {
	Limit     int64
	Used      int64
	Remaining int64
}
