// Package reconcile refreshes stored period aggregates and appends
// variance snapshots from ledger log activity.
package reconcile

import "time"

// LineWithRange joins a budget line with its owning budget's range.
type LineWithRange struct {
	BudgetID  int64
	LineID    int64
	AccountID int64
	Budgeted  float64
	Start     time.Time
	End       time.Time
}

// PeriodAggregate is the latest reconciliation snapshot for a period.
// At most one row exists per (budget, period_start, period_end).
type PeriodAggregate struct {
	ID             int64     `json:"id"`
	BudgetID       int64     `json:"budget_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	BudgetedAmount float64   `json:"budgeted_amount"`
	ActualAmount   float64   `json:"actual_amount"`
}

// VarianceSnapshot is the append-only audit row written on every run,
// changed values or not.
type VarianceSnapshot struct {
	ID             int64     `json:"id"`
	BudgetID       int64     `json:"budget_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	ActualAmount   float64   `json:"actual_amount"`
	BudgetedAmount float64   `json:"budgeted_amount"`
	Variance       float64   `json:"variance"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunResult reports what a reconciliation pass did.
type RunResult struct {
	// Skipped is true when another run held the lock; nothing was done
	// and that is not an error.
	Skipped   bool          `json:"skipped"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"-"`
}
