// Package budget implements budget headers, lines and the variance math
// shared by the reconciler and the reporting engine.
package budget

import (
	"errors"
	"strings"
	"time"
)

// Status enumerates the budget lifecycle.
type Status string

const (
	// StatusDraft is the initial state for manually dated budgets.
	StatusDraft Status = "draft"
	// StatusAssigned marks budgets created from a fiscal-year alias.
	StatusAssigned Status = "assigned"
	// StatusActive marks budgets currently in force.
	StatusActive Status = "active"
	// StatusClosed marks budgets past their period.
	StatusClosed Status = "closed"
)

// Budget is a planned allocation over a fiscal date range.
// StartDate/EndDate are the single authoritative range; FiscalYear is
// only the alias the range was resolved from, kept for display.
type Budget struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	EntityType  string     `json:"entity_type"`
	EntityID    *int64     `json:"entity_id,omitempty"`
	FiscalYear  string     `json:"fiscal_year,omitempty"`
	Currency    string     `json:"currency"`
	Status      Status     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Lines       []Line     `json:"lines,omitempty"`
}

// Line is one account's planned amount within a budget.
type Line struct {
	ID         int64   `json:"id"`
	BudgetID   int64   `json:"budget_id"`
	AccountID  int64   `json:"account_id"`
	PeriodType string  `json:"period_type"`
	PeriodKey  string  `json:"period_key"`
	Amount     float64 `json:"amount"`
	Notes      string  `json:"notes"`
}

// LineInput carries line data for create/update. Amounts pass through
// unchecked; negative values are accepted at this layer.
type LineInput struct {
	AccountID  int64
	PeriodType string
	PeriodKey  string
	Amount     float64
	Notes      string
}

// CreateInput captures a budget creation request. Either an explicit
// StartDate/EndDate pair or a FiscalYear alias must be supplied.
type CreateInput struct {
	Title       string
	Description string
	EntityType  string
	EntityID    *int64
	Currency    string
	FiscalYear  string
	Status      Status
	StartDate   *time.Time
	EndDate     *time.Time
	Lines       []LineInput
	CreatedBy   int64
}

// Validate checks boundary invariants before any storage access.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrTitleRequired
	}
	if (in.StartDate == nil || in.EndDate == nil) && strings.TrimSpace(in.FiscalYear) == "" {
		return ErrRangeRequired
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return ErrRangeInverted
	}
	return nil
}

// UpdateInput captures a partial budget update. Nil fields are left
// untouched. A non-nil Lines slice replaces the whole line set.
type UpdateInput struct {
	Title       *string
	Description *string
	FiscalYear  *string
	Status      *Status
	StartDate   *time.Time
	EndDate     *time.Time
	Lines       []LineInput
}

// Validate rejects updates that would corrupt the date range.
func (in UpdateInput) Validate() error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return ErrTitleRequired
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return ErrRangeInverted
	}
	return nil
}

// ListFilter narrows ListBudgets. Date fields select budgets whose
// range overlaps [StartDate, EndDate], not exact matches.
type ListFilter struct {
	EntityType string
	EntityID   *int64
	StartDate  *time.Time
	EndDate    *time.Time
}

var (
	// ErrNotFound occurs when a budget id does not exist.
	ErrNotFound = errors.New("budget: not found")
	// ErrTitleRequired occurs when a mutating request omits the title.
	ErrTitleRequired = errors.New("budget: title is required")
	// ErrRangeRequired occurs when neither dates nor fiscal year are given.
	ErrRangeRequired = errors.New("budget: start and end dates are required, or provide fiscal_year")
	// ErrRangeInverted occurs when end date precedes start date.
	ErrRangeInverted = errors.New("budget: end date precedes start date")
	// ErrFiscalYear occurs when the fiscal year alias cannot be parsed.
	ErrFiscalYear = errors.New("budget: invalid fiscal year")
)
