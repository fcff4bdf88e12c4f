// Package report answers aggregate budget-vs-actual queries for a
// fiscal year, quarter and department.
package report

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/enle-erp/budgeting/internal/budget"
)

// DepartmentEntityType scopes budgets to departments in the store's
// entity columns.
const DepartmentEntityType = "department"

// defaultCurrency is used when no currency provider is configured.
const defaultCurrency = "USD"

// Query selects the report scope. FiscalYear is required; Period is
// one of Q1..Q4 or empty for the whole year; DepartmentID narrows to
// budgets scoped to that department.
type Query struct {
	FiscalYear   string
	Period       string
	DepartmentID *int64
}

// Summary is the single aggregate the report returns: no line-by-line
// breakdown, one budget/actual/variance triple for the whole scope.
type Summary struct {
	BudgetAmount       float64 `json:"budget_amount"`
	ActualAmount       float64 `json:"actual_amount"`
	Variance           float64 `json:"variance"`
	VariancePercentage float64 `json:"variance_percentage"`
	Currency           string  `json:"currency"`
	CurrencySymbol     string  `json:"currency_symbol"`
}

// BudgetStore is the slice of the budget repository the report reads.
type BudgetStore interface {
	ListBudgets(ctx context.Context, filter budget.ListFilter) ([]budget.Budget, error)
	LinesByBudget(ctx context.Context, budgetID int64) ([]budget.Line, error)
}

// LogSource sums ledger log activity; the fallback actuals source.
type LogSource interface {
	SumForPeriod(ctx context.Context, accountID int64, start, end time.Time) (float64, error)
}

// Service builds fiscal-year report summaries.
type Service struct {
	budgets  BudgetStore
	logs     LogSource
	balances BalanceProvider
	currency CurrencyProvider
	logger   *slog.Logger
}

// NewService builds the report engine. balances and currency may be
// nil; both degrade to documented fallbacks.
func NewService(budgets BudgetStore, logs LogSource, balances BalanceProvider, currency CurrencyProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		budgets:  budgets,
		logs:     logs,
		balances: balances,
		currency: currency,
		logger:   logger,
	}
}

// Build aggregates budgeted and actual amounts for every budget whose
// range overlaps the queried period.
func (s *Service) Build(ctx context.Context, q Query) (Summary, error) {
	start, end, err := budget.QuarterRange(q.FiscalYear, q.Period)
	if err != nil {
		return Summary{}, err
	}

	code, symbol := s.resolveCurrency(ctx)

	filter := budget.ListFilter{StartDate: &start, EndDate: &end}
	if q.DepartmentID != nil {
		filter.EntityType = DepartmentEntityType
		filter.EntityID = q.DepartmentID
	}
	budgets, err := s.budgets.ListBudgets(ctx, filter)
	if err != nil {
		return Summary{}, err
	}

	balances := s.fetchBalances(ctx, start, end)

	var totalBudget, totalActual float64
	for _, b := range budgets {
		lines, err := s.budgets.LinesByBudget(ctx, b.ID)
		if err != nil {
			return Summary{}, err
		}
		for _, line := range lines {
			totalBudget += line.Amount

			if line.AccountID == 0 {
				continue
			}
			if balances != nil {
				// The provider answered for the whole range: a missing
				// account contributes zero, the log fallback does not
				// apply per account.
				totalActual += balances[line.AccountID]
				continue
			}
			actual, err := s.logs.SumForPeriod(ctx, line.AccountID, start, end)
			if err != nil {
				return Summary{}, err
			}
			totalActual += actual
		}
	}

	variance := totalActual - totalBudget
	// Zero-budget reports answer 0%, unlike the calculator's nil
	// convention. Two contracts, both deliberate.
	variancePct := 0.0
	if totalBudget != 0 {
		variancePct = (variance / totalBudget) * 100.0
	}

	return Summary{
		BudgetAmount:       totalBudget,
		ActualAmount:       totalActual,
		Variance:           variance,
		VariancePercentage: variancePct,
		Currency:           code,
		CurrencySymbol:     symbol,
	}, nil
}

// fetchBalances asks the external provider once for the whole range.
// A nil provider, an error or an empty answer all mean "no provider":
// the caller then falls back to ledger log sums.
func (s *Service) fetchBalances(ctx context.Context, start, end time.Time) map[int64]float64 {
	if s.balances == nil {
		return nil
	}
	tb, err := s.balances.TrialBalance(ctx, start, end)
	if err != nil {
		s.logger.Warn("trial balance provider unavailable, using ledger logs", slog.Any("error", err))
		return nil
	}
	flat := tb.Flatten()
	if len(flat) == 0 {
		return nil
	}
	return flat
}

func (s *Service) resolveCurrency(ctx context.Context) (string, string) {
	code := defaultCurrency
	if s.currency != nil {
		if c, err := s.currency.Currency(ctx); err == nil && strings.TrimSpace(c) != "" {
			code = c
		} else if err != nil {
			s.logger.Warn("currency provider unavailable, using default", slog.Any("error", err))
		}
	}
	if s.currency != nil {
		if sym, err := s.currency.CurrencySymbol(ctx, code); err == nil && sym != "" {
			return code, sym
		}
	}
	return code, DefaultSymbol(code)
}
