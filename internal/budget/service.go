package budget

import (
	"context"
	"log/slog"
	"time"
)

// LogSource sums ledger log activity for an account over a date range.
// Implemented by the ledger package; injected so the budget-vs-actual
// report computes actuals fresh from the append log.
type LogSource interface {
	SumForPeriod(ctx context.Context, accountID int64, start, end time.Time) (float64, error)
}

// Service coordinates budget CRUD and the per-budget report.
type Service struct {
	repo            Repository
	logs            LogSource
	fiscalPeriods   FiscalPeriodSource
	defaultCurrency string
	logger          *slog.Logger
	now             func() time.Time
}

// NewService builds the service. fiscalPeriods may be nil; resolution
// then falls back to calendar years.
func NewService(repo Repository, logs LogSource, fiscalPeriods FiscalPeriodSource, defaultCurrency string, logger *slog.Logger) *Service {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:            repo,
		logs:            logs,
		fiscalPeriods:   fiscalPeriods,
		defaultCurrency: defaultCurrency,
		logger:          logger,
		now:             time.Now,
	}
}

// Create validates the input, resolves the fiscal range once, stores
// the budget and inserts its lines.
func (s *Service) Create(ctx context.Context, input CreateInput) (int64, error) {
	if err := input.Validate(); err != nil {
		return 0, err
	}

	b := Budget{
		Title:       input.Title,
		Description: input.Description,
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		FiscalYear:  input.FiscalYear,
		Currency:    input.Currency,
		Status:      input.Status,
		CreatedBy:   input.CreatedBy,
	}
	if b.EntityType == "" {
		b.EntityType = "global"
	}
	if b.Currency == "" {
		b.Currency = s.defaultCurrency
	}

	if input.StartDate != nil && input.EndDate != nil {
		b.StartDate = *input.StartDate
		b.EndDate = *input.EndDate
	} else {
		start, end, err := ResolveFiscalRange(ctx, s.fiscalPeriods, input.FiscalYear)
		if err != nil {
			return 0, err
		}
		b.StartDate = start
		b.EndDate = end
	}

	if b.Status == "" {
		// Budgets bound to a fiscal year start out assigned; manually
		// dated ones stay draft until someone promotes them.
		b.Status = StatusDraft
		if input.FiscalYear != "" {
			b.Status = StatusAssigned
		}
	}

	id, err := s.repo.InsertBudget(ctx, b)
	if err != nil {
		return 0, err
	}

	for _, line := range input.Lines {
		if _, err := s.repo.InsertLine(ctx, Line{
			BudgetID:   id,
			AccountID:  line.AccountID,
			PeriodType: line.PeriodType,
			PeriodKey:  line.PeriodKey,
			Amount:     line.Amount,
			Notes:      line.Notes,
		}); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Update applies partial metadata changes. A non-nil Lines slice
// replaces the complete line set; existing lines are never merged.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetBudget(ctx, id); err != nil {
		return err
	}

	fields := map[string]any{}
	if input.Title != nil {
		fields["title"] = *input.Title
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.StartDate != nil {
		fields["start_date"] = *input.StartDate
	}
	if input.EndDate != nil {
		fields["end_date"] = *input.EndDate
	}
	if input.FiscalYear != nil && (input.StartDate == nil || input.EndDate == nil) {
		start, end, err := ResolveFiscalRange(ctx, s.fiscalPeriods, *input.FiscalYear)
		if err != nil {
			return err
		}
		fields["fiscal_year"] = *input.FiscalYear
		fields["start_date"] = start
		fields["end_date"] = end
	}
	if input.Status != nil {
		fields["status"] = string(*input.Status)
	} else if input.FiscalYear != nil {
		fields["status"] = string(StatusAssigned)
	}

	if len(fields) > 0 {
		updated, err := s.repo.UpdateBudget(ctx, id, fields)
		if err != nil {
			return err
		}
		if !updated {
			// Zero rows touched after a successful Get means the row
			// vanished underneath us. Treat as not-found, not a crash.
			s.logger.Warn("budget update touched no rows", slog.Int64("budget_id", id))
			return ErrNotFound
		}
	}

	if input.Lines != nil {
		if err := s.repo.DeleteLinesByBudget(ctx, id); err != nil {
			return err
		}
		for _, line := range input.Lines {
			if _, err := s.repo.InsertLine(ctx, Line{
				BudgetID:   id,
				AccountID:  line.AccountID,
				PeriodType: line.PeriodType,
				PeriodKey:  line.PeriodKey,
				Amount:     line.Amount,
				Notes:      line.Notes,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetWithLines loads one budget and its full line set.
func (s *Service) GetWithLines(ctx context.Context, id int64) (Budget, error) {
	b, err := s.repo.GetBudget(ctx, id)
	if err != nil {
		return Budget{}, err
	}
	lines, err := s.repo.LinesByBudget(ctx, id)
	if err != nil {
		return Budget{}, err
	}
	b.Lines = lines
	return b, nil
}

// Delete removes a budget and cascades to its lines.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteBudget(ctx, id)
}

// List returns budgets matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Budget, error) {
	return s.repo.ListBudgets(ctx, filter)
}

// VsActualLine is one account row of the budget-vs-actual report.
type VsActualLine struct {
	LineID      int64    `json:"line_id"`
	AccountID   int64    `json:"account_id"`
	Budgeted    float64  `json:"budgeted"`
	Actual      float64  `json:"actual"`
	Variance    float64  `json:"variance"`
	VariancePct *float64 `json:"variance_pct"`
}

// VsActualTotals sums the report lines.
type VsActualTotals struct {
	Budgeted float64 `json:"budgeted"`
	Actual   float64 `json:"actual"`
	Variance float64 `json:"variance"`
}

// VsActualReport is the per-budget line breakdown with totals.
type VsActualReport struct {
	BudgetID    int64          `json:"budget_id"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	Lines       []VsActualLine `json:"lines"`
	Totals      VsActualTotals `json:"totals"`
}

// VsActual compares a single budget's lines against ledger log activity
// over the given range; nil bounds default to the budget's own range.
func (s *Service) VsActual(ctx context.Context, budgetID int64, start, end *time.Time) (VsActualReport, error) {
	b, err := s.GetWithLines(ctx, budgetID)
	if err != nil {
		return VsActualReport{}, err
	}

	report := VsActualReport{
		BudgetID:    budgetID,
		PeriodStart: b.StartDate,
		PeriodEnd:   b.EndDate,
		Lines:       make([]VsActualLine, 0, len(b.Lines)),
	}
	if start != nil {
		report.PeriodStart = *start
	}
	if end != nil {
		report.PeriodEnd = *end
	}

	for _, line := range b.Lines {
		actual, err := s.logs.SumForPeriod(ctx, line.AccountID, report.PeriodStart, report.PeriodEnd)
		if err != nil {
			return VsActualReport{}, err
		}
		calc := CalculateVariance(actual, line.Amount)
		report.Lines = append(report.Lines, VsActualLine{
			LineID:      line.ID,
			AccountID:   line.AccountID,
			Budgeted:    line.Amount,
			Actual:      actual,
			Variance:    calc.Variance,
			VariancePct: calc.VariancePct,
		})
		report.Totals.Budgeted += line.Amount
		report.Totals.Actual += actual
	}
	report.Totals.Variance = report.Totals.Actual - report.Totals.Budgeted
	return report, nil
}
