package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence contract for reconciliation runs.
type Repository interface {
	ListLinesWithRange(ctx context.Context) ([]LineWithRange, error)
	SumLogs(ctx context.Context, accountID int64, start, end time.Time) (float64, error)
	UpsertAggregate(ctx context.Context, agg PeriodAggregate) error
	InsertSnapshot(ctx context.Context, snap VarianceSnapshot) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs the PostgreSQL-backed reconcile repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// ListLinesWithRange loads every budget line joined with its owning
// budget's date range.
func (r *repository) ListLinesWithRange(ctx context.Context) ([]LineWithRange, error) {
	const query = `
		SELECT b.id, l.id, l.account_id, l.amount, b.start_date, b.end_date
		FROM budget_lines l
		JOIN budgets b ON l.budget_id = b.id
		ORDER BY b.id, l.id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list lines: %w", err)
	}
	defer rows.Close()

	var lines []LineWithRange
	for rows.Next() {
		var line LineWithRange
		var amount pgtype.Numeric
		var start, end pgtype.Date
		if err := rows.Scan(&line.BudgetID, &line.LineID, &line.AccountID, &amount, &start, &end); err != nil {
			return nil, fmt.Errorf("reconcile: scan line: %w", err)
		}
		if amount.Valid {
			f, _ := amount.Float64Value()
			line.Budgeted = f.Float64
		}
		if start.Valid {
			line.Start = start.Time
		}
		if end.Valid {
			line.End = end.Time
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) SumLogs(ctx context.Context, accountID int64, start, end time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM budget_logs
		WHERE account_id = $1 AND transaction_date BETWEEN $2 AND $3`
	var sum float64
	if err := r.db.QueryRow(ctx, query, accountID, start, end).Scan(&sum); err != nil {
		return 0, fmt.Errorf("reconcile: sum logs: %w", err)
	}
	return sum, nil
}

// UpsertAggregate keeps at most one aggregate row per
// (budget_id, period_start, period_end).
func (r *repository) UpsertAggregate(ctx context.Context, agg PeriodAggregate) error {
	const query = `
		INSERT INTO budget_periods (budget_id, period_start, period_end, budgeted_amount, actual_amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (budget_id, period_start, period_end)
		DO UPDATE SET budgeted_amount = EXCLUDED.budgeted_amount,
		              actual_amount   = EXCLUDED.actual_amount`
	if _, err := r.db.Exec(ctx, query,
		agg.BudgetID, agg.PeriodStart, agg.PeriodEnd, agg.BudgetedAmount, agg.ActualAmount); err != nil {
		return fmt.Errorf("reconcile: upsert aggregate: %w", err)
	}
	return nil
}

// InsertSnapshot appends to the immutable variance history.
func (r *repository) InsertSnapshot(ctx context.Context, snap VarianceSnapshot) error {
	const query = `
		INSERT INTO budget_variances (budget_id, period_start, period_end, actual_amount, budgeted_amount, variance)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.Exec(ctx, query,
		snap.BudgetID, snap.PeriodStart, snap.PeriodEnd, snap.ActualAmount, snap.BudgetedAmount, snap.Variance); err != nil {
		return fmt.Errorf("reconcile: insert snapshot: %w", err)
	}
	return nil
}
