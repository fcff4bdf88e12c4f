package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the storage contract the budget service depends on.
// The core depends only on these signatures, not on a storage engine.
type Repository interface {
	InsertBudget(ctx context.Context, b Budget) (int64, error)
	UpdateBudget(ctx context.Context, id int64, fields map[string]any) (bool, error)
	GetBudget(ctx context.Context, id int64) (Budget, error)
	DeleteBudget(ctx context.Context, id int64) error
	ListBudgets(ctx context.Context, filter ListFilter) ([]Budget, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	LinesByBudget(ctx context.Context, budgetID int64) ([]Line, error)
	DeleteLinesByBudget(ctx context.Context, budgetID int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs the PostgreSQL-backed budget repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const budgetColumns = `id, title, description, entity_type, entity_id, fiscal_year,
       currency, status, start_date, end_date, created_by, created_at, updated_at`

func (r *repository) InsertBudget(ctx context.Context, b Budget) (int64, error) {
	const query = `
		INSERT INTO budgets (title, description, entity_type, entity_id, fiscal_year,
		                     currency, status, start_date, end_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	var entityID pgtype.Int8
	if b.EntityID != nil {
		entityID = pgtype.Int8{Int64: *b.EntityID, Valid: true}
	}
	var id int64
	err := r.db.QueryRow(ctx, query,
		b.Title, b.Description, b.EntityType, entityID, b.FiscalYear,
		b.Currency, string(b.Status), b.StartDate, b.EndDate, b.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("budget: insert: %w", err)
	}
	return id, nil
}

// UpdateBudget applies the given column set. It reports whether any row
// was touched; a zero-rows update is the caller's signal for not-found.
func (r *repository) UpdateBudget(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}
	query := "UPDATE budgets SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, column := range []string{"title", "description", "fiscal_year", "status", "start_date", "end_date"} {
		if v, ok := fields[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("budget: update: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) GetBudget(ctx context.Context, id int64) (Budget, error) {
	query := fmt.Sprintf(`SELECT %s FROM budgets WHERE id = $1`, budgetColumns)
	b, err := scanBudget(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrNotFound
		}
		return Budget{}, fmt.Errorf("budget: get: %w", err)
	}
	return b, nil
}

func (r *repository) DeleteBudget(ctx context.Context, id int64) error {
	// Lines go first; the budget owns them exclusively.
	if err := r.DeleteLinesByBudget(ctx, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("budget: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ListBudgets(ctx context.Context, filter ListFilter) ([]Budget, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argPos))
		args = append(args, filter.EntityType)
		argPos++
	}
	if filter.EntityID != nil {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", argPos))
		args = append(args, *filter.EntityID)
		argPos++
	}
	// Overlap test: a budget matches when its range intersects the
	// filter window, not when the bounds are equal.
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("end_date >= $%d", argPos))
		args = append(args, *filter.StartDate)
		argPos++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", argPos))
		args = append(args, *filter.EndDate)
		argPos++
	}

	query := fmt.Sprintf(`SELECT %s FROM budgets`, budgetColumns)
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			query += " AND " + conditions[i]
		}
	}
	query += " ORDER BY start_date, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("budget: list: %w", err)
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("budget: list scan: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *repository) InsertLine(ctx context.Context, line Line) (int64, error) {
	const query = `
		INSERT INTO budget_lines (budget_id, account_id, period_type, period_key, amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		line.BudgetID, line.AccountID, line.PeriodType, line.PeriodKey, line.Amount, line.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("budget: insert line: %w", err)
	}
	return id, nil
}

func (r *repository) LinesByBudget(ctx context.Context, budgetID int64) ([]Line, error) {
	const query = `
		SELECT id, budget_id, account_id, period_type, period_key, amount, notes
		FROM budget_lines
		WHERE budget_id = $1
		ORDER BY id`
	rows, err := r.db.Query(ctx, query, budgetID)
	if err != nil {
		return nil, fmt.Errorf("budget: lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		var amount pgtype.Numeric
		if err := rows.Scan(&line.ID, &line.BudgetID, &line.AccountID,
			&line.PeriodType, &line.PeriodKey, &amount, &line.Notes); err != nil {
			return nil, fmt.Errorf("budget: lines scan: %w", err)
		}
		if amount.Valid {
			f, _ := amount.Float64Value()
			line.Amount = f.Float64
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) DeleteLinesByBudget(ctx context.Context, budgetID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM budget_lines WHERE budget_id = $1`, budgetID); err != nil {
		return fmt.Errorf("budget: delete lines: %w", err)
	}
	return nil
}

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	var entityID pgtype.Int8
	var fiscalYear, description pgtype.Text
	var startDate, endDate pgtype.Date
	var createdAt, updatedAt pgtype.Timestamptz
	var status string

	err := row.Scan(&b.ID, &b.Title, &description, &b.EntityType, &entityID, &fiscalYear,
		&b.Currency, &status, &startDate, &endDate, &b.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return Budget{}, err
	}

	b.Status = Status(status)
	if description.Valid {
		b.Description = description.String
	}
	if entityID.Valid {
		v := entityID.Int64
		b.EntityID = &v
	}
	if fiscalYear.Valid {
		b.FiscalYear = fiscalYear.String
	}
	if startDate.Valid {
		b.StartDate = startDate.Time
	}
	if endDate.Valid {
		b.EndDate = endDate.Time
	}
	if createdAt.Valid {
		b.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		b.UpdatedAt = updatedAt.Time
	}
	return b, nil
}
