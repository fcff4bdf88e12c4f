package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists and reads the budget log table.
type Repository interface {
	AddLog(ctx context.Context, entry LogEntry) (int64, error)
	LogsForPeriod(ctx context.Context, accountID int64, start, end time.Time) ([]LogEntry, error)
	SumForPeriod(ctx context.Context, accountID int64, start, end time.Time) (float64, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs the PostgreSQL-backed log repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) AddLog(ctx context.Context, entry LogEntry) (int64, error) {
	const query = `
		INSERT INTO budget_logs (transaction_id, account_id, amount, transaction_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var trxID pgtype.Int8
	if entry.TransactionID != nil {
		trxID = pgtype.Int8{Int64: *entry.TransactionID, Valid: true}
	}
	var id int64
	err := r.db.QueryRow(ctx, query, trxID, entry.AccountID, entry.Amount, entry.TransactionDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: add log: %w", err)
	}
	return id, nil
}

func (r *repository) LogsForPeriod(ctx context.Context, accountID int64, start, end time.Time) ([]LogEntry, error) {
	const query = `
		SELECT id, transaction_id, account_id, amount, transaction_date, created_at
		FROM budget_logs
		WHERE account_id = $1 AND transaction_date BETWEEN $2 AND $3
		ORDER BY transaction_date, id`
	rows, err := r.db.Query(ctx, query, accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("ledger: logs for period: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var entry LogEntry
		var trxID pgtype.Int8
		var amount pgtype.Numeric
		var txDate pgtype.Date
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&entry.ID, &trxID, &entry.AccountID, &amount, &txDate, &createdAt); err != nil {
			return nil, fmt.Errorf("ledger: scan log: %w", err)
		}
		if trxID.Valid {
			v := trxID.Int64
			entry.TransactionID = &v
		}
		if amount.Valid {
			f, _ := amount.Float64Value()
			entry.Amount = f.Float64
		}
		if txDate.Valid {
			entry.TransactionDate = txDate.Time
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SumForPeriod totals postings for an account inside [start, end],
// bounds inclusive.
func (r *repository) SumForPeriod(ctx context.Context, accountID int64, start, end time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM budget_logs
		WHERE account_id = $1 AND transaction_date BETWEEN $2 AND $3`
	var sum float64
	if err := r.db.QueryRow(ctx, query, accountID, start, end).Scan(&sum); err != nil {
		return 0, fmt.Errorf("ledger: sum for period: %w", err)
	}
	return sum, nil
}
