package ledger

import (
	"context"
	"log/slog"
	"time"
)

// Listener converts "transaction saved" events from the accounting
// system into budget log entries, one per line with a nonzero account.
type Listener struct {
	repo   Repository
	logger *slog.Logger
	clock  func() time.Time
}

// NewListener constructs the event adapter.
func NewListener(repo Repository, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		repo:   repo,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (l *Listener) WithClock(clock func() time.Time) {
	if l != nil && clock != nil {
		l.clock = clock
	}
}

// TransactionSaved records one log entry per event line. Lines without
// an account are skipped. A zero event date falls back to today. The
// date is normalized to a plain calendar date before storage. Returns
// the number of entries written.
func (l *Listener) TransactionSaved(ctx context.Context, event TransactionEvent) (int, error) {
	date := event.Date
	if date.IsZero() {
		date = l.clock()
	}
	date = dateOnly(date)

	written := 0
	for _, line := range event.Lines {
		if line.AccountID == 0 {
			continue
		}
		if _, err := l.repo.AddLog(ctx, LogEntry{
			TransactionID:   event.ID,
			AccountID:       line.AccountID,
			Amount:          line.Amount,
			TransactionDate: date,
		}); err != nil {
			return written, err
		}
		written++
	}
	l.logger.Debug("transaction logged",
		slog.Int("lines", written),
		slog.Time("date", date))
	return written, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
