package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// Service executes reconciliation passes under the mutual-exclusion
// lock. The scheduler and the manual trigger both call Run; there is
// no separate fast path.
type Service struct {
	repo   Repository
	locker Locker
	logger *slog.Logger
	clock  func() time.Time
}

// NewService builds the reconciler.
func NewService(repo Repository, locker Locker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if s != nil && clock != nil {
		s.clock = clock
	}
}

// Run refreshes period aggregates and appends variance snapshots for
// every budget line. When the lock is already held the run is skipped
// entirely; contention is a silent no-op, never an error. A failing
// line is logged and does not abort the remaining lines.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	acquired, err := s.locker.Acquire(ctx)
	if err != nil {
		return RunResult{}, err
	}
	if !acquired {
		s.logger.Info("reconcile run skipped, lock held elsewhere")
		return RunResult{Skipped: true}, nil
	}
	defer func() {
		if err := s.locker.Release(ctx); err != nil {
			// The TTL still bounds how long a missed release can block.
			s.logger.Warn("release reconcile lock", slog.Any("error", err))
		}
	}()

	start := s.clock()
	lines, err := s.repo.ListLinesWithRange(ctx)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{}
	for _, line := range lines {
		if err := s.reconcileLine(ctx, line); err != nil {
			result.Failed++
			s.logger.Error("reconcile line",
				slog.Int64("budget_id", line.BudgetID),
				slog.Int64("line_id", line.LineID),
				slog.Int64("account_id", line.AccountID),
				slog.Any("error", err))
			continue
		}
		result.Processed++
	}
	result.Duration = s.clock().Sub(start)

	s.logger.Info("reconcile run complete",
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration))
	return result, nil
}

func (s *Service) reconcileLine(ctx context.Context, line LineWithRange) error {
	actual, err := s.repo.SumLogs(ctx, line.AccountID, line.Start, line.End)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertAggregate(ctx, PeriodAggregate{
		BudgetID:       line.BudgetID,
		PeriodStart:    line.Start,
		PeriodEnd:      line.End,
		BudgetedAmount: line.Budgeted,
		ActualAmount:   actual,
	}); err != nil {
		return err
	}

	// Snapshots append on every run regardless of change; they are the
	// audit trail, the aggregate is the mutable view.
	return s.repo.InsertSnapshot(ctx, VarianceSnapshot{
		BudgetID:       line.BudgetID,
		PeriodStart:    line.Start,
		PeriodEnd:      line.End,
		ActualAmount:   actual,
		BudgetedAmount: line.Budgeted,
		Variance:       actual - line.Budgeted,
	})
}
