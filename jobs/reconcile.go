package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/enle-erp/budgeting/internal/reconcile"
)

// TaskBudgetReconcile schedules the budget reconciliation routine.
const TaskBudgetReconcile = "budget:reconcile"

// Reconciler describes the behaviour required to refresh period
// aggregates and variance snapshots.
type Reconciler interface {
	Run(ctx context.Context) (reconcile.RunResult, error)
}

// ReconcileJob coordinates the scheduled reconciliation workflow.
type ReconcileJob struct {
	Service Reconciler
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewReconcileJob constructs the job handler.
func NewReconcileJob(service Reconciler, logger *slog.Logger) *ReconcileJob {
	return &ReconcileJob{
		Service: service,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewReconcileTask creates an Asynq task for a reconciliation pass.
// The task carries no payload; a run always covers every budget line.
func NewReconcileTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskBudgetReconcile, nil, asynq.Queue(QueueDefault)), nil
}

// Handle executes the reconciliation job.
func (j *ReconcileJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("budget reconcile: dependencies not configured")
	}

	start := j.now()
	result, err := j.Service.Run(ctx)
	if err != nil {
		j.log().Error("reconcile run", slog.Any("error", err))
		return err
	}
	if result.Skipped {
		// Another run holds the lock; the cron will fire again.
		j.log().Info("reconcile skipped, lock held")
		return nil
	}

	j.log().Info("reconcile finished",
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ReconcileJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBudgetReconcile))
	}
	return slog.Default().With(slog.String("job", TaskBudgetReconcile))
}

func (j *ReconcileJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *ReconcileJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
