package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/enle-erp/budgeting/internal/app"
	"github.com/enle-erp/budgeting/internal/budget"
	budgethttp "github.com/enle-erp/budgeting/internal/budget/http"
	"github.com/enle-erp/budgeting/internal/ledger"
	"github.com/enle-erp/budgeting/internal/platform/cache"
	"github.com/enle-erp/budgeting/internal/platform/db"
	"github.com/enle-erp/budgeting/internal/reconcile"
	reconcilehttp "github.com/enle-erp/budgeting/internal/reconcile/http"
	"github.com/enle-erp/budgeting/internal/report"
	reporthttp "github.com/enle-erp/budgeting/internal/report/http"
	"github.com/enle-erp/budgeting/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	budgetRepo := budget.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	budgetService := budget.NewService(budgetRepo, ledgerRepo, nil, cfg.DefaultCurrency, logger)
	reportService := report.NewService(budgetRepo, ledgerRepo, nil, nil, logger)

	lock := reconcile.NewRedisLock(redisClient, reconcile.LockKey(), cfg.ReconcileLockTTL)
	reconcileService := reconcile.NewService(reconcile.NewRepository(pool), lock, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		BudgetHandler:    budgethttp.NewHandler(logger, budgetService),
		ReportHandler:    reporthttp.NewHandler(logger, reportService),
		ReconcileHandler: reconcilehttp.NewHandler(logger, reconcileService),
		JobsHandler:      jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
