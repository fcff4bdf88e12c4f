package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	budgethttp "github.com/enle-erp/budgeting/internal/budget/http"
	reconcilehttp "github.com/enle-erp/budgeting/internal/reconcile/http"
	reporthttp "github.com/enle-erp/budgeting/internal/report/http"
	"github.com/enle-erp/budgeting/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	BudgetHandler    *budgethttp.Handler
	ReportHandler    *reporthttp.Handler
	ReconcileHandler *reconcilehttp.Handler
	JobsHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.BudgetHandler != nil {
		params.BudgetHandler.MountRoutes(r)
	}
	if params.ReportHandler != nil {
		params.ReportHandler.MountRoutes(r)
	}
	if params.ReconcileHandler != nil {
		params.ReconcileHandler.MountRoutes(r)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
