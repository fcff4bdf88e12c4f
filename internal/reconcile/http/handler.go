// Package reconcilehttp exposes the manual reconciliation trigger.
package reconcilehttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/enle-erp/budgeting/internal/platform/httpx"
	"github.com/enle-erp/budgeting/internal/reconcile"
)

// Runner runs one reconciliation pass; implemented by the reconcile
// service. The manual trigger uses the identical algorithm as the
// scheduled job, synchronously.
type Runner interface {
	Run(ctx context.Context) (reconcile.RunResult, error)
}

// Handler wires the manual trigger endpoint.
type Handler struct {
	logger *slog.Logger
	runner Runner
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, runner Runner) *Handler {
	return &Handler{logger: logger, runner: runner}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reconcile", h.trigger)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("manual reconcile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if result.Skipped {
		// Contention is a silent success, not an error.
		httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "skipped"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"processed": result.Processed,
		"failed":    result.Failed,
	})
}
