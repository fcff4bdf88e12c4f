// Package reporthttp exposes the aggregate fiscal-year report endpoint.
package reporthttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/enle-erp/budgeting/internal/budget"
	"github.com/enle-erp/budgeting/internal/platform/httpx"
	"github.com/enle-erp/budgeting/internal/report"
)

// Handler wires the report endpoint.
type Handler struct {
	logger  *slog.Logger
	service *report.Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *report.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/overview", h.overview)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	q := report.Query{
		FiscalYear: strings.TrimSpace(r.URL.Query().Get("fiscal_year")),
		Period:     strings.TrimSpace(r.URL.Query().Get("period")),
	}
	if q.FiscalYear == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "fiscal_year is required")
		return
	}
	if v := r.URL.Query().Get("department_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "department_id must be numeric")
			return
		}
		q.DepartmentID = &id
	}

	summary, err := h.service.Build(r.Context(), q)
	if err != nil {
		if errors.Is(err, budget.ErrFiscalYear) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("build report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
