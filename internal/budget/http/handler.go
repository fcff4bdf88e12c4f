// Package budgethttp exposes the budget CRUD and per-budget report
// endpoints.
package budgethttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/enle-erp/budgeting/internal/budget"
	"github.com/enle-erp/budgeting/internal/platform/httpx"
)

// Handler wires the budget REST endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *budget.Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *budget.Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/budgets", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	r.Get("/reports/budget-vs-actual", h.budgetVsActual)
}

type lineRequest struct {
	AccountID  int64   `json:"account_id" validate:"required"`
	PeriodType string  `json:"period_type"`
	PeriodKey  string  `json:"period_key"`
	Amount     float64 `json:"amount"`
	Notes      string  `json:"notes"`
}

type createRequest struct {
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	EntityType  string        `json:"entity_type"`
	EntityID    *int64        `json:"entity_id"`
	Currency    string        `json:"currency" validate:"omitempty,len=3"`
	FiscalYear  string        `json:"fiscal_year"`
	Status      string        `json:"status"`
	StartDate   string        `json:"start_date"`
	EndDate     string        `json:"end_date"`
	Lines       []lineRequest `json:"lines"`
}

type updateRequest struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	FiscalYear  *string       `json:"fiscal_year"`
	Status      *string       `json:"status"`
	StartDate   *string       `json:"start_date"`
	EndDate     *string       `json:"end_date"`
	Lines       []lineRequest `json:"lines"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := budget.ListFilter{
		EntityType: r.URL.Query().Get("entity_type"),
	}
	if v := r.URL.Query().Get("entity_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entity_id must be numeric")
			return
		}
		filter.EntityID = &id
	}
	if t, ok := h.parseOptionalDate(w, r.URL.Query().Get("start_date"), "start_date"); !ok {
		return
	} else if t != nil {
		filter.StartDate = t
	}
	if t, ok := h.parseOptionalDate(w, r.URL.Query().Get("end_date"), "end_date"); !ok {
		return
	} else if t != nil {
		filter.EndDate = t
	}

	budgets, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if budgets == nil {
		budgets = []budget.Budget{}
	}
	httpx.JSON(w, http.StatusOK, budgets)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	b, err := h.service.GetWithLines(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	input := budget.CreateInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Currency:    strings.ToUpper(req.Currency),
		FiscalYear:  strings.TrimSpace(req.FiscalYear),
		Status:      budget.Status(req.Status),
		Lines:       mapLines(req.Lines),
	}
	if t, ok := h.parseOptionalDate(w, req.StartDate, "start_date"); !ok {
		return
	} else {
		input.StartDate = t
	}
	if t, ok := h.parseOptionalDate(w, req.EndDate, "end_date"); !ok {
		return
	} else {
		input.EndDate = t
	}

	id, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}

	input := budget.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		FiscalYear:  req.FiscalYear,
	}
	if req.Status != nil {
		status := budget.Status(*req.Status)
		input.Status = &status
	}
	if req.StartDate != nil {
		if t, ok := h.parseOptionalDate(w, *req.StartDate, "start_date"); !ok {
			return
		} else {
			input.StartDate = t
		}
	}
	if req.EndDate != nil {
		if t, ok := h.parseOptionalDate(w, *req.EndDate, "end_date"); !ok {
			return
		} else {
			input.EndDate = t
		}
	}
	if req.Lines != nil {
		input.Lines = mapLines(req.Lines)
	}

	if err := h.service.Update(r.Context(), id, input); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) budgetVsActual(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("budget_id")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "budget_id must be numeric")
		return
	}
	start, ok := h.parseOptionalDate(w, r.URL.Query().Get("start_date"), "start_date")
	if !ok {
		return
	}
	end, ok := h.parseOptionalDate(w, r.URL.Query().Get("end_date"), "end_date")
	if !ok {
		return
	}

	result, err := h.service.VsActual(r.Context(), id, start, end)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseOptionalDate returns (nil, true) for an empty value and writes
// the problem response itself on a malformed one.
func (h *Handler) parseOptionalDate(w http.ResponseWriter, value, field string) (*time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", field+" must be formatted YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, budget.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, budget.ErrTitleRequired),
		errors.Is(err, budget.ErrRangeRequired),
		errors.Is(err, budget.ErrRangeInverted),
		errors.Is(err, budget.ErrFiscalYear):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("budget request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func mapLines(in []lineRequest) []budget.LineInput {
	lines := make([]budget.LineInput, 0, len(in))
	for _, l := range in {
		lines = append(lines, budget.LineInput{
			AccountID:  l.AccountID,
			PeriodType: l.PeriodType,
			PeriodKey:  l.PeriodKey,
			Amount:     l.Amount,
			Notes:      l.Notes,
		})
	}
	return lines
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].Field()) + " failed " + verrs[0].Tag() + " validation"
	}
	return err.Error()
}
