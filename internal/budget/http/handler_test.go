package budgethttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enle-erp/budgeting/internal/budget"
)

type fakeRepo struct {
	budgets map[int64]budget.Budget
	lines   map[int64][]budget.Line
	nextID  int64
	lineID  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{budgets: map[int64]budget.Budget{}, lines: map[int64][]budget.Line{}}
}

func (f *fakeRepo) InsertBudget(ctx context.Context, b budget.Budget) (int64, error) {
	f.nextID++
	b.ID = f.nextID
	f.budgets[b.ID] = b
	return b.ID, nil
}

func (f *fakeRepo) UpdateBudget(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	b, ok := f.budgets[id]
	if !ok {
		return false, nil
	}
	if v, ok := fields["title"]; ok {
		b.Title = v.(string)
	}
	if v, ok := fields["status"]; ok {
		b.Status = budget.Status(v.(string))
	}
	if v, ok := fields["start_date"]; ok {
		b.StartDate = v.(time.Time)
	}
	if v, ok := fields["end_date"]; ok {
		b.EndDate = v.(time.Time)
	}
	f.budgets[id] = b
	return true, nil
}

func (f *fakeRepo) GetBudget(ctx context.Context, id int64) (budget.Budget, error) {
	b, ok := f.budgets[id]
	if !ok {
		return budget.Budget{}, budget.ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) DeleteBudget(ctx context.Context, id int64) error {
	if _, ok := f.budgets[id]; !ok {
		return budget.ErrNotFound
	}
	delete(f.budgets, id)
	delete(f.lines, id)
	return nil
}

func (f *fakeRepo) ListBudgets(ctx context.Context, filter budget.ListFilter) ([]budget.Budget, error) {
	var out []budget.Budget
	for _, b := range f.budgets {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRepo) InsertLine(ctx context.Context, line budget.Line) (int64, error) {
	f.lineID++
	line.ID = f.lineID
	f.lines[line.BudgetID] = append(f.lines[line.BudgetID], line)
	return line.ID, nil
}

func (f *fakeRepo) LinesByBudget(ctx context.Context, budgetID int64) ([]budget.Line, error) {
	return f.lines[budgetID], nil
}

func (f *fakeRepo) DeleteLinesByBudget(ctx context.Context, budgetID int64) error {
	delete(f.lines, budgetID)
	return nil
}

type fakeLogs struct {
	sums map[int64]float64
}

func (f fakeLogs) SumForPeriod(ctx context.Context, accountID int64, start, end time.Time) (float64, error) {
	return f.sums[accountID], nil
}

func newServer(t *testing.T, repo *fakeRepo, logs fakeLogs) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := budget.NewService(repo, logs, nil, "USD", logger)

	r := chi.NewRouter()
	NewHandler(logger, svc).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func putJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateBudget(t *testing.T) {
	t.Run("fiscal year budget", func(t *testing.T) {
		repo := newFakeRepo()
		srv := newServer(t, repo, fakeLogs{})

		resp := postJSON(t, srv.URL+"/budgets", map[string]any{
			"title":       "Marketing FY25",
			"fiscal_year": "2025",
			"lines": []map[string]any{
				{"account_id": 10, "amount": 5000},
			},
		})
		defer resp.Body.Close()

		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var body map[string]int64
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, int64(1), body["id"])

		b := repo.budgets[1]
		assert.Equal(t, budget.StatusAssigned, b.Status)
		assert.Len(t, repo.lines[1], 1)
	})

	t.Run("missing title", func(t *testing.T) {
		srv := newServer(t, newFakeRepo(), fakeLogs{})

		resp := postJSON(t, srv.URL+"/budgets", map[string]any{"fiscal_year": "2025"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing range and fiscal year", func(t *testing.T) {
		srv := newServer(t, newFakeRepo(), fakeLogs{})

		resp := postJSON(t, srv.URL+"/budgets", map[string]any{"title": "No range"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed date", func(t *testing.T) {
		srv := newServer(t, newFakeRepo(), fakeLogs{})

		resp := postJSON(t, srv.URL+"/budgets", map[string]any{
			"title":      "Bad date",
			"start_date": "01/02/2025",
			"end_date":   "2025-06-30",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetBudget(t *testing.T) {
	repo := newFakeRepo()
	srv := newServer(t, repo, fakeLogs{})

	resp := postJSON(t, srv.URL+"/budgets", map[string]any{
		"title":       "Ops",
		"fiscal_year": "2025",
		"lines":       []map[string]any{{"account_id": 1, "amount": 100}},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("found with lines", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/budgets/1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var b budget.Budget
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
		assert.Equal(t, "Ops", b.Title)
		assert.Len(t, b.Lines, 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/budgets/99")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/budgets/abc")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUpdateBudget(t *testing.T) {
	seed := func(t *testing.T) (*fakeRepo, *httptest.Server) {
		repo := newFakeRepo()
		srv := newServer(t, repo, fakeLogs{})
		resp := postJSON(t, srv.URL+"/budgets", map[string]any{
			"title":       "Seed",
			"fiscal_year": "2025",
			"lines": []map[string]any{
				{"account_id": 1, "amount": 100},
				{"account_id": 2, "amount": 200},
			},
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		return repo, srv
	}

	t.Run("replaces lines wholesale", func(t *testing.T) {
		repo, srv := seed(t)

		resp := putJSON(t, srv.URL+"/budgets/1", map[string]any{
			"lines": []map[string]any{{"account_id": 9, "amount": 999}},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.Len(t, repo.lines[1], 1)
		assert.Equal(t, int64(9), repo.lines[1][0].AccountID)
	})

	t.Run("metadata only keeps lines", func(t *testing.T) {
		repo, srv := seed(t)

		resp := putJSON(t, srv.URL+"/budgets/1", map[string]any{"title": "Renamed"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, "Renamed", repo.budgets[1].Title)
		assert.Len(t, repo.lines[1], 2)
	})

	t.Run("unknown budget", func(t *testing.T) {
		_, srv := seed(t)

		resp := putJSON(t, srv.URL+"/budgets/42", map[string]any{"title": "Nope"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestDeleteBudget(t *testing.T) {
	repo := newFakeRepo()
	srv := newServer(t, repo, fakeLogs{})

	resp := postJSON(t, srv.URL+"/budgets", map[string]any{"title": "Doomed", "fiscal_year": "2025"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/budgets/1", nil)
	require.NoError(t, err)
	deleteResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	deleteResp.Body.Close()
	assert.Equal(t, http.StatusOK, deleteResp.StatusCode)
	assert.Empty(t, repo.budgets)

	again, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	again.Body.Close()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestBudgetVsActualEndpoint(t *testing.T) {
	repo := newFakeRepo()
	srv := newServer(t, repo, fakeLogs{sums: map[int64]float64{1: 800}})

	resp := postJSON(t, srv.URL+"/budgets", map[string]any{
		"title":       "Report",
		"fiscal_year": "2025",
		"lines":       []map[string]any{{"account_id": 1, "amount": 1000}},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("line breakdown", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/reports/budget-vs-actual?budget_id=1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report budget.VsActualReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		require.Len(t, report.Lines, 1)
		assert.InDelta(t, -200, report.Lines[0].Variance, 1e-9)
		require.NotNil(t, report.Lines[0].VariancePct)
		assert.InDelta(t, 80, *report.Lines[0].VariancePct, 1e-9)
		assert.InDelta(t, -200, report.Totals.Variance, 1e-9)
	})

	t.Run("missing budget_id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/reports/budget-vs-actual")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
