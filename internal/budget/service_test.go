package budget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	budgets map[int64]Budget
	lines   map[int64][]Line
	nextID  int64
	lineID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{budgets: map[int64]Budget{}, lines: map[int64][]Line{}}
}

func (m *memRepo) InsertBudget(ctx context.Context, b Budget) (int64, error) {
	m.nextID++
	b.ID = m.nextID
	m.budgets[b.ID] = b
	return b.ID, nil
}

func (m *memRepo) UpdateBudget(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	b, ok := m.budgets[id]
	if !ok {
		return false, nil
	}
	for key, value := range fields {
		switch key {
		case "title":
			b.Title = value.(string)
		case "description":
			b.Description = value.(string)
		case "fiscal_year":
			b.FiscalYear = value.(string)
		case "status":
			b.Status = Status(value.(string))
		case "start_date":
			b.StartDate = value.(time.Time)
		case "end_date":
			b.EndDate = value.(time.Time)
		}
	}
	m.budgets[id] = b
	return true, nil
}

func (m *memRepo) GetBudget(ctx context.Context, id int64) (Budget, error) {
	b, ok := m.budgets[id]
	if !ok {
		return Budget{}, ErrNotFound
	}
	return b, nil
}

func (m *memRepo) DeleteBudget(ctx context.Context, id int64) error {
	if _, ok := m.budgets[id]; !ok {
		return ErrNotFound
	}
	delete(m.budgets, id)
	delete(m.lines, id)
	return nil
}

func (m *memRepo) ListBudgets(ctx context.Context, filter ListFilter) ([]Budget, error) {
	var out []Budget
	for _, b := range m.budgets {
		if filter.EntityType != "" && b.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != nil && (b.EntityID == nil || *b.EntityID != *filter.EntityID) {
			continue
		}
		if filter.StartDate != nil && b.EndDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && b.StartDate.After(*filter.EndDate) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memRepo) InsertLine(ctx context.Context, line Line) (int64, error) {
	m.lineID++
	line.ID = m.lineID
	m.lines[line.BudgetID] = append(m.lines[line.BudgetID], line)
	return line.ID, nil
}

func (m *memRepo) LinesByBudget(ctx context.Context, budgetID int64) ([]Line, error) {
	return m.lines[budgetID], nil
}

func (m *memRepo) DeleteLinesByBudget(ctx context.Context, budgetID int64) error {
	delete(m.lines, budgetID)
	return nil
}

type stubLogs struct {
	sums map[int64]float64
}

func (s stubLogs) SumForPeriod(ctx context.Context, accountID int64, start, end time.Time) (float64, error) {
	return s.sums[accountID], nil
}

func ptr[T any](v T) *T { return &v }

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects missing title", func(t *testing.T) {
		svc := NewService(newMemRepo(), stubLogs{}, nil, "USD", nil)
		_, err := svc.Create(ctx, CreateInput{FiscalYear: "2025"})
		assert.ErrorIs(t, err, ErrTitleRequired)
	})

	t.Run("rejects missing range and fiscal year", func(t *testing.T) {
		svc := NewService(newMemRepo(), stubLogs{}, nil, "USD", nil)
		_, err := svc.Create(ctx, CreateInput{Title: "Ops"})
		assert.ErrorIs(t, err, ErrRangeRequired)
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		svc := NewService(newMemRepo(), stubLogs{}, nil, "USD", nil)
		_, err := svc.Create(ctx, CreateInput{
			Title:     "Ops",
			StartDate: ptr(date(2025, time.June, 1)),
			EndDate:   ptr(date(2025, time.January, 1)),
		})
		assert.ErrorIs(t, err, ErrRangeInverted)
	})

	t.Run("fiscal year budget starts assigned", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, stubLogs{}, nil, "USD", nil)
		id, err := svc.Create(ctx, CreateInput{Title: "FY budget", FiscalYear: "2025"})
		require.NoError(t, err)

		b, err := repo.GetBudget(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusAssigned, b.Status)
		assert.Equal(t, date(2025, time.January, 1), b.StartDate)
		assert.Equal(t, date(2025, time.December, 31), b.EndDate)
	})

	t.Run("manually dated budget stays draft", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, stubLogs{}, nil, "USD", nil)
		id, err := svc.Create(ctx, CreateInput{
			Title:     "Manual",
			StartDate: ptr(date(2025, time.March, 1)),
			EndDate:   ptr(date(2025, time.May, 31)),
		})
		require.NoError(t, err)

		b, err := repo.GetBudget(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusDraft, b.Status)
	})

	t.Run("defaults currency and entity type", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, stubLogs{}, nil, "EUR", nil)
		id, err := svc.Create(ctx, CreateInput{Title: "Defaults", FiscalYear: "2025"})
		require.NoError(t, err)

		b, err := repo.GetBudget(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "EUR", b.Currency)
		assert.Equal(t, "global", b.EntityType)
	})

	t.Run("inserts lines with the new budget", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, stubLogs{}, nil, "USD", nil)
		id, err := svc.Create(ctx, CreateInput{
			Title:      "With lines",
			FiscalYear: "2025",
			Lines: []LineInput{
				{AccountID: 10, Amount: 1500},
				{AccountID: 11, Amount: 2500},
			},
		})
		require.NoError(t, err)

		lines, err := repo.LinesByBudget(ctx, id)
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, int64(10), lines[0].AccountID)
		assert.InDelta(t, 2500, lines[1].Amount, 1e-9)
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*memRepo, *Service, int64) {
		t.Helper()
		repo := newMemRepo()
		svc := NewService(repo, stubLogs{}, nil, "USD", nil)
		id, err := svc.Create(ctx, CreateInput{
			Title:      "Seed",
			FiscalYear: "2025",
			Lines: []LineInput{
				{AccountID: 1, Amount: 100},
				{AccountID: 2, Amount: 200},
			},
		})
		require.NoError(t, err)
		return repo, svc, id
	}

	t.Run("unknown budget", func(t *testing.T) {
		_, svc, _ := seed(t)
		err := svc.Update(ctx, 999, UpdateInput{Title: ptr("nope")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("partial metadata update", func(t *testing.T) {
		repo, svc, id := seed(t)
		err := svc.Update(ctx, id, UpdateInput{Title: ptr("Renamed")})
		require.NoError(t, err)

		b, err := repo.GetBudget(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", b.Title)
		assert.Equal(t, "2025", b.FiscalYear)
	})

	t.Run("nil lines leaves line set untouched", func(t *testing.T) {
		repo, svc, id := seed(t)
		err := svc.Update(ctx, id, UpdateInput{Description: ptr("notes")})
		require.NoError(t, err)

		lines, err := repo.LinesByBudget(ctx, id)
		require.NoError(t, err)
		assert.Len(t, lines, 2)
	})

	t.Run("non-nil lines replaces whole set", func(t *testing.T) {
		repo, svc, id := seed(t)
		err := svc.Update(ctx, id, UpdateInput{
			Lines: []LineInput{{AccountID: 9, Amount: 999}},
		})
		require.NoError(t, err)

		lines, err := repo.LinesByBudget(ctx, id)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, int64(9), lines[0].AccountID)
		assert.InDelta(t, 999, lines[0].Amount, 1e-9)
	})

	t.Run("empty non-nil lines clears the set", func(t *testing.T) {
		repo, svc, id := seed(t)
		err := svc.Update(ctx, id, UpdateInput{Lines: []LineInput{}})
		require.NoError(t, err)

		lines, err := repo.LinesByBudget(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("fiscal year change re-resolves the range", func(t *testing.T) {
		repo, svc, id := seed(t)
		err := svc.Update(ctx, id, UpdateInput{FiscalYear: ptr("2026")})
		require.NoError(t, err)

		b, err := repo.GetBudget(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "2026", b.FiscalYear)
		assert.Equal(t, date(2026, time.January, 1), b.StartDate)
		assert.Equal(t, date(2026, time.December, 31), b.EndDate)
		assert.Equal(t, StatusAssigned, b.Status)
	})
}

func TestServiceVsActual(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	logs := stubLogs{sums: map[int64]float64{1: 800, 2: 0}}
	svc := NewService(repo, logs, nil, "USD", nil)

	id, err := svc.Create(ctx, CreateInput{
		Title:      "VsActual",
		FiscalYear: "2025",
		Lines: []LineInput{
			{AccountID: 1, Amount: 1000},
			{AccountID: 2, Amount: 0},
		},
	})
	require.NoError(t, err)

	report, err := svc.VsActual(ctx, id, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.January, 1), report.PeriodStart)
	assert.Equal(t, date(2025, time.December, 31), report.PeriodEnd)
	require.Len(t, report.Lines, 2)

	first := report.Lines[0]
	assert.InDelta(t, -200, first.Variance, 1e-9)
	require.NotNil(t, first.VariancePct)
	assert.InDelta(t, 80, *first.VariancePct, 1e-9)

	second := report.Lines[1]
	assert.Zero(t, second.Variance)
	assert.Nil(t, second.VariancePct)

	assert.InDelta(t, 1000, report.Totals.Budgeted, 1e-9)
	assert.InDelta(t, 800, report.Totals.Actual, 1e-9)
	assert.InDelta(t, -200, report.Totals.Variance, 1e-9)
}
