package budget

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FiscalPeriod is an externally defined fiscal year with its range.
type FiscalPeriod struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// FiscalPeriodSource lists fiscal period definitions maintained by the
// surrounding accounting system. Implementations may be absent.
type FiscalPeriodSource interface {
	FiscalPeriods(ctx context.Context) ([]FiscalPeriod, error)
}

// ResolveFiscalRange turns a fiscal-year alias into a concrete date
// range. An external definition whose name matches the alias wins;
// otherwise the calendar year is used. Source lookup failures degrade
// to the calendar fallback, they are never surfaced.
func ResolveFiscalRange(ctx context.Context, source FiscalPeriodSource, fiscalYear string) (time.Time, time.Time, error) {
	year, err := parseYear(fiscalYear)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if source != nil {
		periods, err := source.FiscalPeriods(ctx)
		if err == nil {
			for _, p := range periods {
				if p.Name == strings.TrimSpace(fiscalYear) && !p.StartDate.IsZero() && !p.EndDate.IsZero() {
					return p.StartDate, p.EndDate, nil
				}
			}
		}
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return start, end, nil
}

// QuarterRange resolves a fiscal year plus optional quarter label to a
// date range. An empty period means the whole calendar year. Quarters
// are fixed calendar quarters with no fiscal-year offset.
func QuarterRange(fiscalYear, period string) (time.Time, time.Time, error) {
	year, err := parseYear(fiscalYear)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	date := func(m time.Month, d int) time.Time {
		return time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
	}

	switch strings.ToUpper(strings.TrimSpace(period)) {
	case "":
		return date(time.January, 1), date(time.December, 31), nil
	case "Q1":
		return date(time.January, 1), date(time.March, 31), nil
	case "Q2":
		return date(time.April, 1), date(time.June, 30), nil
	case "Q3":
		return date(time.July, 1), date(time.September, 30), nil
	case "Q4":
		return date(time.October, 1), date(time.December, 31), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown period %q", ErrFiscalYear, period)
	}
}

func parseYear(fiscalYear string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(fiscalYear))
	if err != nil || year < 1000 || year > 9999 {
		return 0, fmt.Errorf("%w: %q", ErrFiscalYear, fiscalYear)
	}
	return year, nil
}
