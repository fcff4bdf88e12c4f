package report

import (
	"context"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LedgerBalance is one account balance row from the trial balance.
type LedgerBalance struct {
	ID      int64   `json:"id"`
	Balance float64 `json:"balance"`
}

// TrialBalance groups ledger balances by chart of accounts.
type TrialBalance struct {
	Rows map[int64][]LedgerBalance `json:"rows"`
}

// Flatten collapses the chart grouping into account id → balance.
func (tb TrialBalance) Flatten() map[int64]float64 {
	out := make(map[int64]float64)
	for _, group := range tb.Rows {
		for _, row := range group {
			out[row.ID] = row.Balance
		}
	}
	return out
}

// BalanceProvider fetches ledger balances from the external accounting
// system. It is optional; a nil provider or a failing call degrades to
// the ledger log fallback.
type BalanceProvider interface {
	TrialBalance(ctx context.Context, start, end time.Time) (TrialBalance, error)
}

// CurrencyProvider resolves the configured currency and its display
// symbol. Optional; absence falls back to the default currency.
type CurrencyProvider interface {
	Currency(ctx context.Context) (string, error)
	CurrencySymbol(ctx context.Context, code string) (string, error)
}

var symbolPrinter = message.NewPrinter(language.English)

// DefaultSymbol resolves a display symbol from CLDR currency data,
// returning the code itself when it is not a known ISO currency.
func DefaultSymbol(code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code
	}
	return symbolPrinter.Sprint(currency.NarrowSymbol(unit))
}
