// Package ledger keeps the append-only log of per-account postings the
// reconciler and report engine read actuals from.
package ledger

import "time"

// LogEntry is one posting against an account. Rows are append-only:
// nothing in this module updates or deletes them.
type LogEntry struct {
	ID              int64     `json:"id"`
	TransactionID   *int64    `json:"transaction_id,omitempty"`
	AccountID       int64     `json:"account_id"`
	Amount          float64   `json:"amount"`
	TransactionDate time.Time `json:"transaction_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionLine is a single account movement inside a saved
// accounting transaction.
type TransactionLine struct {
	AccountID int64   `json:"account_id"`
	Amount    float64 `json:"amount"`
}

// TransactionEvent is the one strict record type every external
// "transaction saved" payload is normalized into before it reaches the
// core. Adapters own the conversion from whatever shape the accounting
// system emits.
type TransactionEvent struct {
	ID    *int64            `json:"id,omitempty"`
	Date  time.Time         `json:"date"`
	Lines []TransactionLine `json:"lines"`
}
