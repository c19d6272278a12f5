// Package source is the transaction fetch boundary. It returns raw
// payment rows for a bounded date window; all downstream computation is
// in-memory and request-scoped.
package source

import (
	"context"
	"time"
)

// Payment status codes carried by the payments table.
const (
	StatusSuccess = 200
	StatusFailure = 500
)

// ChannelApp is the payment channel used for app-usage-rate computation.
const ChannelApp = "APP"

// Transaction is a single raw payment row. Immutable once fetched.
type Transaction struct {
	ID              int64
	StationID       int64
	CustomerID      int64
	Channel         string // payment source, e.g. "APP", "USSD"
	FuelType        string
	Liters          float64
	UnitPrice       float64
	Amount          float64
	Status          int // StatusSuccess or StatusFailure
	PaymentMethodID int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Succeeded reports whether the payment completed.
func (t Transaction) Succeeded() bool { return t.Status == StatusSuccess }

// Source fetches transactions for an inclusive date range, restricted
// to success and failure statuses (pending rows are excluded upstream).
type Source interface {
	FetchTransactions(ctx context.Context, from, to time.Time) ([]Transaction, error)
	Close() error
}

// ReferenceTime returns the maximum CreatedAt across the fetched window.
// Recency is computed against this, not wall-clock time, so historical
// windows produce internally consistent reports.
func ReferenceTime(txs []Transaction) time.Time {
	var ref time.Time
	for _, tx := range txs {
		if tx.CreatedAt.After(ref) {
			ref = tx.CreatedAt
		}
	}
	return ref
}
