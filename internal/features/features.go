// Package features maps customer metrics into the fixed numeric vector
// consumed by every model. The column set and order are part of each
// trained model's contract: the scaler and estimator were fit against
// this exact layout, so any drift silently corrupts predictions. The
// order captured at training time is persisted with the model bundle
// and re-checked at prediction time.
package features

import (
	"errors"
	"fmt"
	"math"

	"fuelcast/internal/customer"
)

// ErrSchemaMismatch is returned when a model's captured column layout
// disagrees with the current canonical layout.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// Columns is the canonical feature order.
var Columns = []string{
	"recency_days",
	"frequency",
	"transaction_count",
	"total_spent",
	"avg_transaction",
	"std_transaction",
	"total_liters",
	"station_diversity",
	"failure_rate",
	"app_usage_rate",
	"customer_age_days",
	"recency_frequency_ratio",
	"value_consistency",
	"engagement_score",
}

// Vector builds the feature vector for one customer in canonical order.
// NaN and infinite values are filled to 0.
func Vector(m customer.Metrics) []float64 {
	v := []float64{
		m.RecencyDays,
		m.Frequency,
		float64(m.TransactionCount),
		m.TotalSpent,
		m.AvgTransaction,
		m.StdTransaction,
		m.TotalLiters,
		float64(m.StationDiversity),
		m.FailureRate,
		m.AppUsageRate,
		m.CustomerAgeDays,
		m.RecencyDays / (m.Frequency + 0.1),
		m.StdTransaction / (m.AvgTransaction + 1),
		float64(m.TransactionCount) * m.AppUsageRate / (m.RecencyDays + 1),
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
		}
	}
	return v
}

// Matrix builds the feature matrix for a metrics table, one row per
// customer, rows in table order.
func Matrix(ms []customer.Metrics) [][]float64 {
	rows := make([][]float64, len(ms))
	for i, m := range ms {
		rows[i] = Vector(m)
	}
	return rows
}

// CheckSchema verifies that the column layout captured at training time
// matches the current canonical layout. A mismatch means the model was
// trained against a different feature build and must not be used.
func CheckSchema(trained []string) error {
	if len(trained) != len(Columns) {
		return fmt.Errorf("%w: model trained on %d columns, current build has %d",
			ErrSchemaMismatch, len(trained), len(Columns))
	}
	for i, name := range trained {
		if name != Columns[i] {
			return fmt.Errorf("%w at column %d: model trained on %q, current build has %q",
				ErrSchemaMismatch, i, name, Columns[i])
		}
	}
	return nil
}
