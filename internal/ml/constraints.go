package ml

import (
	"math"

	"fuelcast/internal/customer"
)

// ConstraintParams bounds revenue predictions to what a customer's
// history can plausibly support.
type ConstraintParams struct {
	// Ceiling is the absolute limit on any prediction.
	Ceiling float64
	// HistoricalCap limits predictions to this multiple of total spend.
	HistoricalCap float64
	// NewCustomerCap is the tighter multiple applied below
	// NewCustomerTxns transactions.
	NewCustomerCap  float64
	NewCustomerTxns int
	// InactiveAfterDays starts the inactivity discount; the factor
	// decays linearly to InactivityFloor over HorizonDays.
	InactiveAfterDays float64
	HorizonDays       float64
	InactivityFloor   float64
}

func DefaultConstraintParams() ConstraintParams {
	return ConstraintParams{
		Ceiling:           50_000_000,
		HistoricalCap:     2.0,
		NewCustomerCap:    1.5,
		NewCustomerTxns:   5,
		InactiveAfterDays: 30,
		HorizonDays:       180,
		InactivityFloor:   0.1,
	}
}

// Constrain clamps a raw revenue prediction into the customer's
// plausible range. The bound depends only on the customer's history,
// never on the prediction itself, so re-applying the constraint to an
// already constrained value changes nothing.
func Constrain(pred float64, m customer.Metrics, p ConstraintParams) float64 {
	limit := p.HistoricalCap * m.TotalSpent
	if m.TransactionCount < p.NewCustomerTxns {
		if c := p.NewCustomerCap * m.TotalSpent; c < limit {
			limit = c
		}
	}
	if limit > p.Ceiling {
		limit = p.Ceiling
	}
	if m.RecencyDays > p.InactiveAfterDays {
		factor := math.Max(p.InactivityFloor, 1-m.RecencyDays/p.HorizonDays)
		limit *= factor
	}
	if pred < 0 || math.IsNaN(pred) {
		return 0
	}
	if pred > limit {
		return limit
	}
	return pred
}
