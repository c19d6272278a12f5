// Package scoring turns customer metrics into churn-risk scores, RFM
// segments and lifetime-value projections. Everything here is
// deterministic arithmetic over the metrics table; percentile ranks are
// relative to the cohort being scored.
package scoring

import (
	"math"

	"fuelcast/internal/customer"
)

// Thresholds carries the configurable scoring boundaries.
type Thresholds struct {
	MediumScore    float64 // churn score >= this -> Medium
	HighScore      float64 // churn score >= this -> High
	CLVHorizonDays float64 // projection horizon (180 = 6 months)
	CLVDecayDays   float64 // recency decay horizon for the adjusted CLV
}

// DefaultThresholds mirrors the production business rules.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MediumScore:    35,
		HighScore:      60,
		CLVHorizonDays: 180,
		CLVDecayDays:   30,
	}
}

// Churn risk categories.
const (
	RiskLow    = "Low Risk"
	RiskMedium = "Medium Risk"
	RiskHigh   = "High Risk"
)

// CLV value tiers.
const (
	ValueHigh   = "High Value"
	ValueMedium = "Medium Value"
	ValueLow    = "Low Value"
)

// Apply computes churn risk, RFM scores, segment and CLV for every row
// in place. The slice is the unit of work: percentile-based components
// need the whole cohort.
func Apply(ms []customer.Metrics, th Thresholds) {
	if len(ms) == 0 {
		return
	}

	frequency := make([]float64, len(ms))
	txCount := make([]float64, len(ms))
	recency := make([]float64, len(ms))
	spent := make([]float64, len(ms))
	for i, m := range ms {
		frequency[i] = m.Frequency
		txCount[i] = float64(m.TransactionCount)
		recency[i] = m.RecencyDays
		spent[i] = m.TotalSpent
	}

	freqPct := percentileRanks(frequency)
	txPct := percentileRanks(txCount)
	recPct := percentileRanks(recency)
	spentPct := percentileRanks(spent)

	for i := range ms {
		m := &ms[i]

		// Churn risk score, 0-100. Recency ramps linearly and caps at
		// 40 points once the customer has been away two weeks.
		recencyComponent := clip((m.RecencyDays/7)*20, 0, 40)
		frequencyComponent := (1 - freqPct[i]) * 30
		failureComponent := m.FailureRate * 20
		commitmentComponent := (1 - txPct[i]) * 10
		m.ChurnRiskScore = recencyComponent + frequencyComponent + failureComponent + commitmentComponent
		m.ChurnRisk = categorizeChurn(m.ChurnRiskScore, th)

		// RFM scores, 1-5. Recency is reversed so recent = high score.
		m.RScore = rfmScore(1 - recPct[i])
		m.FScore = rfmScore(freqPct[i])
		m.MScore = rfmScore(spentPct[i])
		m.Segment = assignSegment(m.RScore, m.FScore, m.MScore)

		// CLV projection with linear recency decay, floored at 10%
		// retention.
		m.PredictedCLV6m = m.Frequency * th.CLVHorizonDays * m.AvgTransaction
		decay := clip(1-m.RecencyDays/th.CLVDecayDays, 0.1, 1.0)
		m.PredictedCLV6mAdjusted = m.PredictedCLV6m * decay
	}

	applyCLVCategories(ms)
}

func categorizeChurn(score float64, th Thresholds) string {
	switch {
	case score >= th.HighScore:
		return RiskHigh
	case score >= th.MediumScore:
		return RiskMedium
	default:
		return RiskLow
	}
}

// rfmScore converts a fractional rank into a 1-5 score.
func rfmScore(pct float64) int {
	s := int(math.Ceil(pct * 5))
	if s < 1 {
		s = 1
	}
	if s > 5 {
		s = 5
	}
	return s
}

// assignSegment resolves the RFM decision table. Conditions overlap, so
// evaluation order is part of the contract: the strict "Can't Lose
// Them" rule runs before the broader "At Risk" rule, and "Potential
// Loyalists" only fires after Champions/Loyal have been ruled out
// (R=5,F=1,M=5 is a Potential Loyalist, not a Champion).
func assignSegment(r, f, m int) string {
	switch {
	case r >= 4 && f >= 4 && m >= 4:
		return "Champions"
	case r >= 3 && f >= 3 && m >= 3:
		return "Loyal Customers"
	case r >= 4 && f <= 2:
		return "Potential Loyalists"
	case r <= 2 && f >= 4 && m >= 4:
		return "Can't Lose Them"
	case r <= 2 && f >= 3 && m >= 3:
		return "At Risk"
	case r <= 2 && f <= 2 && m <= 2:
		return "Lost"
	case r == 3 && f <= 2:
		return "Hibernating"
	default:
		return "Need Attention"
	}
}

// applyCLVCategories buckets customers into thirds of adjusted CLV.
func applyCLVCategories(ms []customer.Metrics) {
	vals := make([]float64, len(ms))
	for i, m := range ms {
		vals[i] = m.PredictedCLV6mAdjusted
	}
	q33 := quantile(vals, 0.33)
	q67 := quantile(vals, 0.67)

	for i := range ms {
		switch v := ms[i].PredictedCLV6mAdjusted; {
		case v >= q67:
			ms[i].CLVCategory = ValueHigh
		case v >= q33:
			ms[i].CLVCategory = ValueMedium
		default:
			ms[i].CLVCategory = ValueLow
		}
	}
}
