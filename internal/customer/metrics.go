// Package customer derives per-customer behavioral metrics from raw
// transactions. Metrics are recomputed fresh on every request; nothing
// in this package holds state between calls.
package customer

import (
	"math"
	"sort"
	"time"

	"fuelcast/internal/source"
)

const day = 24 * time.Hour

// minAgeDays replaces a zero customer age so frequency never divides by
// zero. Single-transaction customers therefore get frequency 1/0.1 = 10
// per day; this skew is defined behavior and downstream scoring must
// not special-case it away.
const minAgeDays = 0.1

// Metrics is one row of the customer metrics table.
type Metrics struct {
	CustomerID int64 `json:"customer_id"`

	// Activity
	TransactionCount int `json:"transaction_count"`
	StationDiversity int `json:"station_diversity"`

	// Monetary
	TotalSpent     float64 `json:"total_spent"`
	AvgTransaction float64 `json:"avg_transaction"`
	StdTransaction float64 `json:"std_transaction"`
	MinTransaction float64 `json:"min_transaction"`
	MaxTransaction float64 `json:"max_transaction"`

	// Volume
	TotalLiters float64 `json:"total_liters"`
	AvgLiters   float64 `json:"avg_liters"`

	// Temporal
	FirstTransaction time.Time `json:"first_transaction"`
	LastTransaction  time.Time `json:"last_transaction"`
	RecencyDays      float64   `json:"recency_days"`
	CustomerAgeDays  float64   `json:"customer_age_days"`

	// Rates
	Frequency    float64 `json:"frequency"`
	FailureRate  float64 `json:"failure_rate"`
	AppUsageRate float64 `json:"app_usage_rate"`

	// Refuel cycle
	AvgDaysBetweenRefuels float64 `json:"avg_days_between_refuels"`
	StdDaysBetweenRefuels float64 `json:"std_days_between_refuels"`
	RefuelRegularity      float64 `json:"refuel_regularity"`
	PatternLabel          string  `json:"pattern_label"`

	// Derived scores, appended by the scoring package.
	ChurnRiskScore         float64 `json:"churn_risk_score"`
	ChurnRisk              string  `json:"churn_risk"`
	RScore                 int     `json:"r_score"`
	FScore                 int     `json:"f_score"`
	MScore                 int     `json:"m_score"`
	Segment                string  `json:"segment"`
	PredictedCLV6m         float64 `json:"predicted_clv_6m"`
	PredictedCLV6mAdjusted float64 `json:"predicted_clv_6m_adjusted"`
	CLVCategory            string  `json:"clv_category"`
}

// Compute aggregates raw transactions into one Metrics row per customer
// with at least one successful transaction. ref is the reference time
// recency is measured against (the max timestamp of the fetched window,
// see source.ReferenceTime). Failure rate counts all statuses; every
// other aggregate uses successful transactions only.
func Compute(txs []source.Transaction, ref time.Time) []Metrics {
	success := make(map[int64][]source.Transaction)
	var all, failed map[int64]int
	all = make(map[int64]int)
	failed = make(map[int64]int)

	for _, tx := range txs {
		all[tx.CustomerID]++
		if tx.Succeeded() {
			success[tx.CustomerID] = append(success[tx.CustomerID], tx)
		} else {
			failed[tx.CustomerID]++
		}
	}

	out := make([]Metrics, 0, len(success))
	for id, rows := range success {
		sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })

		m := Metrics{
			CustomerID:       id,
			TransactionCount: len(rows),
			MinTransaction:   math.Inf(1),
			MaxTransaction:   math.Inf(-1),
			FirstTransaction: rows[0].CreatedAt,
			LastTransaction:  rows[len(rows)-1].CreatedAt,
		}

		stations := make(map[int64]struct{})
		appCount := 0
		for _, tx := range rows {
			m.TotalSpent += tx.Amount
			m.TotalLiters += tx.Liters
			if tx.Amount < m.MinTransaction {
				m.MinTransaction = tx.Amount
			}
			if tx.Amount > m.MaxTransaction {
				m.MaxTransaction = tx.Amount
			}
			stations[tx.StationID] = struct{}{}
			if tx.Channel == source.ChannelApp {
				appCount++
			}
		}

		n := float64(len(rows))
		m.AvgTransaction = m.TotalSpent / n
		m.AvgLiters = m.TotalLiters / n
		m.StdTransaction = sampleStd(rows, m.AvgTransaction)
		m.StationDiversity = len(stations)
		m.AppUsageRate = float64(appCount) / n

		m.RecencyDays = ref.Sub(m.LastTransaction).Seconds() / day.Seconds()
		if m.RecencyDays < 0 {
			m.RecencyDays = 0
		}
		m.CustomerAgeDays = m.LastTransaction.Sub(m.FirstTransaction).Seconds() / day.Seconds()
		if m.CustomerAgeDays == 0 {
			m.CustomerAgeDays = minAgeDays
		}
		m.Frequency = float64(m.TransactionCount) / m.CustomerAgeDays

		m.FailureRate = float64(failed[id]) / float64(all[id])

		computeRefuelCycle(&m, rows)

		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out
}

// sampleStd is the n-1 standard deviation of transaction amounts,
// zero for a single transaction.
func sampleStd(rows []source.Transaction, mean float64) float64 {
	if len(rows) < 2 {
		return 0
	}
	var ss float64
	for _, tx := range rows {
		d := tx.Amount - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(rows)-1))
}

// computeRefuelCycle fills the days-between-refuels fields from the
// customer's successful transactions, already sorted by time.
func computeRefuelCycle(m *Metrics, rows []source.Transaction) {
	var intervals []float64
	for i := 1; i < len(rows); i++ {
		d := rows[i].CreatedAt.Sub(rows[i-1].CreatedAt).Seconds() / day.Seconds()
		if d > 0 {
			intervals = append(intervals, d)
		}
	}

	if len(intervals) == 0 {
		m.PatternLabel = "One-time User"
		return
	}

	var sum float64
	for _, d := range intervals {
		sum += d
	}
	m.AvgDaysBetweenRefuels = sum / float64(len(intervals))

	if len(intervals) > 1 {
		var ss float64
		for _, d := range intervals {
			diff := d - m.AvgDaysBetweenRefuels
			ss += diff * diff
		}
		m.StdDaysBetweenRefuels = math.Sqrt(ss / float64(len(intervals)-1))
		m.RefuelRegularity = 1 / (m.StdDaysBetweenRefuels + 1)
	}

	switch avg := m.AvgDaysBetweenRefuels; {
	case avg < 1:
		m.PatternLabel = "Multiple Daily"
	case avg < 3:
		m.PatternLabel = "Frequent (Every 1-3 days)"
	case avg < 7:
		m.PatternLabel = "Regular (Weekly)"
	default:
		m.PatternLabel = "Occasional (7+ days)"
	}
}
