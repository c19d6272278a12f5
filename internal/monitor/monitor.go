// Package monitor runs the daily health sweep: it scores each
// customer's relationship health and raises alerts for conditions the
// operations team should act on the same day.
package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"fuelcast/internal/customer"
	"fuelcast/internal/storage"
)

// Health grades.
const (
	HealthCritical  = "Critical"
	HealthWarning   = "Warning"
	HealthGood      = "Good"
	HealthExcellent = "Excellent"
)

// Thresholds controls grading and alerting cutoffs.
type Thresholds struct {
	// CriticalScore, WarningScore, GoodScore bound the grade bands:
	// below Critical is Critical, below Warning is Warning, below Good
	// is Good, at or above is Excellent.
	CriticalScore float64
	WarningScore  float64
	GoodScore     float64

	// AlertChurnScore raises a churn alert at or above this score.
	AlertChurnScore float64
	// AlertFailureRate raises a payment alert above this rate, given
	// at least AlertMinTxns attempts.
	AlertFailureRate float64
	AlertMinTxns     int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalScore:    30,
		WarningScore:     50,
		GoodScore:        70,
		AlertChurnScore:  60,
		AlertFailureRate: 0.3,
		AlertMinTxns:     3,
	}
}

// HealthReport is one customer's health assessment.
type HealthReport struct {
	CustomerID int64   `json:"customer_id"`
	Score      float64 `json:"score"`
	Grade      string  `json:"grade"`
}

// HealthScore blends recency, frequency, and engagement into a 0-100
// relationship health figure. It is intentionally simpler than the
// churn model: the sweep must run even when no model is trained.
func HealthScore(m customer.Metrics) float64 {
	// Recency: full marks within a week, fading to zero at 60 days.
	recency := clamp(1-(m.RecencyDays-7)/53, 0, 1) * 40

	// Frequency: two visits a week saturates the band.
	frequency := clamp(m.Frequency/2, 0, 1) * 30

	// Reliability: failures eat the band directly.
	reliability := clamp(1-m.FailureRate*2, 0, 1) * 20

	// Engagement: app users are easier to reach and retain.
	engagement := clamp(m.AppUsageRate, 0, 1) * 10

	return recency + frequency + reliability + engagement
}

// Grade maps a health score into its band.
func Grade(score float64, th Thresholds) string {
	switch {
	case score < th.CriticalScore:
		return HealthCritical
	case score < th.WarningScore:
		return HealthWarning
	case score < th.GoodScore:
		return HealthGood
	default:
		return HealthExcellent
	}
}

// Sweep scores every customer and collects the alerts the day's data
// justifies. Churn scores must already be applied to the metrics.
func Sweep(ms []customer.Metrics, now time.Time, th Thresholds) ([]HealthReport, []storage.Alert) {
	reports := make([]HealthReport, 0, len(ms))
	var alerts []storage.Alert
	ts := now.UnixMilli()

	for _, m := range ms {
		score := HealthScore(m)
		reports = append(reports, HealthReport{
			CustomerID: m.CustomerID,
			Score:      score,
			Grade:      Grade(score, th),
		})

		if m.ChurnRiskScore >= th.AlertChurnScore {
			alerts = append(alerts, storage.Alert{
				ID:         uuid.NewString(),
				TS:         ts,
				CustomerID: m.CustomerID,
				Severity:   storage.SeverityCritical,
				Kind:       storage.AlertChurnRisk,
				Message:    fmt.Sprintf("churn score %.0f for customer %d", m.ChurnRiskScore, m.CustomerID),
				Value:      m.ChurnRiskScore,
			})
		}
		if m.TransactionCount >= th.AlertMinTxns && m.FailureRate > th.AlertFailureRate {
			alerts = append(alerts, storage.Alert{
				ID:         uuid.NewString(),
				TS:         ts,
				CustomerID: m.CustomerID,
				Severity:   storage.SeverityWarning,
				Kind:       storage.AlertPaymentFailures,
				Message:    fmt.Sprintf("payment failure rate %.0f%% for customer %d", m.FailureRate*100, m.CustomerID),
				Value:      m.FailureRate,
			})
		}
	}
	return reports, alerts
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
