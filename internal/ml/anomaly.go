package ml

import (
	"fmt"
	"time"

	"fuelcast/internal/source"
)

// Anomaly risk tiers keyed off the isolation score.
const (
	AnomalyHigh   = "High"
	AnomalyMedium = "Medium"
	AnomalyLow    = "Low"
)

// anomalyColumns is the per-transaction feature layout for the anomaly
// detector, distinct from the customer-level layout the other models
// share.
var anomalyColumns = []string{"amount", "liter", "unit_price", "hour", "day_of_week"}

// AnomalyModel flags individual transactions that look unlike the
// normal purchase pattern: odd amounts, odd volumes, odd hours.
type AnomalyModel struct {
	Forest  *IsolationForest `json:"forest,omitempty"`
	Scaler  *StandardScaler  `json:"scaler,omitempty"`
	Columns []string         `json:"columns,omitempty"`

	TrainedAt time.Time `json:"trained_at,omitempty"`
	Samples   int       `json:"samples,omitempty"`
}

// AnomalyResult is one scored transaction.
type AnomalyResult struct {
	TransactionID int64   `json:"transaction_id"`
	CustomerID    int64   `json:"customer_id"`
	Amount        float64 `json:"amount"`
	Score         float64 `json:"score"`
	IsAnomaly     bool    `json:"is_anomaly"`
	Risk          string  `json:"risk"`
}

func (m *AnomalyModel) Trained() bool {
	return m != nil && m.Forest != nil && m.Scaler != nil
}

func txVector(t source.Transaction) []float64 {
	return []float64{
		t.Amount,
		t.Liters,
		t.UnitPrice,
		float64(t.CreatedAt.Hour()),
		float64(t.CreatedAt.Weekday()),
	}
}

// Train fits the detector on successful transactions.
func (m *AnomalyModel) Train(txs []source.Transaction, contamination float64, minSamples int) error {
	var x [][]float64
	for _, t := range txs {
		if t.Succeeded() {
			x = append(x, txVector(t))
		}
	}
	if len(x) < minSamples {
		return fmt.Errorf("anomaly: %w: have %d samples, need %d", ErrInsufficientData, len(x), minSamples)
	}
	scaler := FitScaler(x)
	forest := TrainIsoForest(scaler.Transform(x), DefaultIsoForestOptions(contamination))

	m.Forest = forest
	m.Scaler = scaler
	m.Columns = append([]string(nil), anomalyColumns...)
	m.TrainedAt = time.Now().UTC()
	m.Samples = len(x)
	return nil
}

// Detect scores every successful transaction and tiers the risk.
func (m *AnomalyModel) Detect(txs []source.Transaction) ([]AnomalyResult, error) {
	if !m.Trained() {
		return nil, fmt.Errorf("anomaly: %w", ErrNotTrained)
	}
	var out []AnomalyResult
	for _, t := range txs {
		if !t.Succeeded() {
			continue
		}
		score := m.Forest.Score(m.Scaler.TransformRow(txVector(t)))
		out = append(out, AnomalyResult{
			TransactionID: t.ID,
			CustomerID:    t.CustomerID,
			Amount:        t.Amount,
			Score:         score,
			IsAnomaly:     score < m.Forest.Offset,
			Risk:          anomalyRisk(score),
		})
	}
	return out, nil
}

func anomalyRisk(score float64) string {
	switch {
	case score < -0.5:
		return AnomalyHigh
	case score < -0.2:
		return AnomalyMedium
	default:
		return AnomalyLow
	}
}
