package ml

import (
	"fmt"
	"time"

	"fuelcast/internal/customer"
	"fuelcast/internal/features"
)

// ChurnModel predicts the probability that a customer has churned,
// using inactivity beyond the label horizon as the training signal.
type ChurnModel struct {
	Forest  *RandomForest   `json:"forest,omitempty"`
	Scaler  *StandardScaler `json:"scaler,omitempty"`
	Columns []string        `json:"columns,omitempty"`

	TrainedAt time.Time `json:"trained_at,omitempty"`
	Samples   int       `json:"samples,omitempty"`
	Accuracy  float64   `json:"accuracy,omitempty"`
}

// Trained reports whether the model is usable for prediction.
func (m *ChurnModel) Trained() bool {
	return m != nil && m.Forest != nil && m.Scaler != nil
}

// Train labels each customer churned when recency exceeds labelDays,
// holds out 20% stratified for an accuracy estimate, and fits the
// forest on the rest.
func (m *ChurnModel) Train(ms []customer.Metrics, labelDays float64, minSamples int) error {
	if len(ms) < minSamples {
		return fmt.Errorf("churn: %w: have %d samples, need %d", ErrInsufficientData, len(ms), minSamples)
	}
	x := features.Matrix(ms)
	y := make([]int, len(ms))
	pos := 0
	for i, c := range ms {
		if c.RecencyDays > labelDays {
			y[i] = 1
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return fmt.Errorf("churn: %w: all %d samples share one label", ErrInsufficientData, len(y))
	}

	xTrain, xTest, yTrain, yTest := stratifiedSplit(x, y, 0.2, 42)
	scaler := FitScaler(xTrain)
	forest := TrainForest(scaler.Transform(xTrain), yTrain, DefaultForestOptions())

	correct := 0
	for i, row := range xTest {
		p := forest.PredictProba(scaler.TransformRow(row))
		if (p >= 0.5) == (yTest[i] == 1) {
			correct++
		}
	}

	m.Forest = forest
	m.Scaler = scaler
	m.Columns = append([]string(nil), features.Columns...)
	m.TrainedAt = time.Now().UTC()
	m.Samples = len(ms)
	if len(xTest) > 0 {
		m.Accuracy = float64(correct) / float64(len(xTest))
	}
	return nil
}

// Predict returns the churn probability per customer, in input order.
func (m *ChurnModel) Predict(ms []customer.Metrics) ([]float64, error) {
	if !m.Trained() {
		return nil, fmt.Errorf("churn: %w", ErrNotTrained)
	}
	if err := features.CheckSchema(m.Columns); err != nil {
		return nil, fmt.Errorf("churn: %w", err)
	}
	out := make([]float64, len(ms))
	for i, c := range ms {
		out[i] = m.Forest.PredictProba(m.Scaler.TransformRow(features.Vector(c)))
	}
	return out, nil
}
