package ml

import (
	"errors"
	"testing"

	"fuelcast/internal/customer"
	"fuelcast/internal/features"
)

func identityScaler() *StandardScaler {
	n := len(features.Columns)
	s := &StandardScaler{Mean: make([]float64, n), Std: make([]float64, n)}
	for i := range s.Std {
		s.Std[i] = 1
	}
	return s
}

func TestNameClustersDistinct(t *testing.T) {
	// Eight centroid profiles with varied recency/frequency/spend/age.
	centroids := make([][]float64, 8)
	for i := range centroids {
		c := make([]float64, len(features.Columns))
		c[colRecency] = float64(i) * 15
		c[colFreq] = float64(8 - i)
		c[colSpent] = float64(8-i) * 100000
		c[colAge] = 50 + float64(i)*40
		centroids[i] = c
	}
	names := nameClusters(centroids, identityScaler())
	if len(names) != 8 {
		t.Fatalf("named %d clusters, want 8", len(names))
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate segment name %q in %v", n, names)
		}
		seen[n] = true
	}
}

func TestNameClustersProfiles(t *testing.T) {
	mk := func(rec, freq, spent, age float64) []float64 {
		c := make([]float64, len(features.Columns))
		c[colRecency], c[colFreq], c[colSpent], c[colAge] = rec, freq, spent, age
		return c
	}
	centroids := [][]float64{
		mk(3, 8, 900000, 300),    // heavy spender, frequent, recent
		mk(10, 3, 100000, 300),   // middle of the pack
		mk(200, 0.2, 20000, 300), // long gone
	}
	names := nameClusters(centroids, identityScaler())
	if names[0] != SegmentPremiumVIPs {
		t.Errorf("high-value cluster named %q", names[0])
	}
	if names[2] != SegmentLost {
		t.Errorf("inactive cluster named %q", names[2])
	}
}

func TestSegmentTrainAndPredict(t *testing.T) {
	var ms []customer.Metrics
	for i := 0; i < 30; i++ {
		ms = append(ms, customer.Metrics{
			CustomerID: int64(i), RecencyDays: 2, Frequency: 5,
			TransactionCount: 20, TotalSpent: 500000, AvgTransaction: 25000, CustomerAgeDays: 300,
		})
		ms = append(ms, customer.Metrics{
			CustomerID: int64(100 + i), RecencyDays: 150, Frequency: 0.1,
			TransactionCount: 2, TotalSpent: 20000, AvgTransaction: 10000, CustomerAgeDays: 300,
		})
	}
	var m SegmentModel
	if err := m.Train(ms, 2, 50); err != nil {
		t.Fatalf("train: %v", err)
	}
	labels, err := m.Predict(ms)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if labels[0] == labels[1] {
		t.Errorf("distinct behavior groups share label %q", labels[0])
	}
	// Same profile always lands in the same segment.
	if labels[0] != labels[2] || labels[1] != labels[3] {
		t.Errorf("identical profiles split across segments: %v", labels[:4])
	}
}

func TestSegmentRejectsFewerSamplesThanClusters(t *testing.T) {
	ms := []customer.Metrics{{CustomerID: 1}, {CustomerID: 2}, {CustomerID: 3}}
	var m SegmentModel
	err := m.Train(ms, 8, 2)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestSegmentPredictBeforeTrain(t *testing.T) {
	var m SegmentModel
	_, err := m.Predict([]customer.Metrics{{CustomerID: 1}})
	if !errors.Is(err, ErrNotTrained) {
		t.Fatalf("err = %v, want ErrNotTrained", err)
	}
}
