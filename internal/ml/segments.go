package ml

import (
	"fmt"
	"time"

	"fuelcast/internal/customer"
	"fuelcast/internal/features"
)

// Business segment labels, in fallback priority order: when a cluster's
// profile matches a name already claimed by another cluster, it takes
// the first unclaimed name from this list.
var segmentNames = []string{
	SegmentPremiumVIPs,
	SegmentLoyalRegulars,
	SegmentGrowthPotential,
	SegmentNewCustomers,
	SegmentOccasionalUsers,
	SegmentAtRisk,
	SegmentDormant,
	SegmentLost,
}

const (
	SegmentPremiumVIPs     = "Premium VIPs"
	SegmentLoyalRegulars   = "Loyal Regulars"
	SegmentGrowthPotential = "Growth Potential"
	SegmentNewCustomers    = "New Customers"
	SegmentOccasionalUsers = "Occasional Users"
	SegmentAtRisk          = "At Risk"
	SegmentDormant         = "Dormant"
	SegmentLost            = "Lost"
)

// SegmentModel clusters customers into behavioral segments and maps
// each cluster to a business label derived from its centroid profile.
type SegmentModel struct {
	Clusterer *KMeans         `json:"clusterer,omitempty"`
	Scaler    *StandardScaler `json:"scaler,omitempty"`
	Columns   []string        `json:"columns,omitempty"`
	Names     []string        `json:"names,omitempty"`

	TrainedAt time.Time `json:"trained_at,omitempty"`
	Samples   int       `json:"samples,omitempty"`
}

func (m *SegmentModel) Trained() bool {
	return m != nil && m.Clusterer != nil && m.Scaler != nil && len(m.Names) > 0
}

// Train fits k clusters and names them from centroid behavior.
func (m *SegmentModel) Train(ms []customer.Metrics, k, minSamples int) error {
	if len(ms) < minSamples {
		return fmt.Errorf("segments: %w: have %d samples, need %d", ErrInsufficientData, len(ms), minSamples)
	}
	if len(ms) < k {
		return fmt.Errorf("segments: %w: have %d samples, need at least %d for %d clusters", ErrInsufficientData, len(ms), k, k)
	}
	x := features.Matrix(ms)
	scaler := FitScaler(x)
	clusterer := TrainKMeans(scaler.Transform(x), DefaultKMeansOptions(k))

	m.Clusterer = clusterer
	m.Scaler = scaler
	m.Columns = append([]string(nil), features.Columns...)
	m.Names = nameClusters(clusterer.Centroids, scaler)
	m.TrainedAt = time.Now().UTC()
	m.Samples = len(ms)
	return nil
}

// Predict returns the business segment label per customer, in input
// order.
func (m *SegmentModel) Predict(ms []customer.Metrics) ([]string, error) {
	if !m.Trained() {
		return nil, fmt.Errorf("segments: %w", ErrNotTrained)
	}
	if err := features.CheckSchema(m.Columns); err != nil {
		return nil, fmt.Errorf("segments: %w", err)
	}
	out := make([]string, len(ms))
	for i, c := range ms {
		cluster := m.Clusterer.Predict(m.Scaler.TransformRow(features.Vector(c)))
		out[i] = m.Names[cluster]
	}
	return out, nil
}

// Feature columns read off centroids when naming clusters.
const (
	colRecency = 0
	colFreq    = 1
	colSpent   = 3
	colAge     = 10
)

// nameClusters maps each centroid back to original units and labels it
// by comparing its recency, frequency, spend, and age against the
// across-cluster means. Every cluster gets a distinct label.
func nameClusters(centroids [][]float64, scaler *StandardScaler) []string {
	type profile struct {
		recency, freq, spent, age float64
	}
	profiles := make([]profile, len(centroids))
	var meanRec, meanFreq, meanSpent, meanAge float64
	for i, c := range centroids {
		raw := scaler.InverseRow(c)
		profiles[i] = profile{raw[colRecency], raw[colFreq], raw[colSpent], raw[colAge]}
		meanRec += profiles[i].recency
		meanFreq += profiles[i].freq
		meanSpent += profiles[i].spent
		meanAge += profiles[i].age
	}
	n := float64(len(centroids))
	meanRec /= n
	meanFreq /= n
	meanSpent /= n
	meanAge /= n

	names := make([]string, len(centroids))
	used := map[string]bool{}
	for i, p := range profiles {
		var name string
		switch {
		case p.recency > 2*meanRec && p.freq < meanFreq:
			name = SegmentLost
		case p.recency > 1.5*meanRec:
			name = SegmentDormant
		case p.age < 0.5*meanAge && p.recency < meanRec:
			name = SegmentNewCustomers
		case p.spent > 1.5*meanSpent && p.freq > meanFreq:
			name = SegmentPremiumVIPs
		case p.freq > meanFreq && p.recency < meanRec:
			name = SegmentLoyalRegulars
		case p.recency > meanRec && p.spent > meanSpent:
			name = SegmentAtRisk
		case p.spent < 0.5*meanSpent && p.freq < meanFreq:
			name = SegmentOccasionalUsers
		default:
			name = SegmentGrowthPotential
		}
		if used[name] {
			for _, alt := range segmentNames {
				if !used[alt] {
					name = alt
					break
				}
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}
