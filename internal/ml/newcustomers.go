package ml

import "fuelcast/internal/customer"

// CorrectionParams controls the post-clustering segment fixup for new
// customers. Clustering tends to throw young accounts in with dormant
// ones because both have thin history, so promising recent joiners are
// relabeled by rule instead.
type CorrectionParams struct {
	// NewAgeDays bounds how old an account can be and still count as
	// new.
	NewAgeDays float64
	// ActiveRecencyDays bounds how stale a new account can be and still
	// be promoted.
	ActiveRecencyDays float64
	// A customer shows potential by clearing any one of these.
	MinFrequency float64
	MinSpend     float64
	MinTxns      int
}

func DefaultCorrectionParams() CorrectionParams {
	return CorrectionParams{
		NewAgeDays:        90,
		ActiveRecencyDays: 30,
		MinFrequency:      0.5,
		MinSpend:          100_000,
		MinTxns:           5,
	}
}

// CorrectSegments returns labels with the new-customer fixup applied:
// young, active accounts showing potential are promoted to New
// Customers, and accounts the clusterer labeled New Customers that have
// aged past the window are demoted to Occasional Users. Potential
// signals do not save an aged account; only the age guard protects
// young ones. Input slices are not mutated.
func CorrectSegments(ms []customer.Metrics, labels []string, p CorrectionParams) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	for i, c := range ms {
		potential := c.Frequency > p.MinFrequency || c.TotalSpent > p.MinSpend || c.TransactionCount > p.MinTxns
		switch {
		case c.CustomerAgeDays < p.NewAgeDays && potential && c.RecencyDays < p.ActiveRecencyDays:
			out[i] = SegmentNewCustomers
		case out[i] == SegmentNewCustomers && c.CustomerAgeDays >= p.NewAgeDays:
			out[i] = SegmentOccasionalUsers
		}
	}
	return out
}
