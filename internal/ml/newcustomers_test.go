package ml

import (
	"testing"

	"fuelcast/internal/customer"
)

func TestCorrectSegmentsPromotesYoungActive(t *testing.T) {
	ms := []customer.Metrics{
		// Young, active, and spending: promoted regardless of cluster.
		{CustomerID: 1, CustomerAgeDays: 30, RecencyDays: 5, TotalSpent: 200000},
		// Young but stale: left alone.
		{CustomerID: 2, CustomerAgeDays: 30, RecencyDays: 60, TotalSpent: 200000},
		// Young and active but no potential signal: left alone.
		{CustomerID: 3, CustomerAgeDays: 30, RecencyDays: 5, TotalSpent: 10000, Frequency: 0.1, TransactionCount: 2},
	}
	in := []string{SegmentDormant, SegmentDormant, SegmentDormant}
	out := CorrectSegments(ms, in, DefaultCorrectionParams())
	if out[0] != SegmentNewCustomers {
		t.Errorf("promising young customer labeled %q", out[0])
	}
	if out[1] != SegmentDormant || out[2] != SegmentDormant {
		t.Errorf("non-qualifying customers relabeled: %v", out)
	}
}

func TestCorrectSegmentsDemotesAgedOut(t *testing.T) {
	ms := []customer.Metrics{
		// Past the new-customer window with nothing to show.
		{CustomerID: 1, CustomerAgeDays: 120, RecencyDays: 40, TotalSpent: 20000, Frequency: 0.2, TransactionCount: 3},
		// Past the window: demoted even with strong activity. New
		// Customers is an age-bound label, not an engagement tier.
		{CustomerID: 2, CustomerAgeDays: 120, RecencyDays: 10, TotalSpent: 200000, Frequency: 1, TransactionCount: 8},
		// Inside the window and no potential: not demoted.
		{CustomerID: 3, CustomerAgeDays: 45, RecencyDays: 40, TotalSpent: 20000, Frequency: 0.2, TransactionCount: 3},
	}
	in := []string{SegmentNewCustomers, SegmentNewCustomers, SegmentNewCustomers}
	out := CorrectSegments(ms, in, DefaultCorrectionParams())
	if out[0] != SegmentOccasionalUsers {
		t.Errorf("aged-out customer labeled %q, want Occasional Users", out[0])
	}
	if out[1] != SegmentOccasionalUsers {
		t.Errorf("aged customer with potential labeled %q, want Occasional Users", out[1])
	}
	if out[2] != SegmentNewCustomers {
		t.Errorf("young customer demoted to %q", out[2])
	}
}

func TestCorrectSegmentsDoesNotMutateInput(t *testing.T) {
	ms := []customer.Metrics{{CustomerID: 1, CustomerAgeDays: 30, RecencyDays: 5, TotalSpent: 200000}}
	in := []string{SegmentDormant}
	CorrectSegments(ms, in, DefaultCorrectionParams())
	if in[0] != SegmentDormant {
		t.Errorf("input labels mutated: %v", in)
	}
}

func TestCorrectSegmentsPotentialAnySignal(t *testing.T) {
	p := DefaultCorrectionParams()
	byFreq := customer.Metrics{CustomerAgeDays: 30, RecencyDays: 5, Frequency: 1}
	byTxns := customer.Metrics{CustomerAgeDays: 30, RecencyDays: 5, TransactionCount: 6}
	for _, m := range []customer.Metrics{byFreq, byTxns} {
		out := CorrectSegments([]customer.Metrics{m}, []string{SegmentDormant}, p)
		if out[0] != SegmentNewCustomers {
			t.Errorf("signal %+v did not qualify", m)
		}
	}
}
