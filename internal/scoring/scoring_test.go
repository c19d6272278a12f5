package scoring

import (
	"math"
	"testing"

	"fuelcast/internal/customer"
)

func TestPercentileRanksAverageTies(t *testing.T) {
	got := percentileRanks([]float64{10, 20, 20, 40})
	want := []float64{0.25, 0.625, 0.625, 1.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("rank[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestChurnScoreBounds(t *testing.T) {
	ms := []customer.Metrics{
		{CustomerID: 1, RecencyDays: 0, Frequency: 5, TransactionCount: 50, FailureRate: 0},
		{CustomerID: 2, RecencyDays: 45, Frequency: 0.01, TransactionCount: 1, FailureRate: 1},
		{CustomerID: 3, RecencyDays: 7, Frequency: 1, TransactionCount: 10, FailureRate: 0.2},
	}
	Apply(ms, DefaultThresholds())

	for _, m := range ms {
		if m.ChurnRiskScore < 0 || m.ChurnRiskScore > 100 {
			t.Errorf("customer %d: score %v out of [0,100]", m.CustomerID, m.ChurnRiskScore)
		}
	}

	// Fresh, frequent, committed, no failures: every component bottoms out.
	if ms[0].ChurnRiskScore >= ms[2].ChurnRiskScore {
		t.Errorf("healthy customer scored %v >= middling customer %v", ms[0].ChurnRiskScore, ms[2].ChurnRiskScore)
	}
	if ms[1].ChurnRisk != RiskHigh {
		t.Errorf("worst customer risk = %q, want %q (score %v)", ms[1].ChurnRisk, RiskHigh, ms[1].ChurnRiskScore)
	}
}

func TestRecencyComponentCapsAtTwoWeeks(t *testing.T) {
	// Identical except recency 14 vs 1000 days: the recency component
	// caps at 40, so only the shared percentile components remain and
	// scores must be equal.
	mk := func(rec float64) []customer.Metrics {
		return []customer.Metrics{
			{CustomerID: 1, RecencyDays: rec, Frequency: 1, TransactionCount: 5},
			{CustomerID: 2, RecencyDays: rec, Frequency: 1, TransactionCount: 5},
		}
	}
	a := mk(14)
	b := mk(1000)
	Apply(a, DefaultThresholds())
	Apply(b, DefaultThresholds())
	if a[0].ChurnRiskScore != b[0].ChurnRiskScore {
		t.Errorf("score at 14d = %v, at 1000d = %v; recency component should cap at 40",
			a[0].ChurnRiskScore, b[0].ChurnRiskScore)
	}
}

func TestChurnCategoryBoundariesExact(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		score float64
		want  string
	}{
		{0, RiskLow},
		{34.999, RiskLow},
		{35, RiskMedium},
		{59.999, RiskMedium},
		{60, RiskHigh},
		{100, RiskHigh},
	}
	for _, c := range cases {
		if got := categorizeChurn(c.score, th); got != c.want {
			t.Errorf("categorizeChurn(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestSegmentPriorityOrder(t *testing.T) {
	cases := []struct {
		r, f, m int
		want    string
	}{
		{5, 5, 5, "Champions"},
		{4, 4, 4, "Champions"},
		{3, 3, 3, "Loyal Customers"},
		{5, 1, 5, "Potential Loyalists"}, // F<=2 rules out Champions first
		{4, 2, 1, "Potential Loyalists"},
		{1, 5, 5, "Can't Lose Them"}, // stricter rule wins over At Risk
		{2, 3, 3, "At Risk"},
		{1, 1, 1, "Lost"},
		{3, 2, 5, "Hibernating"},
		{3, 4, 2, "Need Attention"},
	}
	for _, c := range cases {
		if got := assignSegment(c.r, c.f, c.m); got != c.want {
			t.Errorf("assignSegment(%d,%d,%d) = %q, want %q", c.r, c.f, c.m, got, c.want)
		}
	}
}

func TestSegmentDeterministic(t *testing.T) {
	for r := 1; r <= 5; r++ {
		for f := 1; f <= 5; f++ {
			for m := 1; m <= 5; m++ {
				a := assignSegment(r, f, m)
				b := assignSegment(r, f, m)
				if a != b {
					t.Fatalf("assignSegment(%d,%d,%d) not deterministic: %q vs %q", r, f, m, a, b)
				}
				if a == "" {
					t.Fatalf("assignSegment(%d,%d,%d) returned empty segment", r, f, m)
				}
			}
		}
	}
}

func TestCLVProjection(t *testing.T) {
	ms := []customer.Metrics{
		{CustomerID: 1, Frequency: 0.5, AvgTransaction: 6000, RecencyDays: 0},
		{CustomerID: 2, Frequency: 0.5, AvgTransaction: 6000, RecencyDays: 15},
		{CustomerID: 3, Frequency: 0.5, AvgTransaction: 6000, RecencyDays: 300},
	}
	Apply(ms, DefaultThresholds())

	// 0.5 txn/day * 180 days * 6000 = 540000
	if ms[0].PredictedCLV6m != 540000 {
		t.Errorf("PredictedCLV6m = %v, want 540000", ms[0].PredictedCLV6m)
	}
	if ms[0].PredictedCLV6mAdjusted != 540000 {
		t.Errorf("adjusted CLV at recency 0 = %v, want 540000", ms[0].PredictedCLV6mAdjusted)
	}
	// Halfway through the 30-day decay horizon.
	if math.Abs(ms[1].PredictedCLV6mAdjusted-270000) > 1e-6 {
		t.Errorf("adjusted CLV at recency 15 = %v, want 270000", ms[1].PredictedCLV6mAdjusted)
	}
	// Decay floors at 10% retention.
	if math.Abs(ms[2].PredictedCLV6mAdjusted-54000) > 1e-6 {
		t.Errorf("adjusted CLV at recency 300 = %v, want 54000", ms[2].PredictedCLV6mAdjusted)
	}
}

func TestSingleTransactionCustomerNotSpecialCased(t *testing.T) {
	// The defined frequency skew (1/0.1 = 10/day) flows through scoring
	// unchanged: the single-transaction customer outranks a genuinely
	// frequent customer on the frequency percentile.
	ms := []customer.Metrics{
		{CustomerID: 1, Frequency: 10, TransactionCount: 1, RecencyDays: 1, CustomerAgeDays: 0.1},
		{CustomerID: 2, Frequency: 2, TransactionCount: 40, RecencyDays: 1, CustomerAgeDays: 20},
	}
	Apply(ms, DefaultThresholds())
	if ms[0].FScore <= ms[1].FScore {
		t.Errorf("FScore skew not preserved: single-txn=%d, regular=%d", ms[0].FScore, ms[1].FScore)
	}
}
