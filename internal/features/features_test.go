package features

import (
	"errors"
	"math"
	"testing"

	"fuelcast/internal/customer"
)

func TestVectorOrderMatchesColumns(t *testing.T) {
	m := customer.Metrics{
		RecencyDays:      3,
		Frequency:        2,
		TransactionCount: 6,
		TotalSpent:       120000,
		AvgTransaction:   20000,
		StdTransaction:   5000,
		TotalLiters:      300,
		StationDiversity: 2,
		FailureRate:      0.1,
		AppUsageRate:     0.5,
		CustomerAgeDays:  90,
	}
	v := Vector(m)
	if len(v) != len(Columns) {
		t.Fatalf("vector length = %d, want %d", len(v), len(Columns))
	}
	if v[0] != 3 || v[2] != 6 || v[10] != 90 {
		t.Errorf("base columns out of order: %v", v)
	}

	wantRatio := 3.0 / 2.1
	if math.Abs(v[11]-wantRatio) > 1e-12 {
		t.Errorf("recency_frequency_ratio = %v, want %v", v[11], wantRatio)
	}
	wantConsistency := 5000.0 / 20001.0
	if math.Abs(v[12]-wantConsistency) > 1e-12 {
		t.Errorf("value_consistency = %v, want %v", v[12], wantConsistency)
	}
	wantEngagement := 6 * 0.5 / 4.0
	if math.Abs(v[13]-wantEngagement) > 1e-12 {
		t.Errorf("engagement_score = %v, want %v", v[13], wantEngagement)
	}
}

func TestVectorFillsNonFinite(t *testing.T) {
	m := customer.Metrics{RecencyDays: math.NaN(), AvgTransaction: math.Inf(1)}
	for i, x := range Vector(m) {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Errorf("column %d (%s) not filled: %v", i, Columns[i], x)
		}
	}
}

func TestCheckSchema(t *testing.T) {
	if err := CheckSchema(Columns); err != nil {
		t.Fatalf("identical schema rejected: %v", err)
	}

	short := Columns[:len(Columns)-1]
	if err := CheckSchema(short); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("short schema: err = %v, want ErrSchemaMismatch", err)
	}

	swapped := make([]string, len(Columns))
	copy(swapped, Columns)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	if err := CheckSchema(swapped); err == nil {
		t.Error("reordered schema accepted")
	}
}

func TestMatrixRowOrder(t *testing.T) {
	ms := []customer.Metrics{
		{CustomerID: 1, RecencyDays: 1},
		{CustomerID: 2, RecencyDays: 2},
	}
	rows := Matrix(ms)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != 1 || rows[1][0] != 2 {
		t.Errorf("row order does not follow input order: %v", rows)
	}
}
