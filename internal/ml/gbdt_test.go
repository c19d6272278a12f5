package ml

import (
	"math"
	"testing"
)

func TestGBDTLearnsMonotonicTarget(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 100; i++ {
		v := float64(i) / 10
		x = append(x, []float64{v})
		y = append(y, 5*v)
	}
	g := TrainGBDT(x, y, DefaultGBDTOptions())

	lo := g.Predict([]float64{1})
	hi := g.Predict([]float64{9})
	if hi <= lo {
		t.Fatalf("predictions not monotonic: f(1)=%v, f(9)=%v", lo, hi)
	}
	if math.Abs(hi-45) > 15 {
		t.Errorf("f(9) = %v, want near 45", hi)
	}
}

func TestGBDTRobustToOutlier(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 50; i++ {
		x = append(x, []float64{float64(i)})
		y = append(y, 10)
	}
	// One wild target should barely move the body of the fit.
	y[25] = 1e6
	g := TrainGBDT(x, y, DefaultGBDTOptions())
	if p := g.Predict([]float64{10}); p > 1000 {
		t.Errorf("outlier dragged prediction to %v", p)
	}
}

func TestMedian(t *testing.T) {
	if m := median([]float64{3, 1, 2}); m != 2 {
		t.Errorf("odd median = %v, want 2", m)
	}
	if m := median([]float64{4, 1, 2, 3}); m != 2.5 {
		t.Errorf("even median = %v, want 2.5", m)
	}
	if m := median(nil); m != 0 {
		t.Errorf("empty median = %v, want 0", m)
	}
}
