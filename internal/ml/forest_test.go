package ml

import (
	"math"
	"testing"
)

func TestForestSeparableData(t *testing.T) {
	var x [][]float64
	var y []int
	for i := 0; i < 30; i++ {
		x = append(x, []float64{-2 - float64(i)*0.1, float64(i % 3)})
		y = append(y, 0)
		x = append(x, []float64{2 + float64(i)*0.1, float64(i % 3)})
		y = append(y, 1)
	}
	f := TrainForest(x, y, DefaultForestOptions())

	if p := f.PredictProba([]float64{-5, 1}); p > 0.3 {
		t.Errorf("negative-side proba = %v, want < 0.3", p)
	}
	if p := f.PredictProba([]float64{5, 1}); p < 0.7 {
		t.Errorf("positive-side proba = %v, want > 0.7", p)
	}
}

func TestForestDeterministicWithSeed(t *testing.T) {
	x := [][]float64{{-1, 0}, {-2, 1}, {-3, 0}, {1, 1}, {2, 0}, {3, 1}}
	y := []int{0, 0, 0, 1, 1, 1}
	opt := DefaultForestOptions()
	opt.NumTrees = 10
	a := TrainForest(x, y, opt)
	b := TrainForest(x, y, opt)
	for _, row := range x {
		if a.PredictProba(row) != b.PredictProba(row) {
			t.Fatal("same seed produced different ensembles")
		}
	}
}

func TestBalancedWeightsEqualClassMass(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1}
	w := balancedWeights(y)
	var mass0, mass1 float64
	for i, c := range y {
		if c == 0 {
			mass0 += w[i]
		} else {
			mass1 += w[i]
		}
	}
	if math.Abs(mass0-mass1) > 1e-9 {
		t.Errorf("class mass %v vs %v, want equal", mass0, mass1)
	}
}
