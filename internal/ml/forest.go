package ml

import (
	"math"
	"math/rand"
)

// RandomForest is a bagged ensemble of gini trees for binary
// classification. Training reweights samples so both classes contribute
// equally regardless of imbalance, which matters here because churned
// customers are usually the minority.
type RandomForest struct {
	Trees []*treeNode `json:"trees"`
	Seed  int64       `json:"seed"`
}

type ForestOptions struct {
	NumTrees       int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
}

func DefaultForestOptions() ForestOptions {
	return ForestOptions{NumTrees: 100, MaxDepth: 10, MinSamplesLeaf: 2, Seed: 42}
}

// TrainForest fits the ensemble on binary labels y.
func TrainForest(x [][]float64, y []int, opt ForestOptions) *RandomForest {
	rng := rand.New(rand.NewSource(opt.Seed))
	weights := balancedWeights(y)
	mtry := int(math.Sqrt(float64(len(x[0]))))
	if mtry < 1 {
		mtry = 1
	}

	f := &RandomForest{Seed: opt.Seed, Trees: make([]*treeNode, opt.NumTrees)}
	for t := range f.Trees {
		bx := make([][]float64, len(x))
		by := make([]int, len(x))
		bw := make([]float64, len(x))
		for i := range bx {
			j := rng.Intn(len(x))
			bx[i], by[i], bw[i] = x[j], y[j], weights[j]
		}
		f.Trees[t] = buildClassTree(bx, by, bw, treeOptions{
			maxDepth:       opt.MaxDepth,
			minSamplesLeaf: opt.MinSamplesLeaf,
			maxFeatures:    mtry,
			rng:            rng,
		}, 0)
	}
	return f
}

// PredictProba returns the ensemble-average class-1 probability.
func (f *RandomForest) PredictProba(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var s float64
	for _, t := range f.Trees {
		s += t.predict(row)
	}
	return s / float64(len(f.Trees))
}

// balancedWeights assigns each sample n/(k*n_class) so every class has
// equal total weight.
func balancedWeights(y []int) []float64 {
	counts := map[int]int{}
	for _, c := range y {
		counts[c]++
	}
	n := float64(len(y))
	k := float64(len(counts))
	w := make([]float64, len(y))
	for i, c := range y {
		w[i] = n / (k * float64(counts[c]))
	}
	return w
}
