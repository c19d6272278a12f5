package ml

import (
	"math"
	"sort"
)

// GBDT is a gradient-boosted regression ensemble trained with huber
// loss, which keeps the occasional whale customer from dominating the
// revenue fit the way squared error would.
type GBDT struct {
	Init      float64     `json:"init"`
	LearnRate float64     `json:"learn_rate"`
	Trees     []*treeNode `json:"trees"`
}

type GBDTOptions struct {
	NumTrees       int
	MaxDepth       int
	MinSamplesLeaf int
	LearnRate      float64
	// HuberAlpha is the quantile of absolute residuals used as the
	// huber transition point each round.
	HuberAlpha float64
}

func DefaultGBDTOptions() GBDTOptions {
	return GBDTOptions{NumTrees: 100, MaxDepth: 3, MinSamplesLeaf: 5, LearnRate: 0.1, HuberAlpha: 0.9}
}

// TrainGBDT fits the ensemble on continuous targets y.
func TrainGBDT(x [][]float64, y []float64, opt GBDTOptions) *GBDT {
	g := &GBDT{Init: median(y), LearnRate: opt.LearnRate}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.Init
	}
	residuals := make([]float64, len(y))
	pseudo := make([]float64, len(y))

	for t := 0; t < opt.NumTrees; t++ {
		for i := range y {
			residuals[i] = y[i] - pred[i]
		}
		delta := huberDelta(residuals, opt.HuberAlpha)
		for i, r := range residuals {
			if math.Abs(r) <= delta {
				pseudo[i] = r
			} else {
				pseudo[i] = delta * sign(r)
			}
		}
		tree := buildRegTree(x, pseudo, treeOptions{
			maxDepth:       opt.MaxDepth,
			minSamplesLeaf: opt.MinSamplesLeaf,
		}, 0)
		g.Trees = append(g.Trees, tree)
		for i, row := range x {
			pred[i] += opt.LearnRate * tree.predict(row)
		}
	}
	return g
}

// Predict returns the boosted estimate for one row.
func (g *GBDT) Predict(row []float64) float64 {
	p := g.Init
	for _, t := range g.Trees {
		p += g.LearnRate * t.predict(row)
	}
	return p
}

func huberDelta(residuals []float64, alpha float64) float64 {
	abs := make([]float64, len(residuals))
	for i, r := range residuals {
		abs[i] = math.Abs(r)
	}
	sort.Float64s(abs)
	d := abs[int(float64(len(abs)-1)*alpha)]
	if d == 0 {
		d = 1
	}
	return d
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
