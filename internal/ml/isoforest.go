package ml

import (
	"math"
	"math/rand"
	"sort"
)

// IsolationForest flags outliers by how quickly random axis-aligned
// splits isolate a point. Scores follow the convention where normal
// points sit near 0 and anomalies approach -1; Offset is calibrated at
// fit time so the configured contamination fraction of the training set
// falls below it.
type IsolationForest struct {
	Trees      []*isoNode `json:"trees"`
	SampleSize int        `json:"sample_size"`
	Offset     float64    `json:"offset"`
}

type isoNode struct {
	Feature   int      `json:"f,omitempty"`
	Threshold float64  `json:"t,omitempty"`
	Left      *isoNode `json:"l,omitempty"`
	Right     *isoNode `json:"r,omitempty"`
	Leaf      bool     `json:"leaf,omitempty"`
	Size      int      `json:"n,omitempty"`
}

type IsoForestOptions struct {
	NumTrees      int
	SampleSize    int
	Contamination float64
	Seed          int64
}

func DefaultIsoForestOptions(contamination float64) IsoForestOptions {
	return IsoForestOptions{NumTrees: 100, SampleSize: 256, Contamination: contamination, Seed: 42}
}

// TrainIsoForest fits the ensemble and calibrates Offset from the
// training scores.
func TrainIsoForest(x [][]float64, opt IsoForestOptions) *IsolationForest {
	rng := rand.New(rand.NewSource(opt.Seed))
	psi := opt.SampleSize
	if psi > len(x) {
		psi = len(x)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))

	f := &IsolationForest{SampleSize: psi, Trees: make([]*isoNode, opt.NumTrees)}
	for t := range f.Trees {
		sample := make([][]float64, psi)
		for i := range sample {
			sample[i] = x[rng.Intn(len(x))]
		}
		f.Trees[t] = buildIsoTree(sample, 0, maxDepth, rng)
	}

	scores := make([]float64, len(x))
	for i, row := range x {
		scores[i] = f.Score(row)
	}
	sort.Float64s(scores)
	idx := int(opt.Contamination * float64(len(scores)))
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	f.Offset = scores[idx]
	return f
}

func buildIsoTree(x [][]float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if depth >= maxDepth || len(x) <= 1 {
		return &isoNode{Leaf: true, Size: len(x)}
	}
	feat := rng.Intn(len(x[0]))
	lo, hi := x[0][feat], x[0][feat]
	for _, row := range x {
		if row[feat] < lo {
			lo = row[feat]
		}
		if row[feat] > hi {
			hi = row[feat]
		}
	}
	if lo == hi {
		return &isoNode{Leaf: true, Size: len(x)}
	}
	thr := lo + rng.Float64()*(hi-lo)
	var lx, rx [][]float64
	for _, row := range x {
		if row[feat] < thr {
			lx = append(lx, row)
		} else {
			rx = append(rx, row)
		}
	}
	return &isoNode{
		Feature:   feat,
		Threshold: thr,
		Left:      buildIsoTree(lx, depth+1, maxDepth, rng),
		Right:     buildIsoTree(rx, depth+1, maxDepth, rng),
	}
}

// Score returns the anomaly score for one row, in (-1, 0). Lower is
// more anomalous.
func (f *IsolationForest) Score(row []float64) float64 {
	var total float64
	for _, t := range f.Trees {
		total += pathLength(t, row, 0)
	}
	avg := total / float64(len(f.Trees))
	return -math.Pow(2, -avg/avgPathLength(f.SampleSize))
}

// IsAnomaly reports whether the row falls below the calibrated offset.
func (f *IsolationForest) IsAnomaly(row []float64) bool {
	return f.Score(row) < f.Offset
}

func pathLength(n *isoNode, row []float64, depth int) float64 {
	for !n.Leaf {
		depth++
		if row[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return float64(depth) + avgPathLength(n.Size)
}

// avgPathLength is the expected unsuccessful-search depth of a BST with
// n nodes, the standard normalization for isolation forests.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}
