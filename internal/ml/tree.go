package ml

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is a binary decision tree node. Internal nodes route on
// Feature < Threshold; leaves carry Value (class-1 probability for
// classification trees, mean target for regression trees).
type treeNode struct {
	Feature   int       `json:"f,omitempty"`
	Threshold float64   `json:"t,omitempty"`
	Left      *treeNode `json:"l,omitempty"`
	Right     *treeNode `json:"r,omitempty"`
	Leaf      bool      `json:"leaf,omitempty"`
	Value     float64   `json:"v"`
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.Leaf {
		if row[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

type treeOptions struct {
	maxDepth       int
	minSamplesLeaf int
	// maxFeatures limits the features considered per split; 0 means all.
	maxFeatures int
	rng         *rand.Rand
}

// buildClassTree grows a weighted gini tree over binary labels. Sample
// weights carry the balanced-class reweighting from the forest.
func buildClassTree(x [][]float64, y []int, w []float64, opt treeOptions, depth int) *treeNode {
	var wSum, wPos float64
	for i := range y {
		wSum += w[i]
		if y[i] == 1 {
			wPos += w[i]
		}
	}
	leaf := &treeNode{Leaf: true, Value: wPos / wSum}
	if depth >= opt.maxDepth || len(x) < 2*opt.minSamplesLeaf || wPos == 0 || wPos == wSum {
		return leaf
	}

	feat, thr, ok := bestClassSplit(x, y, w, opt)
	if !ok {
		return leaf
	}

	var lx, rx [][]float64
	var ly, ry []int
	var lw, rw []float64
	for i, row := range x {
		if row[feat] < thr {
			lx, ly, lw = append(lx, row), append(ly, y[i]), append(lw, w[i])
		} else {
			rx, ry, rw = append(rx, row), append(ry, y[i]), append(rw, w[i])
		}
	}
	if len(lx) < opt.minSamplesLeaf || len(rx) < opt.minSamplesLeaf {
		return leaf
	}
	return &treeNode{
		Feature:   feat,
		Threshold: thr,
		Left:      buildClassTree(lx, ly, lw, opt, depth+1),
		Right:     buildClassTree(rx, ry, rw, opt, depth+1),
	}
}

func bestClassSplit(x [][]float64, y []int, w []float64, opt treeOptions) (int, float64, bool) {
	cols := len(x[0])
	feats := candidateFeatures(cols, opt)

	bestGini := math.Inf(1)
	bestFeat, bestThr, found := 0, 0.0, false

	type sample struct {
		v float64
		y int
		w float64
	}
	for _, f := range feats {
		samples := make([]sample, len(x))
		var totW, totPos float64
		for i, row := range x {
			samples[i] = sample{row[f], y[i], w[i]}
			totW += w[i]
			if y[i] == 1 {
				totPos += w[i]
			}
		}
		sort.Slice(samples, func(a, b int) bool { return samples[a].v < samples[b].v })

		var leftW, leftPos float64
		for i := 0; i < len(samples)-1; i++ {
			leftW += samples[i].w
			if samples[i].y == 1 {
				leftPos += samples[i].w
			}
			if samples[i].v == samples[i+1].v {
				continue
			}
			rightW := totW - leftW
			rightPos := totPos - leftPos
			g := leftW*giniImpurity(leftPos, leftW) + rightW*giniImpurity(rightPos, rightW)
			if g < bestGini {
				bestGini = g
				bestFeat = f
				bestThr = (samples[i].v + samples[i+1].v) / 2
				found = true
			}
		}
	}
	return bestFeat, bestThr, found
}

func giniImpurity(pos, total float64) float64 {
	if total == 0 {
		return 0
	}
	p := pos / total
	return 2 * p * (1 - p)
}

// buildRegTree grows a variance-reduction tree over continuous targets.
func buildRegTree(x [][]float64, y []float64, opt treeOptions, depth int) *treeNode {
	leaf := &treeNode{Leaf: true, Value: mean(y)}
	if depth >= opt.maxDepth || len(x) < 2*opt.minSamplesLeaf {
		return leaf
	}

	feat, thr, ok := bestRegSplit(x, y, opt)
	if !ok {
		return leaf
	}

	var lx, rx [][]float64
	var ly, ry []float64
	for i, row := range x {
		if row[feat] < thr {
			lx, ly = append(lx, row), append(ly, y[i])
		} else {
			rx, ry = append(rx, row), append(ry, y[i])
		}
	}
	if len(lx) < opt.minSamplesLeaf || len(rx) < opt.minSamplesLeaf {
		return leaf
	}
	return &treeNode{
		Feature:   feat,
		Threshold: thr,
		Left:      buildRegTree(lx, ly, opt, depth+1),
		Right:     buildRegTree(rx, ry, opt, depth+1),
	}
}

func bestRegSplit(x [][]float64, y []float64, opt treeOptions) (int, float64, bool) {
	cols := len(x[0])
	feats := candidateFeatures(cols, opt)

	bestSSE := math.Inf(1)
	bestFeat, bestThr, found := 0, 0.0, false

	type sample struct {
		v, y float64
	}
	for _, f := range feats {
		samples := make([]sample, len(x))
		var totSum, totSq float64
		for i, row := range x {
			samples[i] = sample{row[f], y[i]}
			totSum += y[i]
			totSq += y[i] * y[i]
		}
		sort.Slice(samples, func(a, b int) bool { return samples[a].v < samples[b].v })

		var leftN, leftSum, leftSq float64
		for i := 0; i < len(samples)-1; i++ {
			leftN++
			leftSum += samples[i].y
			leftSq += samples[i].y * samples[i].y
			if samples[i].v == samples[i+1].v {
				continue
			}
			rightN := float64(len(samples)) - leftN
			rightSum := totSum - leftSum
			rightSq := totSq - leftSq
			sse := (leftSq - leftSum*leftSum/leftN) + (rightSq - rightSum*rightSum/rightN)
			if sse < bestSSE {
				bestSSE = sse
				bestFeat = f
				bestThr = (samples[i].v + samples[i+1].v) / 2
				found = true
			}
		}
	}
	return bestFeat, bestThr, found
}

func candidateFeatures(cols int, opt treeOptions) []int {
	if opt.maxFeatures <= 0 || opt.maxFeatures >= cols || opt.rng == nil {
		feats := make([]int, cols)
		for i := range feats {
			feats[i] = i
		}
		return feats
	}
	perm := opt.rng.Perm(cols)
	return perm[:opt.maxFeatures]
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}
