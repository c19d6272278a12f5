package ml

import (
	"math"
	"math/rand"
)

// KMeans clusters rows into K groups by nearest centroid. Fitting uses
// kmeans++ seeding with several restarts and keeps the run with the
// lowest inertia, so segment assignments are stable across retrains
// with the same seed.
type KMeans struct {
	K         int         `json:"k"`
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
}

type KMeansOptions struct {
	K       int
	NumInit int
	MaxIter int
	Seed    int64
}

func DefaultKMeansOptions(k int) KMeansOptions {
	return KMeansOptions{K: k, NumInit: 10, MaxIter: 300, Seed: 42}
}

// TrainKMeans fits centroids over x. Requires len(x) >= K.
func TrainKMeans(x [][]float64, opt KMeansOptions) *KMeans {
	rng := rand.New(rand.NewSource(opt.Seed))
	best := &KMeans{K: opt.K, Inertia: math.Inf(1)}
	for run := 0; run < opt.NumInit; run++ {
		centroids := seedPlusPlus(x, opt.K, rng)
		centroids, inertia := lloyd(x, centroids, opt.MaxIter)
		if inertia < best.Inertia {
			best.Centroids = centroids
			best.Inertia = inertia
		}
	}
	return best
}

// Predict returns the index of the nearest centroid.
func (m *KMeans) Predict(row []float64) int {
	bestIdx, bestDist := 0, math.Inf(1)
	for i, c := range m.Centroids {
		if d := sqDist(row, c); d < bestDist {
			bestIdx, bestDist = i, d
		}
	}
	return bestIdx
}

func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, x[rng.Intn(len(x))])
	dists := make([]float64, len(x))
	for len(centroids) < k {
		var total float64
		for i, row := range x {
			d := math.Inf(1)
			for _, c := range centroids {
				if dd := sqDist(row, c); dd < d {
					d = dd
				}
			}
			dists[i] = d
			total += d
		}
		if total == 0 {
			centroids = append(centroids, x[rng.Intn(len(x))])
			continue
		}
		target := rng.Float64() * total
		var cum float64
		pick := len(x) - 1
		for i, d := range dists {
			cum += d
			if cum >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, x[pick])
	}
	// Copy so later iterations don't alias input rows.
	out := make([][]float64, k)
	for i, c := range centroids {
		out[i] = append([]float64(nil), c...)
	}
	return out
}

func lloyd(x, centroids [][]float64, maxIter int) ([][]float64, float64) {
	k := len(centroids)
	cols := len(x[0])
	assign := make([]int, len(x))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, row := range x {
			bestIdx, bestDist := 0, math.Inf(1)
			for c := 0; c < k; c++ {
				if d := sqDist(row, centroids[c]); d < bestDist {
					bestIdx, bestDist = c, d
				}
			}
			if assign[i] != bestIdx {
				assign[i] = bestIdx
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, cols)
		}
		for i, row := range x {
			c := assign[i]
			counts[c]++
			for j, v := range row {
				sums[c][j] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}
	var inertia float64
	for i, row := range x {
		inertia += sqDist(row, centroids[assign[i]])
	}
	return centroids, inertia
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
