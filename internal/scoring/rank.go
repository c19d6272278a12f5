package scoring

import (
	"math"
	"sort"
)

// percentileRanks returns each value's fractional rank in (0,1], with
// tied values sharing the average of their ranks. Ranks are relative to
// the cohort passed in, so scores shift as the customer base shifts;
// that is intended behavior for relative-risk scoring.
func percentileRanks(vals []float64) []float64 {
	n := len(vals)
	if n == 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return vals[idx[a]] < vals[idx[b]] })

	out := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && vals[idx[j+1]] == vals[idx[i]] {
			j++
		}
		// ranks are 1-based; ties get the average rank of the run
		avgRank := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			out[idx[k]] = avgRank / float64(n)
		}
		i = j + 1
	}
	return out
}

// quantile computes the q-th quantile with linear interpolation between
// order statistics. vals is not modified.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)

	if q <= 0 {
		return s[0]
	}
	if q >= 1 {
		return s[len(s)-1]
	}
	pos := q * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	frac := pos - float64(lo)
	return s[lo]*(1-frac) + s[hi]*frac
}

// clip bounds v to [lo, hi].
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
