package ml

import "math/rand"

// stratifiedSplit shuffles within each class and carves off testFrac of
// every class into the holdout set, preserving the class balance of the
// full set. The seed fixes the split for reproducible training runs.
func stratifiedSplit(x [][]float64, y []int, testFrac float64, seed int64) (xTrain, xTest [][]float64, yTrain, yTest []int) {
	rng := rand.New(rand.NewSource(seed))
	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	// Deterministic class order.
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			if classes[j] < classes[i] {
				classes[i], classes[j] = classes[j], classes[i]
			}
		}
	}
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(float64(len(idx)) * testFrac)
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		for k, i := range idx {
			if k < nTest {
				xTest = append(xTest, x[i])
				yTest = append(yTest, y[i])
			} else {
				xTrain = append(xTrain, x[i])
				yTrain = append(yTrain, y[i])
			}
		}
	}
	return xTrain, xTest, yTrain, yTest
}

// shuffleSplit carves off testFrac of the rows into a holdout after a
// seeded shuffle, for regression targets where there are no classes to
// stratify over.
func shuffleSplit(x [][]float64, y []float64, testFrac float64, seed int64) (xTrain, xTest [][]float64, yTrain, yTest []float64) {
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(len(x))
	nTest := int(float64(len(x)) * testFrac)
	if nTest == 0 && len(x) > 1 {
		nTest = 1
	}
	for k, i := range idx {
		if k < nTest {
			xTest = append(xTest, x[i])
			yTest = append(yTest, y[i])
		} else {
			xTrain = append(xTrain, x[i])
			yTrain = append(yTrain, y[i])
		}
	}
	return xTrain, xTest, yTrain, yTest
}
