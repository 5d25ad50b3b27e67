package ensemble

import (
	"math"
	"math/rand/v2"
	"slices"
)

// TrainTestSplit shuffles row indices 0..n-1 and holds out ceil(testFraction*n).
func TrainTestSplit(n int, testFraction float64, rng *rand.Rand) (train, test []int) {
	perm := rng.Perm(n)
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	test = perm[:nTest]
	train = perm[nTest:]
	return train, test
}

// StratifiedSplit holds out round(testFraction*n_c) rows of every class c,
// and at least one row for classes with two or more rows. Classes with a
// single row stay in the training side.
func StratifiedSplit(labels []string, testFraction float64, rng *rand.Rand) (train, test []int) {
	byClass := make(map[string][]int)
	var order []string
	for i, l := range labels {
		if _, ok := byClass[l]; !ok {
			order = append(order, l)
		}
		byClass[l] = append(byClass[l], i)
	}
	slices.Sort(order)

	for _, class := range order {
		rows := byClass[class]
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

		nTest := int(math.Round(testFraction * float64(len(rows))))
		if nTest == 0 && len(rows) >= 2 {
			nTest = 1
		}
		if nTest >= len(rows) {
			nTest = len(rows) - 1
		}
		test = append(test, rows[:nTest]...)
		train = append(train, rows[nTest:]...)
	}

	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test
}

// BalancedWeights returns n / (k * n_c) per row, k being the number of
// classes present in labels.
func BalancedWeights(labels []string) []float64 {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	n, k := float64(len(labels)), float64(len(counts))
	out := make([]float64, len(labels))
	for i, l := range labels {
		out[i] = n / (k * float64(counts[l]))
	}
	return out
}
