package ensemble

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainTestSplit(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	train, test := TrainTestSplit(101, 0.2, rng)

	assert.Len(t, test, 21)
	assert.Len(t, train, 80)

	all := append(slices.Clone(train), test...)
	slices.Sort(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}
}

func TestStratifiedSplit(t *testing.T) {
	var labels []string
	for range 50 {
		labels = append(labels, "Clear")
	}
	for range 10 {
		labels = append(labels, "Rain")
	}
	labels = append(labels, "Storm", "Storm", "Cloudy")

	train, test := StratifiedSplit(labels, 0.2, rand.New(rand.NewPCG(3, 4)))
	require.Len(t, append(train, test...), len(labels))

	count := func(rows []int) map[string]int {
		out := make(map[string]int)
		for _, r := range rows {
			out[labels[r]]++
		}
		return out
	}
	testCounts, trainCounts := count(test), count(train)

	assert.Equal(t, 10, testCounts["Clear"])
	assert.Equal(t, 2, testCounts["Rain"])
	assert.Equal(t, 1, testCounts["Storm"])
	assert.Equal(t, 1, trainCounts["Storm"])
	assert.Equal(t, 0, testCounts["Cloudy"])
	assert.Equal(t, 1, trainCounts["Cloudy"])
}

func TestStratifiedSplitIsSeeded(t *testing.T) {
	labels := []string{"a", "b", "a", "b", "a", "b", "a", "a", "b", "a"}

	trainA, testA := StratifiedSplit(labels, 0.2, rand.New(rand.NewPCG(5, 6)))
	trainB, testB := StratifiedSplit(labels, 0.2, rand.New(rand.NewPCG(5, 6)))
	assert.Equal(t, trainA, trainB)
	assert.Equal(t, testA, testB)
}

func TestBalancedWeights(t *testing.T) {
	w := BalancedWeights([]string{"a", "a", "a", "b"})
	require.Len(t, w, 4)

	assert.InDelta(t, 4.0/6.0, w[0], 1e-12)
	assert.InDelta(t, 2.0, w[3], 1e-12)

	var total float64
	for _, x := range w {
		total += x
	}
	assert.InDelta(t, 4.0, total, 1e-12)
}
