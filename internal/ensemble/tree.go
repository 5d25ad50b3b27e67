package ensemble

import (
	"math"
	"math/rand/v2"
	"slices"
)

// LeafFeature marks a node without a split.
const LeafFeature = -1

// Node is one entry of a flattened tree. Leaves have Feature == -1 and carry
// either a class distribution or a single regression value.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// PredictOne walks the tree and returns the leaf output for x.
func (t *Tree) PredictOne(x []float64) []float64 {
	n := &t.Nodes[0]
	for n.Feature != LeafFeature {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Value
}

func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature == LeafFeature {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// treeBuilder grows one CART tree on weighted samples.
type treeBuilder struct {
	kind        Kind
	x           [][]float64
	classes     []int
	targets     []float64
	weights     []float64
	numClasses  int
	maxFeatures int
	minLeaf     int
	maxDepth    int
	rng         *rand.Rand

	nodes   []Node
	scratch []int
}

func (b *treeBuilder) build(samples []int) *Tree {
	b.scratch = make([]int, len(samples))
	b.grow(samples, 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(samples []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: LeafFeature})

	value, pure := b.leafValue(samples)
	if pure || len(samples) < 2*b.minLeaf || (b.maxDepth > 0 && depth >= b.maxDepth) {
		b.nodes[id].Value = value
		return id
	}

	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		b.nodes[id].Value = value
		return id
	}

	// Partition in place: left side holds x <= threshold.
	mid := 0
	for i, s := range samples {
		if b.x[s][feature] <= threshold {
			samples[i], samples[mid] = samples[mid], samples[i]
			mid++
		}
	}

	left := b.grow(samples[:mid], depth+1)
	right := b.grow(samples[mid:], depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = left
	b.nodes[id].Right = right
	return id
}

// leafValue returns the node output and whether the node cannot be split further.
func (b *treeBuilder) leafValue(samples []int) ([]float64, bool) {
	if b.kind == Classification {
		dist := make([]float64, b.numClasses)
		total := 0.0
		for _, s := range samples {
			dist[b.classes[s]] += b.weights[s]
			total += b.weights[s]
		}
		nonZero := 0
		for c := range dist {
			if dist[c] > 0 {
				nonZero++
			}
			if total > 0 {
				dist[c] /= total
			}
		}
		return dist, nonZero <= 1
	}

	sum, total := 0.0, 0.0
	first := b.targets[samples[0]]
	constant := true
	for _, s := range samples {
		sum += b.weights[s] * b.targets[s]
		total += b.weights[s]
		if b.targets[s] != first {
			constant = false
		}
	}
	return []float64{sum / total}, constant
}

// bestSplit draws features without replacement and keeps searching past
// maxFeatures until at least one valid split has been found.
func (b *treeBuilder) bestSplit(samples []int) (int, float64, bool) {
	order := b.rng.Perm(len(b.x[0]))

	bestScore := math.Inf(-1)
	bestFeature, bestThreshold := 0, 0.0
	found := false

	for visited, f := range order {
		if visited >= b.maxFeatures && found {
			break
		}
		score, threshold, ok := b.scanFeature(samples, f)
		if ok && score > bestScore {
			bestScore, bestFeature, bestThreshold = score, f, threshold
			found = true
		}
	}
	return bestFeature, bestThreshold, found
}

// scanFeature sorts samples by feature f and returns the best proxy score.
// Higher is better: sum over children of (class sums squared / weight) for
// Gini, and (target sum squared / weight) for squared error.
func (b *treeBuilder) scanFeature(samples []int, f int) (float64, float64, bool) {
	sorted := b.scratch[:len(samples)]
	copy(sorted, samples)
	slices.SortFunc(sorted, func(i, j int) int {
		xi, xj := b.x[i][f], b.x[j][f]
		switch {
		case xi < xj:
			return -1
		case xi > xj:
			return 1
		}
		return 0
	})

	if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
		return 0, 0, false
	}

	if b.kind == Classification {
		return b.scanGini(sorted, f)
	}
	return b.scanSquaredError(sorted, f)
}

func (b *treeBuilder) scanGini(sorted []int, f int) (float64, float64, bool) {
	total := make([]float64, b.numClasses)
	totalW := 0.0
	for _, s := range sorted {
		total[b.classes[s]] += b.weights[s]
		totalW += b.weights[s]
	}

	left := make([]float64, b.numClasses)
	leftW := 0.0
	best := math.Inf(-1)
	threshold := 0.0
	found := false

	for k := 0; k < len(sorted)-1; k++ {
		s := sorted[k]
		left[b.classes[s]] += b.weights[s]
		leftW += b.weights[s]

		cur, next := b.x[s][f], b.x[sorted[k+1]][f]
		if cur == next || k+1 < b.minLeaf || len(sorted)-k-1 < b.minLeaf {
			continue
		}
		rightW := totalW - leftW
		if leftW <= 0 || rightW <= 0 {
			continue
		}

		var ls, rs float64
		for c := range total {
			r := total[c] - left[c]
			ls += left[c] * left[c]
			rs += r * r
		}
		score := ls/leftW + rs/rightW
		if score > best {
			best = score
			threshold = midpoint(cur, next)
			found = true
		}
	}
	return best, threshold, found
}

func (b *treeBuilder) scanSquaredError(sorted []int, f int) (float64, float64, bool) {
	totalSum, totalW := 0.0, 0.0
	for _, s := range sorted {
		totalSum += b.weights[s] * b.targets[s]
		totalW += b.weights[s]
	}

	leftSum, leftW := 0.0, 0.0
	best := math.Inf(-1)
	threshold := 0.0
	found := false

	for k := 0; k < len(sorted)-1; k++ {
		s := sorted[k]
		leftSum += b.weights[s] * b.targets[s]
		leftW += b.weights[s]

		cur, next := b.x[s][f], b.x[sorted[k+1]][f]
		if cur == next || k+1 < b.minLeaf || len(sorted)-k-1 < b.minLeaf {
			continue
		}
		rightW := totalW - leftW
		if leftW <= 0 || rightW <= 0 {
			continue
		}

		rightSum := totalSum - leftSum
		score := leftSum*leftSum/leftW + rightSum*rightSum/rightW
		if score > best {
			best = score
			threshold = midpoint(cur, next)
			found = true
		}
	}
	return best, threshold, found
}

func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}
