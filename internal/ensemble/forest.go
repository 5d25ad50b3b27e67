// Package ensemble implements bagged CART forests whose individual trees can
// be queried on their own, which the predictor uses for spread estimates.
package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

type Kind string

const (
	Classification Kind = "classification"
	Regression     Kind = "regression"
)

const DefaultTrees = 150

// Estimator is a single weak learner.
type Estimator interface {
	PredictOne(x []float64) []float64
}

type Params struct {
	Trees          int
	MaxFeatures    int // 0: sqrt(features) for classifiers, all for regressors
	MinSamplesLeaf int
	MaxDepth       int // 0: unlimited
	Seed           uint64
	Workers        int
}

func (p Params) withDefaults(kind Kind, features int) Params {
	if p.Trees <= 0 {
		p.Trees = DefaultTrees
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > features {
		if kind == Classification {
			p.MaxFeatures = max(1, int(math.Sqrt(float64(features))))
		} else {
			p.MaxFeatures = features
		}
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	if p.Workers <= 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	return p
}

// Forest is a fitted ensemble. Classes is set for classifiers only.
type Forest struct {
	Kind     Kind     `json:"kind"`
	Classes  []string `json:"classes,omitempty"`
	Features int      `json:"features"`
	Trees    []*Tree  `json:"trees"`
}

func (f *Forest) Estimators() []Estimator {
	out := make([]Estimator, len(f.Trees))
	for i, t := range f.Trees {
		out[i] = t
	}
	return out
}

// PredictProba averages the per-tree class distributions.
func (f *Forest) PredictProba(x []float64) []float64 {
	proba := make([]float64, len(f.Classes))
	for _, t := range f.Trees {
		for c, p := range t.PredictOne(x) {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba
}

// PredictClass returns the class with the highest mean vote.
func (f *Forest) PredictClass(x []float64) string {
	proba := f.PredictProba(x)
	best := 0
	for c := range proba {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.Classes[best]
}

// Probability returns the mean vote for one class, 0 when the class is unknown.
func (f *Forest) Probability(proba []float64, class string) float64 {
	for c, name := range f.Classes {
		if name == class {
			return proba[c]
		}
	}
	return 0
}

// PerTree returns each regression tree's prediction for x.
func (f *Forest) PerTree(x []float64) []float64 {
	out := make([]float64, len(f.Trees))
	for i, t := range f.Trees {
		out[i] = t.PredictOne(x)[0]
	}
	return out
}

func (f *Forest) Predict(x []float64) float64 {
	return stat.Mean(f.PerTree(x), nil)
}

// Spread returns the mean and population standard deviation of the per-tree
// predictions.
func (f *Forest) Spread(x []float64) (mean, std float64) {
	mean, variance := stat.PopMeanVariance(f.PerTree(x), nil)
	return mean, math.Sqrt(variance)
}

// FitClassifier trains a classification forest. weights may be nil.
func FitClassifier(ctx context.Context, x [][]float64, y []string, classes []string, weights []float64, p Params) (*Forest, error) {
	if err := checkShape(x, len(y), weights); err != nil {
		return nil, err
	}
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]int, len(y))
	for i, label := range y {
		c, ok := index[label]
		if !ok {
			return nil, fmt.Errorf("unknown class %q at row %d", label, i)
		}
		encoded[i] = c
	}

	base := treeBuilder{
		kind:       Classification,
		x:          x,
		classes:    encoded,
		numClasses: len(classes),
	}
	trees, err := fit(ctx, base, weights, p.withDefaults(Classification, len(x[0])))
	if err != nil {
		return nil, err
	}
	return &Forest{Kind: Classification, Classes: classes, Features: len(x[0]), Trees: trees}, nil
}

// FitRegressor trains an unweighted regression forest.
func FitRegressor(ctx context.Context, x [][]float64, y []float64, p Params) (*Forest, error) {
	if err := checkShape(x, len(y), nil); err != nil {
		return nil, err
	}
	base := treeBuilder{
		kind:    Regression,
		x:       x,
		targets: y,
	}
	trees, err := fit(ctx, base, nil, p.withDefaults(Regression, len(x[0])))
	if err != nil {
		return nil, err
	}
	return &Forest{Kind: Regression, Features: len(x[0]), Trees: trees}, nil
}

func checkShape(x [][]float64, n int, weights []float64) error {
	if len(x) == 0 {
		return errors.New("no training rows")
	}
	if len(x) != n {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", len(x), n)
	}
	if weights != nil && len(weights) != n {
		return fmt.Errorf("weights (%d) and targets (%d) differ", len(weights), n)
	}
	if len(x[0]) == 0 {
		return errors.New("no feature columns")
	}
	return nil
}

// fit grows p.Trees trees in parallel. Tree i draws from its own PCG stream
// seeded with (p.Seed, i), so results do not depend on scheduling.
func fit(ctx context.Context, base treeBuilder, weights []float64, p Params) ([]*Tree, error) {
	n := len(base.x)
	trees := make([]*Tree, p.Trees)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)

	for i := range trees {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(i)))

			// Bootstrap as per-sample multiplicities folded into the weights.
			counts := make([]float64, n)
			for range n {
				counts[rng.IntN(n)]++
			}
			samples := make([]int, 0, n)
			w := make([]float64, n)
			for j, c := range counts {
				if c == 0 {
					continue
				}
				samples = append(samples, j)
				w[j] = c
				if weights != nil {
					w[j] *= weights[j]
				}
			}

			b := base
			b.weights = w
			b.maxFeatures = p.MaxFeatures
			b.minLeaf = p.MinSamplesLeaf
			b.maxDepth = p.MaxDepth
			b.rng = rng
			b.nodes = nil
			trees[i] = b.build(samples)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fitting forest: %w", err)
	}
	return trees, nil
}
