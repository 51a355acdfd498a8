package supervised

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// ForestConfig configures the bagged tree ensemble.
type ForestConfig struct {
	Estimators int
	MaxDepth   int
	Seed       int64
}

// Forest is a bagged ensemble of gini trees with random feature subspaces.
type Forest struct {
	mu sync.RWMutex

	Estimators int
	MaxDepth   int
	Seed       int64
	Trees      []*TreeNode
	NClasses   int
}

// NewForest creates a forest with defaults backfilled.
func NewForest(cfg ForestConfig) *Forest {
	if cfg.Estimators <= 0 {
		cfg.Estimators = 100
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	return &Forest{Estimators: cfg.Estimators, MaxDepth: cfg.MaxDepth, Seed: cfg.Seed}
}

func (f *Forest) Name() string { return "random_forest" }

// Fit trains each tree on a bootstrap sample with sqrt(n_features) subspaces.
func (f *Forest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("forest: bad training set: %d rows, %d labels", len(X), len(y))
	}

	nClasses := 0
	for _, c := range y {
		if c+1 > nClasses {
			nClasses = c + 1
		}
	}
	maxFeatures := int(math.Sqrt(float64(len(X[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	rng := rand.New(rand.NewSource(f.Seed))
	trees := make([]*TreeNode, f.Estimators)
	for t := range trees {
		boot := make([]int, len(X))
		for i := range boot {
			boot[i] = rng.Intn(len(X))
		}
		trees[t] = buildClassTree(X, y, boot, 0, f.MaxDepth, maxFeatures, nClasses, rng)
	}

	f.mu.Lock()
	f.Trees = trees
	f.NClasses = nClasses
	f.mu.Unlock()
	return nil
}

// Predict returns the per-row plurality class across trees.
func (f *Forest) Predict(X [][]float64) []int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]int, len(X))
	for i, x := range X {
		votes := make([]int, f.NClasses)
		for _, tree := range f.Trees {
			votes[tree.classify(x)]++
		}
		best := 0
		for c, n := range votes {
			if n > votes[best] {
				best = c
			}
		}
		out[i] = best
	}
	return out
}
