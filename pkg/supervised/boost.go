package supervised

import (
	"fmt"
	"math"
	"sync"
)

// BoostConfig configures the boosted-tree ensemble.
type BoostConfig struct {
	Estimators   int
	LearningRate float64
	MaxDepth     int
}

// Boost is a sequential gradient-boosted ensemble of shallow regression
// trees under logistic loss. Multiclass problems are handled one-vs-rest.
type Boost struct {
	mu sync.RWMutex

	Estimators   int
	LearningRate float64
	MaxDepth     int

	Stages   [][]*TreeNode // [class][stage]
	Base     []float64     // initial log-odds per class
	NClasses int
}

// NewBoost creates a boosted ensemble with defaults backfilled.
func NewBoost(cfg BoostConfig) *Boost {
	if cfg.Estimators <= 0 {
		cfg.Estimators = 100
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	return &Boost{Estimators: cfg.Estimators, LearningRate: cfg.LearningRate, MaxDepth: cfg.MaxDepth}
}

func (b *Boost) Name() string { return "gradient_boost" }

// Fit trains one binary booster per class on the full batch.
func (b *Boost) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("boost: bad training set: %d rows, %d labels", len(X), len(y))
	}

	nClasses := 0
	for _, c := range y {
		if c+1 > nClasses {
			nClasses = c + 1
		}
	}
	if nClasses < 2 {
		nClasses = 2
	}

	stages := make([][]*TreeNode, nClasses)
	base := make([]float64, nClasses)
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	for class := 0; class < nClasses; class++ {
		target := make([]float64, len(y))
		pos := 0
		for i, c := range y {
			if c == class {
				target[i] = 1
				pos++
			}
		}
		// Prior log-odds, clamped away from degenerate all/none batches.
		p := (float64(pos) + 1) / (float64(len(y)) + 2)
		base[class] = math.Log(p / (1 - p))

		score := make([]float64, len(y))
		for i := range score {
			score[i] = base[class]
		}

		residual := make([]float64, len(y))
		for stage := 0; stage < b.Estimators; stage++ {
			for i := range residual {
				residual[i] = target[i] - sigmoid(score[i])
			}
			tree := buildRegTree(X, residual, idx, 0, b.MaxDepth)
			stages[class] = append(stages[class], tree)
			for i, x := range X {
				score[i] += b.LearningRate * tree.regress(x)
			}
		}
	}

	b.mu.Lock()
	b.Stages = stages
	b.Base = base
	b.NClasses = nClasses
	b.mu.Unlock()
	return nil
}

// Predict returns the class with the highest boosted score per row.
func (b *Boost) Predict(X [][]float64) []int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]int, len(X))
	for i, x := range X {
		best, bestScore := 0, math.Inf(-1)
		for class := 0; class < b.NClasses; class++ {
			s := b.Base[class]
			for _, tree := range b.Stages[class] {
				s += b.LearningRate * tree.regress(x)
			}
			if s > bestScore {
				best, bestScore = class, s
			}
		}
		out[i] = best
	}
	return out
}

func sigmoid(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }
