// Package anomaly holds the unsupervised scorers. Every scorer exposes the
// shared continuity convention: more negative means more anomalous, with the
// fusion threshold sitting at -0.5.
package anomaly

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Scorer is one member of the anomaly ensemble.
type Scorer interface {
	Fit(X [][]float64) error
	Score(x []float64) float64
	Name() string
}

// IForestConfig configures the isolation forest.
type IForestConfig struct {
	Trees      int
	SampleSize int
	Seed       int64
}

// IForest is an isolation forest. Scores follow the usual decision-function
// form 0.5 - 2^(-E[h(x)]/c(n)), so isolated points go negative.
type IForest struct {
	mu sync.RWMutex

	NumTrees   int
	SampleSize int
	Seed       int64
	MaxDepth   int
	Roots      []*IsoNode
}

// IsoNode is a node of an isolation tree. Exported for gob.
type IsoNode struct {
	SplitFeature int
	SplitValue   float64
	Left         *IsoNode
	Right        *IsoNode
	Size         int
}

// NewIForest creates a forest with defaults backfilled.
func NewIForest(cfg IForestConfig) *IForest {
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 256
	}
	return &IForest{
		NumTrees:   cfg.Trees,
		SampleSize: cfg.SampleSize,
		Seed:       cfg.Seed,
		MaxDepth:   int(math.Ceil(math.Log2(float64(cfg.SampleSize)))),
	}
}

func (f *IForest) Name() string { return "isolation_forest" }

// Fit builds the trees from random subsamples.
func (f *IForest) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("iforest: empty training set")
	}

	rng := rand.New(rand.NewSource(f.Seed))
	roots := make([]*IsoNode, f.NumTrees)
	for t := range roots {
		sample := subsample(X, f.SampleSize, rng)
		roots[t] = buildIsoTree(sample, 0, f.MaxDepth, rng)
	}

	f.mu.Lock()
	f.Roots = roots
	f.mu.Unlock()
	return nil
}

// Score returns the signed continuity score for one row.
func (f *IForest) Score(x []float64) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.Roots) == 0 {
		return 0
	}
	total := 0.0
	for _, root := range f.Roots {
		total += isoPathLength(root, x, 0)
	}
	avg := total / float64(len(f.Roots))
	c := avgPathLength(f.SampleSize)
	return 0.5 - math.Pow(2, -avg/c)
}

func buildIsoTree(data [][]float64, depth, maxDepth int, rng *rand.Rand) *IsoNode {
	if len(data) <= 1 || depth >= maxDepth {
		return &IsoNode{Size: len(data)}
	}

	feature := rng.Intn(len(data[0]))
	min, max := featureRange(data, feature)
	if min == max {
		return &IsoNode{Size: len(data)}
	}
	split := min + rng.Float64()*(max-min)

	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &IsoNode{
		SplitFeature: feature,
		SplitValue:   split,
		Size:         len(data),
		Left:         buildIsoTree(left, depth+1, maxDepth, rng),
		Right:        buildIsoTree(right, depth+1, maxDepth, rng),
	}
}

func isoPathLength(node *IsoNode, x []float64, depth int) float64 {
	if node.Left == nil && node.Right == nil {
		return float64(depth) + avgPathLength(node.Size)
	}
	if x[node.SplitFeature] < node.SplitValue {
		return isoPathLength(node.Left, x, depth+1)
	}
	return isoPathLength(node.Right, x, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerMascheroni = 0.5772156649
	return 2.0*(math.Log(float64(n-1))+eulerMascheroni) - 2.0*float64(n-1)/float64(n)
}

func subsample(data [][]float64, size int, rng *rand.Rand) [][]float64 {
	if len(data) <= size {
		return data
	}
	out := make([][]float64, size)
	for i := range out {
		out[i] = data[rng.Intn(len(data))]
	}
	return out
}

func featureRange(data [][]float64, feature int) (float64, float64) {
	min, max := data[0][feature], data[0][feature]
	for _, row := range data {
		if row[feature] < min {
			min = row[feature]
		}
		if row[feature] > max {
			max = row[feature]
		}
	}
	return min, max
}
