package supervised

import (
	"fmt"
	"sync"

	"github.com/sentrasec/sentra/pkg/nn"
)

// MLPConfig configures the network classifier.
type MLPConfig struct {
	HiddenLayers []int
	LearningRate float64
	MaxIter      int
	Seed         int64
}

// MLP is the feed-forward member of the supervised ensemble: softmax output
// over the observed classes, ReLU hidden layers.
type MLP struct {
	mu sync.RWMutex

	Hidden       []int
	LearningRate float64
	MaxIter      int
	Seed         int64

	Net      *nn.Network
	NClasses int
}

// NewMLP creates a network classifier with defaults backfilled.
func NewMLP(cfg MLPConfig) *MLP {
	if len(cfg.HiddenLayers) == 0 {
		cfg.HiddenLayers = []int{64, 32}
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 200
	}
	return &MLP{
		Hidden:       cfg.HiddenLayers,
		LearningRate: cfg.LearningRate,
		MaxIter:      cfg.MaxIter,
		Seed:         cfg.Seed,
	}
}

func (m *MLP) Name() string { return "mlp" }

// Fit trains the network to completion with early stopping on a 10%
// validation split.
func (m *MLP) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("mlp: bad training set: %d rows, %d labels", len(X), len(y))
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

	net := nn.New(nn.Config{
		Inputs:       len(X[0]),
		Hidden:       m.Hidden,
		Outputs:      nClasses,
		Output:       nn.ActSoftmax,
		LearningRate: m.LearningRate,
		Seed:         m.Seed,
	})

	targets := make([][]float64, len(y))
	for i, c := range y {
		t := make([]float64, nClasses)
		t[c] = 1
		targets[i] = t
	}

	err := net.Fit(X, targets, nn.TrainOpts{
		Epochs:          m.MaxIter,
		BatchSize:       32,
		ValidationSplit: 0.1,
		Patience:        10,
	})
	if err != nil {
		return fmt.Errorf("mlp: %w", err)
	}

	m.mu.Lock()
	m.Net = net
	m.NClasses = nClasses
	m.mu.Unlock()
	return nil
}

// Predict returns the argmax class per row.
func (m *MLP) Predict(X [][]float64) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int, len(X))
	for i, x := range X {
		probs := m.Net.Predict(x)
		best := 0
		for c, p := range probs {
			if p > probs[best] {
				best = c
			}
		}
		out[i] = best
	}
	return out
}
