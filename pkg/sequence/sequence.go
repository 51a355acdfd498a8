// Package sequence builds sliding windows over the feature stream and trains
// a small recurrent model on them, for attack patterns that only show up
// across time.
package sequence

import (
	"fmt"
	"sync"

	"github.com/sentrasec/sentra/pkg/errs"
	"github.com/sentrasec/sentra/pkg/nn"
)

// DefaultWindowLength is the default sliding-window size.
const DefaultWindowLength = 10

// BuildWindows slides a window of the given length one row at a time over X:
// window i covers rows [i, i+length). Each window is labeled with the label
// of its last row; pass nil labels for the unsupervised case. Cost is one
// pass, O(rows * length), sharing backing rows instead of copying them.
func BuildWindows(X [][]float64, labels []int, length int) ([][][]float64, []int, error) {
	if length <= 0 {
		length = DefaultWindowLength
	}
	if len(X) < length {
		return nil, nil, &errs.InsufficientDataError{Model: "sequence", Rows: len(X), Required: length}
	}

	n := len(X) - length + 1
	windows := make([][][]float64, n)
	var windowLabels []int
	if labels != nil {
		windowLabels = make([]int, n)
	}
	for i := 0; i < n; i++ {
		windows[i] = X[i : i+length]
		if labels != nil {
			windowLabels[i] = labels[i+length-1]
		}
	}
	return windows, windowLabels, nil
}

// Config configures the sequence model.
type Config struct {
	WindowLength int
	Epochs       int
	BatchSize    int
	Seed         int64
}

// Model is a two-layer recurrent network (64 then 32 units) with a dense
// head. With labels it is a window classifier: one sigmoid unit for binary
// problems, softmax otherwise. Without labels it reconstructs the window's
// own feature values and acts as a sequence anomaly detector.
type Model struct {
	mu sync.RWMutex

	WindowLength int
	Epochs       int
	BatchSize    int
	Seed         int64

	Net       *nn.Recurrent
	NClasses  int // 0 in reconstruction mode
	IsTrained bool
}

// NewModel creates a sequence model with defaults backfilled.
func NewModel(cfg Config) *Model {
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = DefaultWindowLength
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 50
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Model{WindowLength: cfg.WindowLength, Epochs: cfg.Epochs, BatchSize: cfg.BatchSize, Seed: cfg.Seed}
}

func (m *Model) Name() string { return "sequence" }

// Trained reports whether Fit has completed.
func (m *Model) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsTrained
}

// Fit windows the stream and trains with an 80/20 validation split and early
// stopping (patience 10). labels nil selects reconstruction mode. A stream
// shorter than the window length returns InsufficientDataError; the caller
// logs a warning and skips this model.
func (m *Model) Fit(X [][]float64, labels []int) error {
	windows, windowLabels, err := BuildWindows(X, labels, m.WindowLength)
	if err != nil {
		return err
	}

	inputDim := len(X[0])
	var targets [][]float64
	var outDim int
	var act nn.Activation
	nClasses := 0

	if labels == nil {
		// Reconstruction: regress the window's own flattened feature values.
		outDim = inputDim * m.WindowLength
		act = nn.ActIdentity
		targets = make([][]float64, len(windows))
		for i, w := range windows {
			targets[i] = flatten(w)
		}
	} else {
		for _, c := range windowLabels {
			if c+1 > nClasses {
				nClasses = c + 1
			}
		}
		if nClasses <= 2 {
			nClasses = 2
			outDim = 1
			act = nn.ActSigmoid
			targets = make([][]float64, len(windows))
			for i, c := range windowLabels {
				targets[i] = []float64{float64(c)}
			}
		} else {
			outDim = nClasses
			act = nn.ActSoftmax
			targets = make([][]float64, len(windows))
			for i, c := range windowLabels {
				t := make([]float64, nClasses)
				t[c] = 1
				targets[i] = t
			}
		}
	}

	net := nn.NewRecurrent(nn.RecurrentConfig{
		InputDim:     inputDim,
		Hidden:       []int{64, 32},
		OutDim:       outDim,
		Output:       act,
		LearningRate: 0.005,
		Seed:         m.Seed,
	})

	err = net.Fit(windows, targets, nn.TrainOpts{
		Epochs:          m.Epochs,
		BatchSize:       m.BatchSize,
		ValidationSplit: 0.2,
		Patience:        10,
	})
	if err != nil {
		return fmt.Errorf("sequence: %w", err)
	}

	m.mu.Lock()
	m.Net = net
	m.NClasses = nClasses
	m.IsTrained = true
	m.mu.Unlock()
	return nil
}

// Predict classifies every window of the stream; classifier mode only.
func (m *Model) Predict(X [][]float64) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.IsTrained {
		return nil, &errs.NotFittedError{Component: "sequence model"}
	}
	if m.NClasses == 0 {
		return nil, fmt.Errorf("sequence: model trained in reconstruction mode")
	}
	windows, _, err := BuildWindows(X, nil, m.WindowLength)
	if err != nil {
		return nil, err
	}

	out := make([]int, len(windows))
	for i, w := range windows {
		pred := m.Net.Predict(w)
		if len(pred) == 1 {
			if pred[0] > 0.5 {
				out[i] = 1
			}
		} else {
			best := 0
			for c, p := range pred {
				if p > pred[best] {
					best = c
				}
			}
			out[i] = best
		}
	}
	return out, nil
}

// ReconstructionErrors scores every window in reconstruction mode; higher
// means more anomalous.
func (m *Model) ReconstructionErrors(X [][]float64) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.IsTrained {
		return nil, &errs.NotFittedError{Component: "sequence model"}
	}
	if m.NClasses != 0 {
		return nil, fmt.Errorf("sequence: model trained in classifier mode")
	}
	windows, _, err := BuildWindows(X, nil, m.WindowLength)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(windows))
	for i, w := range windows {
		pred := m.Net.Predict(w)
		target := flatten(w)
		sum := 0.0
		for j := range target {
			d := pred[j] - target[j]
			sum += d * d
		}
		out[i] = sum / float64(len(target))
	}
	return out, nil
}

func flatten(window [][]float64) []float64 {
	out := make([]float64, 0, len(window)*len(window[0]))
	for _, row := range window {
		out = append(out, row...)
	}
	return out
}
