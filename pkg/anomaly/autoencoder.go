package anomaly

import (
	"fmt"
	"math"
	"sync"

	"github.com/sentrasec/sentra/pkg/errs"
	"github.com/sentrasec/sentra/pkg/nn"
)

// MinAutoencoderRows is the smallest fit batch the reconstruction network
// accepts. Below it the model stays absent from the ensemble.
const MinAutoencoderRows = 1000

// AutoencoderConfig configures the reconstruction network.
type AutoencoderConfig struct {
	Epochs    int
	BatchSize int
	Seed      int64
}

// Autoencoder is the reconstruction member of the anomaly ensemble: a
// 128-64-32-64-128 encoder-decoder trained to reproduce its input. The raw
// anomaly signal is the per-row reconstruction error (higher = more
// anomalous); Score flips and rescales it onto the shared continuity
// convention using error statistics calibrated on the fit batch.
type Autoencoder struct {
	mu sync.RWMutex

	Epochs    int
	BatchSize int
	Seed      int64

	Net       *nn.Network
	ErrMean   float64
	ErrStd    float64
	IsTrained bool
}

// NewAutoencoder creates the model with defaults backfilled.
func NewAutoencoder(cfg AutoencoderConfig) *Autoencoder {
	if cfg.Epochs <= 0 {
		cfg.Epochs = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Autoencoder{Epochs: cfg.Epochs, BatchSize: cfg.BatchSize, Seed: cfg.Seed}
}

func (a *Autoencoder) Name() string { return "autoencoder" }

// Fit trains the encoder-decoder with early stopping (patience 10) on a 20%
// held-out split. Batches under MinAutoencoderRows are rejected with
// InsufficientDataError so the caller can skip this member and continue.
func (a *Autoencoder) Fit(X [][]float64) error {
	if len(X) < MinAutoencoderRows {
		return &errs.InsufficientDataError{Model: a.Name(), Rows: len(X), Required: MinAutoencoderRows}
	}

	net := nn.New(nn.Config{
		Inputs:       len(X[0]),
		Hidden:       []int{128, 64, 32, 64, 128},
		Outputs:      len(X[0]),
		Output:       nn.ActIdentity,
		LearningRate: 0.001,
		Seed:         a.Seed,
	})

	err := net.Fit(X, X, nn.TrainOpts{
		Epochs:          a.Epochs,
		BatchSize:       a.BatchSize,
		ValidationSplit: 0.2,
		Patience:        10,
	})
	if err != nil {
		return fmt.Errorf("autoencoder: %w", err)
	}

	// Calibrate the error distribution on the training batch.
	mean, sq := 0.0, 0.0
	for _, x := range X {
		e := reconError(net, x)
		mean += e
		sq += e * e
	}
	mean /= float64(len(X))
	variance := sq/float64(len(X)) - mean*mean
	std := 0.0
	if variance > 0 {
		std = math.Sqrt(variance)
	}
	if std == 0 {
		std = 1
	}

	a.mu.Lock()
	a.Net = net
	a.ErrMean = mean
	a.ErrStd = std
	a.IsTrained = true
	a.mu.Unlock()
	return nil
}

// ReconstructionError returns the raw mean-squared reconstruction error.
func (a *Autoencoder) ReconstructionError(x []float64) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.IsTrained {
		return 0
	}
	return reconError(a.Net, x)
}

// Score maps the reconstruction error onto the shared convention: rows near
// the calibrated mean score around zero, rows past mean+1.5*std cross the
// -0.5 fusion threshold.
func (a *Autoencoder) Score(x []float64) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.IsTrained {
		return 0
	}
	e := reconError(a.Net, x)
	return (a.ErrMean - e) / (3 * a.ErrStd)
}

func reconError(net *nn.Network, x []float64) float64 {
	out := net.Predict(x)
	sum := 0.0
	for i := range x {
		d := out[i] - x[i]
		sum += d * d
	}
	return sum / float64(len(x))
}
