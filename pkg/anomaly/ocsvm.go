package anomaly

import (
	"fmt"
	"math"
	"sync"
)

// OCSVMConfig configures the one-class boundary model.
type OCSVMConfig struct {
	Nu        float64 // upper bound on the outlier fraction
	Gamma     float64 // RBF width; <=0 means auto 1/n_features
	Tolerance float64
	MaxIter   int
}

// OneClassSVM is an RBF-kernel boundary model trained with a simplified SMO
// sweep. Score is the decision function sum(alpha_i K(x_i, x)) - rho:
// positive inside the learned boundary, negative outside.
type OneClassSVM struct {
	mu sync.RWMutex

	Nu        float64
	Gamma     float64
	Tolerance float64
	MaxIter   int

	SupportVectors [][]float64
	Alphas         []float64
	Rho            float64
	NumFeatures    int
	IsTrained      bool
}

// NewOneClassSVM creates the model with defaults backfilled.
func NewOneClassSVM(cfg OCSVMConfig) *OneClassSVM {
	if cfg.Nu <= 0 || cfg.Nu > 1 {
		cfg.Nu = 0.1
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-3
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 1000
	}
	return &OneClassSVM{Nu: cfg.Nu, Gamma: cfg.Gamma, Tolerance: cfg.Tolerance, MaxIter: cfg.MaxIter}
}

func (svm *OneClassSVM) Name() string { return "one_class_svm" }

// Fit trains on normal (or unlabeled) data.
func (svm *OneClassSVM) Fit(X [][]float64) error {
	svm.mu.Lock()
	defer svm.mu.Unlock()

	if len(X) == 0 {
		return fmt.Errorf("ocsvm: empty training set")
	}
	svm.NumFeatures = len(X[0])
	if svm.Gamma <= 0 {
		svm.Gamma = 1.0 / float64(svm.NumFeatures)
	}

	n := len(X)
	K := make([][]float64, n)
	for i := 0; i < n; i++ {
		K[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			K[i][j] = svm.rbf(X[i], X[j])
		}
	}

	alphas, rho := svm.solve(K, n)

	const keep = 1e-5
	svm.SupportVectors = svm.SupportVectors[:0]
	svm.Alphas = svm.Alphas[:0]
	for i := 0; i < n; i++ {
		if alphas[i] > keep {
			svm.SupportVectors = append(svm.SupportVectors, X[i])
			svm.Alphas = append(svm.Alphas, alphas[i])
		}
	}
	svm.Rho = rho
	svm.IsTrained = true
	return nil
}

// Score returns the signed decision value; negative means anomalous.
func (svm *OneClassSVM) Score(x []float64) float64 {
	svm.mu.RLock()
	defer svm.mu.RUnlock()

	if !svm.IsTrained {
		return 0
	}
	score := -svm.Rho
	for i, sv := range svm.SupportVectors {
		score += svm.Alphas[i] * svm.rbf(sv, x)
	}
	return score
}

func (svm *OneClassSVM) rbf(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Exp(-svm.Gamma * sum)
}

// solve runs the simplified SMO sweep over the dual problem.
func (svm *OneClassSVM) solve(K [][]float64, n int) ([]float64, float64) {
	alphas := make([]float64, n)
	C := 1.0 / (float64(n) * svm.Nu)
	for i := range alphas {
		alphas[i] = 0.5 * C
	}

	for iter := 0; iter < svm.MaxIter; iter++ {
		changed := 0
		for i := 0; i < n; i++ {
			fi := 0.0
			for j := 0; j < n; j++ {
				fi += alphas[j] * K[i][j]
			}
			Ei := fi - 1.0

			if (alphas[i] < C-svm.Tolerance && Ei < -svm.Tolerance) ||
				(alphas[i] > svm.Tolerance && Ei > svm.Tolerance) {

				j := (i + 1) % n
				fj := 0.0
				for k := 0; k < n; k++ {
					fj += alphas[k] * K[j][k]
				}
				Ej := fj - 1.0

				oldJ := alphas[j]
				L := math.Max(0, alphas[i]+alphas[j]-C)
				H := math.Min(C, alphas[i]+alphas[j])
				if math.Abs(L-H) < 1e-8 {
					continue
				}

				eta := 2*K[i][j] - K[i][i] - K[j][j]
				if eta >= -1e-8 {
					continue
				}

				alphas[j] -= (Ej - Ei) / eta
				alphas[j] = math.Max(L, math.Min(H, alphas[j]))
				if math.Abs(alphas[j]-oldJ) < 1e-5 {
					continue
				}
				alphas[i] += oldJ - alphas[j]
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	// Rho from on-margin support vectors, falling back to all of them.
	rho, count := 0.0, 0
	for pass := 0; pass < 2 && count == 0; pass++ {
		for i := 0; i < n; i++ {
			onMargin := alphas[i] > svm.Tolerance && alphas[i] < C-svm.Tolerance
			if pass == 1 {
				onMargin = alphas[i] > svm.Tolerance
			}
			if !onMargin {
				continue
			}
			fi := 0.0
			for j := 0; j < n; j++ {
				fi += alphas[j] * K[i][j]
			}
			rho += fi
			count++
		}
	}
	if count > 0 {
		rho /= float64(count)
	}
	return alphas, rho
}
