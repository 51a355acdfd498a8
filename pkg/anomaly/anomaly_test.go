package anomaly

import (
	"errors"
	"testing"

	"github.com/sentrasec/sentra/pkg/errs"
)

// cluster builds points spread deterministically around the origin.
func cluster(n int) [][]float64 {
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{
			float64(i%19)*0.1 - 0.9,
			float64(i%23)*0.1 - 1.1,
		}
	}
	return X
}

func TestIForestRanksOutlierBelowInlier(t *testing.T) {
	f := NewIForest(IForestConfig{Trees: 50, SampleSize: 64, Seed: 11})
	if err := f.Fit(cluster(256)); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	inlier := f.Score([]float64{0, 0})
	outlier := f.Score([]float64{25, -25})
	if outlier >= inlier {
		t.Errorf("outlier score %.3f should be below inlier score %.3f", outlier, inlier)
	}
	if outlier >= 0 {
		t.Errorf("far outlier score = %.3f, want negative", outlier)
	}
}

func TestIForestEmptyFit(t *testing.T) {
	f := NewIForest(IForestConfig{})
	if err := f.Fit(nil); err == nil {
		t.Fatal("expected error on empty training set")
	}
}

func TestOneClassSVMSeparatesOutlier(t *testing.T) {
	svm := NewOneClassSVM(OCSVMConfig{Nu: 0.1, MaxIter: 200})
	if err := svm.Fit(cluster(80)); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	inlier := svm.Score([]float64{0, 0})
	outlier := svm.Score([]float64{30, 30})
	if outlier >= inlier {
		t.Errorf("outlier score %.4f should be below inlier score %.4f", outlier, inlier)
	}
}

func TestOneClassSVMUntrainedScoresZero(t *testing.T) {
	svm := NewOneClassSVM(OCSVMConfig{})
	if got := svm.Score([]float64{1, 2}); got != 0 {
		t.Errorf("untrained score = %v, want 0", got)
	}
}

func TestAutoencoderRejectsSmallBatch(t *testing.T) {
	ae := NewAutoencoder(AutoencoderConfig{Epochs: 1})
	err := ae.Fit(cluster(MinAutoencoderRows - 1))

	var insufficient *errs.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientDataError", err)
	}
	if insufficient.Required != MinAutoencoderRows {
		t.Errorf("required = %d, want %d", insufficient.Required, MinAutoencoderRows)
	}
	if ae.IsTrained {
		t.Error("autoencoder must stay untrained after a rejected batch")
	}
}

func TestAutoencoderScoresOutlierLower(t *testing.T) {
	ae := NewAutoencoder(AutoencoderConfig{Epochs: 15, BatchSize: 64, Seed: 5})
	if err := ae.Fit(cluster(MinAutoencoderRows)); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	inlier := ae.Score([]float64{0, 0})
	outlier := ae.Score([]float64{40, -40})
	if outlier >= inlier {
		t.Errorf("outlier score %.3f should be below inlier score %.3f", outlier, inlier)
	}
	if ae.ReconstructionError([]float64{40, -40}) <= ae.ReconstructionError([]float64{0, 0}) {
		t.Error("outlier reconstruction error should exceed inlier error")
	}
}

func TestScorerNames(t *testing.T) {
	tests := []struct {
		s    Scorer
		want string
	}{
		{NewIForest(IForestConfig{}), "isolation_forest"},
		{NewOneClassSVM(OCSVMConfig{}), "one_class_svm"},
		{NewAutoencoder(AutoencoderConfig{}), "autoencoder"},
	}
	for _, tt := range tests {
		if tt.s.Name() != tt.want {
			t.Errorf("Name() = %q, want %q", tt.s.Name(), tt.want)
		}
	}
}
