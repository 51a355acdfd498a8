package sequence

import (
	"errors"
	"testing"

	"github.com/sentrasec/sentra/pkg/errs"
)

func stream(n int) [][]float64 {
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{float64(i%7) * 0.1, float64(i%5) * 0.2}
	}
	return X
}

func TestBuildWindows(t *testing.T) {
	X := stream(25)
	labels := make([]int, 25)
	labels[14] = 1

	windows, windowLabels, err := BuildWindows(X, labels, 10)
	if err != nil {
		t.Fatalf("BuildWindows: %v", err)
	}
	if len(windows) != 16 {
		t.Fatalf("got %d windows, want 16", len(windows))
	}
	if len(windows[0]) != 10 {
		t.Errorf("window length = %d, want 10", len(windows[0]))
	}
	// Window 5 covers rows [5,15); its last row is 14, the labeled one.
	if windowLabels[5] != 1 {
		t.Errorf("window 5 label = %d, want 1 (label of last row)", windowLabels[5])
	}
	if windowLabels[4] != 0 || windowLabels[6] != 0 {
		t.Error("neighboring windows must not inherit the label")
	}
}

func TestBuildWindowsSharesBackingRows(t *testing.T) {
	X := stream(15)
	windows, _, err := BuildWindows(X, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if &windows[0][0][0] != &X[0][0] {
		t.Error("windows should alias the input rows, not copy them")
	}
}

func TestBuildWindowsTooShort(t *testing.T) {
	_, _, err := BuildWindows(stream(5), nil, 10)
	var insufficient *errs.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientDataError", err)
	}
}

func TestModelClassifierMode(t *testing.T) {
	// Class follows a level shift: the second half of the stream runs high.
	n := 80
	X := make([][]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		base := 0.0
		if i >= n/2 {
			base = 3.0
			labels[i] = 1
		}
		X[i] = []float64{base + float64(i%9)*0.05, base - float64(i%6)*0.05}
	}

	m := NewModel(Config{WindowLength: 5, Epochs: 40, BatchSize: 16, Seed: 9})
	if err := m.Fit(X, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !m.Trained() {
		t.Fatal("model should report trained")
	}

	preds, err := m.Predict(X)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != n-5+1 {
		t.Fatalf("got %d predictions, want %d", len(preds), n-5+1)
	}

	if _, err := m.ReconstructionErrors(X); err == nil {
		t.Error("classifier mode must reject ReconstructionErrors")
	}
}

func TestModelReconstructionMode(t *testing.T) {
	X := stream(60)
	m := NewModel(Config{WindowLength: 5, Epochs: 20, BatchSize: 16, Seed: 9})
	if err := m.Fit(X, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	errsOut, err := m.ReconstructionErrors(X)
	if err != nil {
		t.Fatalf("ReconstructionErrors: %v", err)
	}
	if len(errsOut) != 60-5+1 {
		t.Fatalf("got %d errors, want %d", len(errsOut), 60-5+1)
	}
	for i, e := range errsOut {
		if e < 0 {
			t.Fatalf("error %d = %g, want non-negative", i, e)
		}
	}

	if _, err := m.Predict(X); err == nil {
		t.Error("reconstruction mode must reject Predict")
	}
}

func TestPredictBeforeFit(t *testing.T) {
	m := NewModel(Config{})
	if _, err := m.Predict(stream(20)); err == nil {
		t.Fatal("expected not-fitted error")
	}
}

func TestDefaults(t *testing.T) {
	m := NewModel(Config{})
	if m.WindowLength != DefaultWindowLength {
		t.Errorf("window length = %d, want %d", m.WindowLength, DefaultWindowLength)
	}
}
