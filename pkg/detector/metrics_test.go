package detector

import (
	"math"
	"testing"
)

func TestWeightedScoresPerfect(t *testing.T) {
	y := []int{0, 1, 0, 1, 2}
	ev := weightedScores(y, y)
	if ev.Precision != 1 || ev.Recall != 1 || ev.F1 != 1 {
		t.Errorf("perfect prediction = %+v, want all 1", ev)
	}
}

func TestWeightedScoresKnownConfusion(t *testing.T) {
	yTrue := []int{0, 0, 0, 1, 1, 1}
	yPred := []int{0, 0, 1, 1, 1, 0}
	// Both classes: precision 2/3, recall 2/3, f1 2/3; supports equal.
	ev := weightedScores(yTrue, yPred)
	want := 2.0 / 3.0
	for name, got := range map[string]float64{"precision": ev.Precision, "recall": ev.Recall, "f1": ev.F1} {
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %g, want %g", name, got, want)
		}
	}
}

func TestWeightedScoresEmpty(t *testing.T) {
	if ev := weightedScores(nil, nil); ev.F1 != 0 {
		t.Errorf("empty batch F1 = %g, want 0", ev.F1)
	}
}

func TestWeightedScoresUnpredictedClass(t *testing.T) {
	// Class 2 never predicted: its recall is 0 and drags the weighted figure.
	yTrue := []int{0, 0, 2, 2}
	yPred := []int{0, 0, 0, 0}
	ev := weightedScores(yTrue, yPred)
	if ev.Recall >= 1 {
		t.Errorf("recall = %g, want < 1 with an unpredicted class", ev.Recall)
	}
}
