package detector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentrasec/sentra/pkg/config"
	"github.com/sentrasec/sentra/pkg/errs"
	"github.com/sentrasec/sentra/pkg/preprocess"
)

// clusterRecords builds a separable labeled batch: benign traffic around 0,
// attacks around 5, alternating rows. flip swaps the labels so retraining
// tests can invert the learned mapping.
func clusterRecords(n int, flip bool) []preprocess.Record {
	recs := make([]preprocess.Record, n)
	for i := range recs {
		jitter := float64(i%17) * 0.02
		attack := i%2 == 1
		base := 0.0
		if attack {
			base = 5.0
		}
		label := "0"
		if attack != flip {
			label = "1"
		}
		recs[i] = preprocess.Record{
			Fields: map[string]any{"f1": base + jitter, "f2": base - jitter},
			Label:  label,
		}
	}
	return recs
}

func probe(value float64) preprocess.Record {
	return preprocess.Record{Fields: map[string]any{"f1": value, "f2": value}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ModelDir = t.TempDir()
	cfg.Forest.Estimators = 10
	cfg.Forest.MaxDepth = 5
	cfg.Boost.Estimators = 10
	cfg.MLP.HiddenLayers = []int{8}
	cfg.MLP.MaxIter = 60
	cfg.IForest.Trees = 20
	cfg.IForest.SampleSize = 64
	return cfg
}

func newTestDetector(t *testing.T, cfg *config.Config) *Detector {
	t.Helper()
	d, err := New(cfg, zerolog.Nop(), Options{Seed: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestTrainAndDetect(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDetector(t, cfg)

	report, err := d.Train(clusterRecords(120, false))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if report.Rows != 120 {
		t.Errorf("report rows = %d, want 120", report.Rows)
	}
	hasForest := false
	for _, m := range report.Models {
		if m == "random_forest" {
			hasForest = true
		}
	}
	if !hasForest {
		t.Errorf("trained models %v missing random_forest", report.Models)
	}
	// Under 1000 rows the autoencoder must be skipped, not fatal.
	skippedAE := false
	for _, m := range report.Skipped {
		if m == "autoencoder" {
			skippedAE = true
		}
	}
	if !skippedAE {
		t.Errorf("skipped %v should include autoencoder for a small batch", report.Skipped)
	}

	dets, err := d.DetectAttack([]preprocess.Record{probe(0.1), probe(5.1)})
	if err != nil {
		t.Fatalf("DetectAttack: %v", err)
	}
	if dets[0].IsAttack {
		t.Errorf("benign probe flagged: %+v", dets[0])
	}
	if !dets[1].IsAttack {
		t.Errorf("attack probe missed: %+v", dets[1])
	}
}

func TestDetectBeforeTrain(t *testing.T) {
	d := newTestDetector(t, testConfig(t))
	_, err := d.DetectAttack([]preprocess.Record{probe(1)})
	var notFitted *errs.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Fatalf("got %v, want NotFittedError", err)
	}
}

func TestUpdateModelReplacesNotMerges(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDetector(t, cfg)

	if _, err := d.Train(clusterRecords(120, false)); err != nil {
		t.Fatal(err)
	}
	dets, err := d.DetectAttack([]preprocess.Record{probe(5.1)})
	if err != nil {
		t.Fatal(err)
	}
	if !dets[0].IsAttack {
		t.Fatal("precondition: high probe should be an attack before the update")
	}

	// Retrain on a batch with inverted labels. A replaced model set follows
	// the new mapping; a merged one would still lean on the old.
	if _, err := d.UpdateModel(clusterRecords(120, true)); err != nil {
		t.Fatalf("UpdateModel: %v", err)
	}
	dets, err = d.DetectAttack([]preprocess.Record{probe(5.1), probe(0.1)})
	if err != nil {
		t.Fatal(err)
	}
	if dets[0].IsAttack {
		t.Errorf("high probe still flagged after inverted retraining: %+v", dets[0])
	}
	if !dets[1].IsAttack {
		t.Errorf("low probe not flagged after inverted retraining: %+v", dets[1])
	}
}

func TestDetectConceptDrift(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDetector(t, cfg)
	ctx := context.Background()

	if _, err := d.Train(clusterRecords(200, false)); err != nil {
		t.Fatal(err)
	}

	// Same distribution as training: no drift.
	drifted, err := d.DetectConceptDrift(ctx, clusterRecords(300, false))
	if err != nil {
		t.Fatalf("DetectConceptDrift: %v", err)
	}
	if drifted {
		t.Fatal("stationary batch reported drift")
	}

	// Shift every feature far outside the training range.
	shifted := clusterRecords(300, false)
	for i := range shifted {
		shifted[i].Fields["f1"] = shifted[i].Fields["f1"].(float64) + 50
		shifted[i].Fields["f2"] = shifted[i].Fields["f2"].(float64) + 50
	}
	drifted, err = d.DetectConceptDrift(ctx, shifted)
	if err != nil {
		t.Fatal(err)
	}
	if !drifted {
		t.Fatal("shifted batch did not report drift")
	}

	alerts, err := d.DriftAlerts(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) == 0 {
		t.Error("drift trigger did not record an alert")
	}
}

func TestPersistenceRoundtrip(t *testing.T) {
	cfg := testConfig(t)
	d1 := newTestDetector(t, cfg)
	if _, err := d1.Train(clusterRecords(120, false)); err != nil {
		t.Fatal(err)
	}

	d2 := newTestDetector(t, cfg)
	if err := d2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	dets, err := d2.DetectAttack([]preprocess.Record{probe(0.1), probe(5.1)})
	if err != nil {
		t.Fatalf("DetectAttack after load: %v", err)
	}
	if dets[0].IsAttack || !dets[1].IsAttack {
		t.Errorf("restored ensemble misclassifies: %+v", dets)
	}
}

func TestConcurrentDetectAfterLoad(t *testing.T) {
	cfg := testConfig(t)
	d1 := newTestDetector(t, cfg)
	if _, err := d1.Train(clusterRecords(120, false)); err != nil {
		t.Fatal(err)
	}

	d2 := newTestDetector(t, cfg)
	if err := d2.Load(); err != nil {
		t.Fatal(err)
	}

	batch := []preprocess.Record{probe(0.1), probe(5.1)}
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dets, err := d2.DetectAttack(batch)
			if err != nil {
				t.Errorf("DetectAttack: %v", err)
				return
			}
			if dets[0].IsAttack || !dets[1].IsAttack {
				t.Errorf("restored ensemble misclassifies: %+v", dets)
			}
		}()
	}
	wg.Wait()
}

func TestLoadWithoutArtifacts(t *testing.T) {
	d := newTestDetector(t, testConfig(t))
	var notFitted *errs.NotFittedError
	if err := d.Load(); !errors.As(err, &notFitted) {
		t.Fatalf("got %v, want NotFittedError", err)
	}
}

func TestEvaluateAppendsHistory(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDetector(t, cfg)
	if _, err := d.Train(clusterRecords(120, false)); err != nil {
		t.Fatal(err)
	}

	results, err := d.Evaluate(context.Background(), clusterRecords(60, false))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	forest, ok := results["random_forest"]
	if !ok {
		t.Fatalf("results %v missing random_forest", results)
	}
	if forest.F1 < 0.9 {
		t.Errorf("forest F1 = %.2f on in-distribution data, want >= 0.9", forest.F1)
	}

	trail := d.History()
	if len(trail) != 1 {
		t.Fatalf("history has %d records, want 1", len(trail))
	}
	if trail[0].Model != "random_forest" {
		t.Errorf("canonical record model = %q, want random_forest", trail[0].Model)
	}
	if trail[0].ID == "" || trail[0].Timestamp.IsZero() {
		t.Error("record missing id or timestamp")
	}
}

func TestUncertaintyTriage(t *testing.T) {
	cfg := testConfig(t)
	cfg.UncertaintyThreshold = 0.6 // everything is uncertain
	d := newTestDetector(t, cfg)
	if _, err := d.Train(clusterRecords(120, false)); err != nil {
		t.Fatal(err)
	}

	if _, err := d.DetectAttack([]preprocess.Record{probe(0.1), probe(5.1)}); err != nil {
		t.Fatal(err)
	}
	queued := d.PendingReview()
	if len(queued) != 2 {
		t.Fatalf("review queue has %d items, want 2", len(queued))
	}
	if again := d.PendingReview(); len(again) != 0 {
		t.Errorf("queue not drained: %d items remain", len(again))
	}

	// A confident ensemble with a zero threshold queues nothing.
	cfg2 := testConfig(t)
	cfg2.UncertaintyThreshold = 0
	d2 := newTestDetector(t, cfg2)
	if _, err := d2.Train(clusterRecords(120, false)); err != nil {
		t.Fatal(err)
	}
	if _, err := d2.DetectAttack([]preprocess.Record{probe(0.1)}); err != nil {
		t.Fatal(err)
	}
	if queued := d2.PendingReview(); len(queued) != 0 {
		t.Errorf("confident verdicts queued for review: %d", len(queued))
	}
}

func TestTrainSequenceRequiresBaseModels(t *testing.T) {
	d := newTestDetector(t, testConfig(t))
	err := d.TrainSequence(clusterRecords(60, false))
	var notFitted *errs.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Fatalf("got %v, want NotFittedError", err)
	}
}

func TestTrainSequenceClassifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sequence.WindowLength = 5
	cfg.Sequence.Epochs = 10
	d := newTestDetector(t, cfg)
	if _, err := d.Train(clusterRecords(120, false)); err != nil {
		t.Fatal(err)
	}
	if err := d.TrainSequence(clusterRecords(120, false)); err != nil {
		t.Fatalf("TrainSequence: %v", err)
	}
	if d.models.Load().seq == nil {
		t.Fatal("sequence model missing from the active set")
	}
}
