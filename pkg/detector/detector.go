// Package detector fuses the supervised ensemble, the anomaly scorers and
// the drift monitor into one synchronous detection engine, and owns model
// persistence and the evaluation audit trail.
package detector

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sentrasec/sentra/pkg/anomaly"
	"github.com/sentrasec/sentra/pkg/config"
	"github.com/sentrasec/sentra/pkg/drift"
	"github.com/sentrasec/sentra/pkg/errs"
	"github.com/sentrasec/sentra/pkg/preprocess"
	"github.com/sentrasec/sentra/pkg/sequence"
	"github.com/sentrasec/sentra/pkg/supervised"
)

var (
	verdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentra", Subsystem: "detector", Name: "verdicts_total",
		Help: "Detection verdicts by outcome.",
	}, []string{"verdict"})
	trainCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentra", Subsystem: "detector", Name: "train_cycles_total",
		Help: "Completed training cycles.",
	})
	reviewQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentra", Subsystem: "detector", Name: "review_queued_total",
		Help: "Predictions queued for human review.",
	})
)

func init() {
	_ = prometheus.Register(verdicts)
	_ = prometheus.Register(trainCycles)
	_ = prometheus.Register(reviewQueued)
}

// Fixed artifact identifiers under model_dir.
const (
	artifactPreprocessor = "preprocessor"
	artifactForest       = "random_forest"
	artifactBoost        = "gradient_boost"
	artifactMLP          = "mlp"
	artifactIForest      = "isolation_forest"
	artifactOCSVM        = "one_class_svm"
	artifactAutoencoder  = "autoencoder"
	artifactSequence     = "sequence"
)

// maxReviewQueue bounds the uncertainty triage queue; when full the oldest
// entry is dropped.
const maxReviewQueue = 256

// modelSet is one complete, immutable generation of trained models. Training
// builds a fresh set and swaps it in atomically, so readers never observe a
// half-replaced ensemble.
type modelSet struct {
	pre         *preprocess.Preprocessor
	classes     []string
	classifiers []supervised.Classifier
	scorers     []anomaly.Scorer
	seq         *sequence.Model
}

// snapshot is the persisted preprocessing state.
type snapshot struct {
	Pre     *preprocess.Preprocessor
	Classes []string
}

// Detection is the fused verdict for one record.
type Detection struct {
	IsAttack       bool    `json:"is_attack"`
	Class          int     `json:"class"`
	SupervisedVote float64 `json:"supervised_vote"`
	AnomalyScore   float64 `json:"anomaly_score"`
	Uncertain      bool    `json:"uncertain"`
}

// ReviewItem is one low-confidence prediction held for human labeling.
type ReviewItem struct {
	Record         preprocess.Record
	SupervisedVote float64
	QueuedAt       time.Time
}

// TrainReport summarizes one training cycle.
type TrainReport struct {
	Rows    int                   `json:"rows"`
	Models  []string              `json:"models"`
	Skipped []string              `json:"skipped,omitempty"`
	Holdout map[string]Evaluation `json:"holdout"`
}

// Options carries the optional wiring of a Detector.
type Options struct {
	Redis    *redis.Client
	Postgres *PostgresHistory
	Fusion   FusionStrategy
	Weights  Weights
	Seed     int64
}

// Detector is the detection engine. All methods are safe for concurrent use;
// detection reads the current model set through an atomic pointer while
// training prepares the next one off to the side.
type Detector struct {
	cfg     *config.Config
	log     zerolog.Logger
	fusion  FusionStrategy
	weights Weights
	seed    int64

	models  atomic.Pointer[modelSet]
	store   *ModelStore
	monitor *drift.Monitor
	alerts  *drift.AlertStore
	history *History

	reviewMu sync.Mutex
	review   []ReviewItem
}

// New builds a detector from the configuration. No models are loaded; call
// Load to restore persisted artifacts or Train to fit fresh ones.
func New(cfg *config.Config, log zerolog.Logger, opts Options) (*Detector, error) {
	store, err := NewModelStore(cfg.ModelDir)
	if err != nil {
		return nil, err
	}
	weights := opts.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Detector{
		cfg:     cfg,
		log:     log.With().Str("component", "detector").Logger(),
		fusion:  opts.Fusion,
		weights: weights,
		seed:    opts.Seed,
		store:   store,
		monitor: drift.NewMonitor(cfg.Drift.Delta),
		alerts:  drift.NewAlertStore(opts.Redis),
		history: NewHistory(opts.Redis, opts.Postgres),
	}, nil
}

// Trained reports whether a model set is available.
func (d *Detector) Trained() bool { return d.models.Load() != nil }

// Train fits the preprocessing schema and every ensemble member on an 80/20
// split of the batch, persists the artifacts, and atomically swaps the new
// model set in. A member whose fit fails is logged under its identifier and
// left out of the cycle; the others proceed. The sequence model is not part
// of this cycle; it is trained only through TrainSequence.
func (d *Detector) Train(records []preprocess.Record) (*TrainReport, error) {
	start := time.Now()

	pre := preprocess.New()
	X, rawLabels, err := pre.FitTransform(records)
	if err != nil {
		return nil, err
	}
	y, classes := encodeLabels(rawLabels)

	trainX, trainY, testX, testY := split(X.Data, y, 0.2, d.seed)

	report := &TrainReport{Rows: X.Rows(), Holdout: make(map[string]Evaluation)}
	set := &modelSet{pre: pre, classes: classes}

	forest := supervised.NewForest(supervised.ForestConfig{
		Estimators: d.cfg.Forest.Estimators,
		MaxDepth:   d.cfg.Forest.MaxDepth,
		Seed:       d.seed,
	})
	boost := supervised.NewBoost(supervised.BoostConfig{
		Estimators:   d.cfg.Boost.Estimators,
		LearningRate: d.cfg.Boost.LearningRate,
		MaxDepth:     d.cfg.Boost.MaxDepth,
	})
	mlp := supervised.NewMLP(supervised.MLPConfig{
		HiddenLayers: d.cfg.MLP.HiddenLayers,
		LearningRate: d.cfg.MLP.LearningRate,
		MaxIter:      d.cfg.MLP.MaxIter,
		Seed:         d.seed,
	})
	for _, c := range []supervised.Classifier{forest, boost, mlp} {
		if err := c.Fit(trainX, trainY); err != nil {
			d.log.Warn().Err(err).Str("model", c.Name()).Msg("training failed, excluding model")
			report.Skipped = append(report.Skipped, c.Name())
			continue
		}
		set.classifiers = append(set.classifiers, c)
		report.Models = append(report.Models, c.Name())
	}

	iforest := anomaly.NewIForest(anomaly.IForestConfig{
		Trees:      d.cfg.IForest.Trees,
		SampleSize: d.cfg.IForest.SampleSize,
		Seed:       d.seed,
	})
	ocsvm := anomaly.NewOneClassSVM(anomaly.OCSVMConfig{
		Nu:    d.cfg.OCSVM.Nu,
		Gamma: d.cfg.OCSVM.Gamma,
	})
	autoenc := anomaly.NewAutoencoder(anomaly.AutoencoderConfig{
		Epochs:    d.cfg.Autoencoder.Epochs,
		BatchSize: d.cfg.Autoencoder.BatchSize,
		Seed:      d.seed,
	})
	for _, s := range []anomaly.Scorer{iforest, ocsvm, autoenc} {
		if err := s.Fit(trainX); err != nil {
			d.log.Warn().Err(err).Str("model", s.Name()).Msg("training failed, excluding model")
			report.Skipped = append(report.Skipped, s.Name())
			continue
		}
		set.scorers = append(set.scorers, s)
		report.Models = append(report.Models, s.Name())
	}

	if len(set.classifiers) == 0 && len(set.scorers) == 0 {
		return nil, &errs.NotFittedError{Component: "detector"}
	}

	for _, c := range set.classifiers {
		report.Holdout[c.Name()] = weightedScores(testY, c.Predict(testX))
	}

	if err := d.persist(set); err != nil {
		return nil, err
	}
	d.models.Store(set)
	trainCycles.Inc()

	d.log.Info().
		Int("rows", report.Rows).
		Strs("models", report.Models).
		Dur("elapsed", time.Since(start)).
		Msg("training cycle complete")
	return report, nil
}

// TrainSequence fits the recurrent model on the batch using the current
// preprocessing schema: a classifier when the batch carries labels,
// a window reconstructor otherwise. Requires a prior Train.
func (d *Detector) TrainSequence(records []preprocess.Record) error {
	set := d.models.Load()
	if set == nil {
		return &errs.NotFittedError{Component: "detector"}
	}
	X, err := set.pre.Transform(records)
	if err != nil {
		return err
	}

	var y []int
	labeled := false
	for _, r := range records {
		if r.Label != "" {
			labeled = true
			break
		}
	}
	if labeled {
		rawLabels := make([]string, len(records))
		for i, r := range records {
			rawLabels[i] = r.Label
		}
		extra := make(map[string]int)
		y = make([]int, len(records))
		for i, l := range rawLabels {
			y[i] = classIndex(set.classes, extra, l)
		}
	}

	seq := sequence.NewModel(sequence.Config{
		WindowLength: d.cfg.Sequence.WindowLength,
		Epochs:       d.cfg.Sequence.Epochs,
		BatchSize:    d.cfg.Sequence.BatchSize,
		Seed:         d.seed,
	})
	if err := seq.Fit(X.Data, y); err != nil {
		return err
	}
	if err := d.store.save(artifactSequence, seq); err != nil {
		return err
	}

	next := *set
	next.seq = seq
	d.models.Store(&next)
	d.log.Info().Bool("labeled", labeled).Int("rows", X.Rows()).Msg("sequence model trained")
	return nil
}

// DetectAttack scores every record through the fused ensemble. The anomaly
// side of the fusion is the mean over all trained scorers, not the isolation
// forest alone, so detection keeps working when a scorer is absent.
// Low-confidence supervised verdicts are additionally queued for human review.
func (d *Detector) DetectAttack(records []preprocess.Record) ([]Detection, error) {
	set := d.models.Load()
	if set == nil {
		return nil, &errs.NotFittedError{Component: "detector"}
	}
	X, err := set.pre.Transform(records)
	if err != nil {
		return nil, err
	}

	preds := make([][]int, 0, len(set.classifiers))
	for _, c := range set.classifiers {
		preds = append(preds, c.Predict(X.Data))
	}
	var classes []int
	if len(preds) > 0 {
		classes = supervised.PluralityVote(preds, len(set.classes))
	}

	out := make([]Detection, X.Rows())
	for i := range out {
		det := Detection{}

		if len(preds) > 0 {
			attacks := 0
			for _, p := range preds {
				if p[i] != 0 {
					attacks++
				}
			}
			det.SupervisedVote = float64(attacks) / float64(len(preds))
			det.Class = classes[i]
		}
		if len(set.scorers) > 0 {
			sum := 0.0
			for _, s := range set.scorers {
				sum += s.Score(X.Data[i])
			}
			det.AnomalyScore = sum / float64(len(set.scorers))
		}

		det.IsAttack = fuseRow(d.fusion, d.weights,
			det.SupervisedVote, det.AnomalyScore,
			len(preds) > 0, len(set.scorers) > 0)

		if len(preds) > 0 && math.Abs(det.SupervisedVote-0.5) <= d.cfg.UncertaintyThreshold {
			det.Uncertain = true
			d.queueReview(records[i], det.SupervisedVote)
		}

		if det.IsAttack {
			verdicts.WithLabelValues("attack").Inc()
		} else {
			verdicts.WithLabelValues("benign").Inc()
		}
		out[i] = det
	}
	return out, nil
}

// DetectConceptDrift feeds the batch through the adaptive-window monitor, one
// scaled row mean at a time. The first trigger logs a warning, records an
// alert, and short-circuits the rest of the batch.
func (d *Detector) DetectConceptDrift(ctx context.Context, records []preprocess.Record) (bool, error) {
	set := d.models.Load()
	if set == nil {
		return false, &errs.NotFittedError{Component: "detector"}
	}
	X, err := set.pre.Transform(records)
	if err != nil {
		return false, err
	}

	for i := 0; i < X.Rows(); i++ {
		if !d.monitor.Add(X.RowMean(i)) {
			continue
		}
		alert := drift.NewAlert(d.monitor)
		d.log.Warn().
			Str("alert_id", alert.ID).
			Float64("window_mean", alert.WindowMean).
			Int("window_width", alert.Width).
			Msg("concept drift detected")
		if err := d.alerts.Save(ctx, alert); err != nil {
			d.log.Error().Err(err).Msg("failed to store drift alert")
		}
		return true, nil
	}
	return false, nil
}

// UpdateModel retrains every model on the new batch alone, replacing the old
// set rather than merging into it, and acknowledges any pending drift by
// resetting the monitor.
func (d *Detector) UpdateModel(records []preprocess.Record) (*TrainReport, error) {
	report, err := d.Train(records)
	if err != nil {
		return nil, err
	}
	d.monitor.Reset()
	d.log.Info().Msg("model set replaced, drift window reset")
	return report, nil
}

// Evaluate scores every supervised model on a labeled batch and appends one
// PerformanceRecord to the audit trail, using the random forest's figures
// as the canonical entry (first available model when the forest is absent).
func (d *Detector) Evaluate(ctx context.Context, records []preprocess.Record) (map[string]Evaluation, error) {
	set := d.models.Load()
	if set == nil || len(set.classifiers) == 0 {
		return nil, &errs.NotFittedError{Component: "detector"}
	}
	X, err := set.pre.Transform(records)
	if err != nil {
		return nil, err
	}

	extra := make(map[string]int)
	y := make([]int, len(records))
	for i, r := range records {
		y[i] = classIndex(set.classes, extra, r.Label)
	}

	out := make(map[string]Evaluation, len(set.classifiers))
	for _, c := range set.classifiers {
		out[c.Name()] = weightedScores(y, c.Predict(X.Data))
	}

	canonical := artifactForest
	if _, ok := out[canonical]; !ok {
		canonical = set.classifiers[0].Name()
	}
	rec := NewPerformanceRecord(canonical, out[canonical])
	if err := d.history.Append(ctx, rec); err != nil {
		d.log.Error().Err(err).Msg("failed to mirror performance record")
	}

	d.log.Info().
		Str("model", canonical).
		Float64("f1", rec.F1).
		Int("rows", len(records)).
		Msg("evaluation recorded")
	return out, nil
}

// History returns the in-memory performance trail.
func (d *Detector) History() []PerformanceRecord { return d.history.Records() }

// DriftAlerts returns drift alerts recorded after the given time.
func (d *Detector) DriftAlerts(ctx context.Context, since time.Time) ([]drift.Alert, error) {
	return d.alerts.Since(ctx, since)
}

// PendingReview drains and returns the uncertainty triage queue.
func (d *Detector) PendingReview() []ReviewItem {
	d.reviewMu.Lock()
	defer d.reviewMu.Unlock()
	out := d.review
	d.review = nil
	return out
}

// Load restores persisted artifacts from model_dir, skipping identifiers with
// no file. Returns NotFittedError when no preprocessing snapshot exists.
func (d *Detector) Load() error {
	var snap snapshot
	ok, err := d.store.load(artifactPreprocessor, &snap)
	if err != nil {
		return err
	}
	if !ok {
		return &errs.NotFittedError{Component: "detector"}
	}
	// The category lookup tables are not persisted; rebuild them before the
	// preprocessor is shared with concurrent readers.
	snap.Pre.Reindex()
	set := &modelSet{pre: snap.Pre, classes: snap.Classes}

	forest := &supervised.Forest{}
	if ok, err := d.store.load(artifactForest, forest); err != nil {
		return err
	} else if ok {
		set.classifiers = append(set.classifiers, forest)
	}
	boost := &supervised.Boost{}
	if ok, err := d.store.load(artifactBoost, boost); err != nil {
		return err
	} else if ok {
		set.classifiers = append(set.classifiers, boost)
	}
	mlp := &supervised.MLP{}
	if ok, err := d.store.load(artifactMLP, mlp); err != nil {
		return err
	} else if ok {
		set.classifiers = append(set.classifiers, mlp)
	}

	iforest := &anomaly.IForest{}
	if ok, err := d.store.load(artifactIForest, iforest); err != nil {
		return err
	} else if ok {
		set.scorers = append(set.scorers, iforest)
	}
	ocsvm := &anomaly.OneClassSVM{}
	if ok, err := d.store.load(artifactOCSVM, ocsvm); err != nil {
		return err
	} else if ok {
		set.scorers = append(set.scorers, ocsvm)
	}
	autoenc := &anomaly.Autoencoder{}
	if ok, err := d.store.load(artifactAutoencoder, autoenc); err != nil {
		return err
	} else if ok {
		set.scorers = append(set.scorers, autoenc)
	}

	seq := &sequence.Model{}
	if ok, err := d.store.load(artifactSequence, seq); err != nil {
		return err
	} else if ok {
		set.seq = seq
	}

	d.models.Store(set)
	d.log.Info().
		Int("classifiers", len(set.classifiers)).
		Int("scorers", len(set.scorers)).
		Bool("sequence", set.seq != nil).
		Msg("model set restored")
	return nil
}

func (d *Detector) persist(set *modelSet) error {
	if err := d.store.save(artifactPreprocessor, snapshot{Pre: set.pre, Classes: set.classes}); err != nil {
		return err
	}
	for _, c := range set.classifiers {
		if err := d.store.save(c.Name(), c); err != nil {
			return err
		}
	}
	for _, s := range set.scorers {
		if err := d.store.save(s.Name(), s); err != nil {
			return err
		}
	}
	return nil
}

func (d *Detector) queueReview(r preprocess.Record, vote float64) {
	d.reviewMu.Lock()
	defer d.reviewMu.Unlock()
	if len(d.review) >= maxReviewQueue {
		d.review = d.review[1:]
	}
	d.review = append(d.review, ReviewItem{Record: r, SupervisedVote: vote, QueuedAt: time.Now().UTC()})
	reviewQueued.Inc()
}

// split shuffles the rows and carves off the trailing fraction as holdout.
func split(X [][]float64, y []int, holdout float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed + 1))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nTest := int(float64(len(X)) * holdout)
	if nTest < 1 && len(X) > 1 {
		nTest = 1
	}
	cut := len(X) - nTest
	for i, j := range idx {
		if i < cut {
			trainX = append(trainX, X[j])
			trainY = append(trainY, y[j])
		} else {
			testX = append(testX, X[j])
			testY = append(testY, y[j])
		}
	}
	return trainX, trainY, testX, testY
}
