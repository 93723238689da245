package ml

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTrainRecordsMetrics(t *testing.T) {
	p := trainedPredictor(t, TargetEnergy)
	if !p.Trained() {
		t.Fatalf("expected trained model")
	}
	m := p.Metrics()
	if m.ValR2 < 0.9 {
		t.Fatalf("expected validation R2 above 0.9, got %f", m.ValR2)
	}
	if m.TrainMSE < 0 || m.ValMSE < 0 {
		t.Fatalf("negative MSE: %+v", m)
	}
}

func TestTrainInsufficientDataKeepsState(t *testing.T) {
	fresh := NewSustainabilityPredictor(TargetEnergy, DefaultOptions(), nil)
	X, y := fresh.TrainingSet(syntheticSamples(5))
	if _, err := fresh.Train(X, y, 0.2); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if fresh.Trained() {
		t.Fatalf("failed training must leave the model untrained")
	}

	p := trainedPredictor(t, TargetEnergy)
	sample := syntheticSamples(3)[2]
	before, err := p.Predict(sample)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if _, err := p.Train(X, y, 0.2); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	after, err := p.Predict(sample)
	if err != nil {
		t.Fatalf("predict after failed train: %v", err)
	}
	if before.Value != after.Value {
		t.Fatalf("failed training changed the model: %f -> %f", before.Value, after.Value)
	}
}

func TestPreprocessBeforeFit(t *testing.T) {
	p := NewSustainabilityPredictor(TargetEnergy, DefaultOptions(), nil)
	X, y := p.TrainingSet(syntheticSamples(3))

	if _, _, err := p.Preprocess(X, nil); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted from the feature scaler, got %v", err)
	}
	if _, _, err := p.Preprocess(nil, y); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted from the target scaler, got %v", err)
	}
}

func TestPreprocessWithoutTargetScaler(t *testing.T) {
	r := NewRecommender(DefaultOptions(), nil)
	y := []float64{3, -1, 42}

	_, out, err := r.Preprocess(nil, y)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	for i := range y {
		if out[i] != y[i] {
			t.Fatalf("targets should pass through unchanged, got %v", out)
		}
	}
}

func TestPreprocessScalesAfterTraining(t *testing.T) {
	p := trainedPredictor(t, TargetEnergy)
	X, y := p.TrainingSet(syntheticSamples(60))

	xs, ys, err := p.Preprocess(X, y)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if len(xs) != len(X) || len(ys) != len(y) {
		t.Fatalf("shape changed: %d/%d rows", len(xs), len(ys))
	}
	if xs[0][0] == X[0][0] && ys[0] == y[0] {
		t.Fatalf("expected scaled values, got the raw ones")
	}
}

func TestBuildResetsModel(t *testing.T) {
	p := trainedPredictor(t, TargetEnergy)
	p.Build()
	p.Build()

	if p.Trained() {
		t.Fatalf("Build must leave the model untrained")
	}
	if _, err := p.PredictWithConfidence([][]float64{PrepareFeatures(syntheticSamples(1)[0])}); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
	if (p.Metrics() != Metrics{}) {
		t.Fatalf("Build must clear metrics, got %+v", p.Metrics())
	}

	X, y := p.TrainingSet(syntheticSamples(60))
	if _, err := p.Train(X, y, 0.2); err != nil {
		t.Fatalf("train after rebuild: %v", err)
	}
}

func TestTrainDeterministic(t *testing.T) {
	a := trainedPredictor(t, TargetEmissions)
	b := trainedPredictor(t, TargetEmissions)
	if a.Metrics() != b.Metrics() {
		t.Fatalf("same data and seed gave different metrics: %+v vs %+v", a.Metrics(), b.Metrics())
	}
}

func TestPredictWithConfidenceOrdering(t *testing.T) {
	p := trainedPredictor(t, TargetEnergy)
	X, _ := p.TrainingSet(syntheticSamples(12))

	res, err := p.PredictWithConfidence(X)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(res.Predictions) != len(X) || len(res.Lower) != len(X) || len(res.Upper) != len(X) {
		t.Fatalf("result lengths do not match input: %d/%d/%d", len(res.Predictions), len(res.Lower), len(res.Upper))
	}
	for i := range res.Predictions {
		if res.Lower[i] > res.Predictions[i] || res.Predictions[i] > res.Upper[i] {
			t.Fatalf("row %d: interval [%f, %f] does not contain %f", i, res.Lower[i], res.Upper[i], res.Predictions[i])
		}
	}

	again, err := p.PredictWithConfidence(X)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i := range res.Lower {
		if res.Lower[i] != again.Lower[i] || res.Upper[i] != again.Upper[i] {
			t.Fatalf("row %d: interval not reproducible", i)
		}
	}
}

func TestPredictRequiresTraining(t *testing.T) {
	p := NewSustainabilityPredictor(TargetEnergy, DefaultOptions(), nil)
	if _, err := p.PredictWithConfidence([][]float64{make([]float64, len(SustainabilityFeatures))}); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
	if _, err := p.Save(t.TempDir()); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained from Save, got %v", err)
	}
}

func TestPredictWidthMismatch(t *testing.T) {
	p := trainedPredictor(t, TargetEnergy)
	if _, err := p.PredictWithConfidence([][]float64{{1, 2, 3}}); !errors.Is(err, ErrFeatureMismatch) {
		t.Fatalf("expected ErrFeatureMismatch, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := trainedPredictor(t, TargetEnergy)

	path, err := p.Save(dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "energy_usage_") {
		t.Fatalf("unexpected artifact name %s", path)
	}

	loaded := NewSustainabilityPredictor(TargetEnergy, DefaultOptions(), nil)
	if err := loaded.Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Metrics() != p.Metrics() {
		t.Fatalf("metrics not restored: %+v vs %+v", loaded.Metrics(), p.Metrics())
	}

	sample := syntheticSamples(8)[7]
	want, _ := p.Predict(sample)
	got, err := loaded.Predict(sample)
	if err != nil {
		t.Fatalf("predict after load: %v", err)
	}
	if want.Value != got.Value || want.Interval != got.Interval {
		t.Fatalf("loaded model predicts %+v, want %+v", got, want)
	}
}

func TestLoadPicksLatestArtifact(t *testing.T) {
	dir := t.TempDir()
	p := trainedPredictor(t, TargetEnergy)

	p.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	older, err := p.Save(dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	p.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	newer, err := p.Save(dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "energy_usage_backup.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write decoy: %v", err)
	}

	got, err := latestArtifact(dir, "energy_usage")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != newer || got == older {
		t.Fatalf("expected %s, got %s", newer, got)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	p := NewSustainabilityPredictor(TargetEmissions, DefaultOptions(), nil)
	if err := p.Load(t.TempDir()); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if p.Trained() {
		t.Fatalf("failed load must leave the model untrained")
	}
}

func TestLoadRejectsOtherFeatureLayout(t *testing.T) {
	dir := t.TempDir()
	p := trainedPredictor(t, TargetEnergy)
	if _, err := p.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	other := newBaseModel(string(TargetEnergy), []string{"a", "b"}, DefaultOptions(), nil)
	if err := other.Load(dir); !errors.Is(err, ErrFeatureMismatch) {
		t.Fatalf("expected ErrFeatureMismatch, got %v", err)
	}
}
