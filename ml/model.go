package ml

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Metrics records the fit quality of the last training run, measured in scaled target units.
type Metrics struct {
	TrainMSE float64 `json:"train_mse"`
	ValMSE   float64 `json:"val_mse"`
	TrainR2  float64 `json:"train_r2"`
	ValR2    float64 `json:"val_r2"`
}

// Options tune training and inference.
type Options struct {
	ValidationSplit  float64
	MinSamples       int
	BootstrapSamples int
	Seed             int64
	RidgeLambda      float64
}

func DefaultOptions() Options {
	return Options{
		ValidationSplit:  0.2,
		MinSamples:       10,
		BootstrapSamples: 100,
		Seed:             42,
		RidgeLambda:      1.0,
	}
}

// Result holds point predictions and their 95% bootstrap interval in target units.
type Result struct {
	Predictions []float64
	Lower       []float64
	Upper       []float64
}

// Model is the lifecycle every predictive model implements.
type Model interface {
	Name() string
	Build()
	Preprocess(X [][]float64, y []float64) ([][]float64, []float64, error)
	Train(X [][]float64, y []float64, validationSplit float64) (Metrics, error)
	PredictWithConfidence(X [][]float64) (*Result, error)
	Save(dir string) (string, error)
	Load(dir string) error
}

// BaseModel implements the shared lifecycle. Variants embed it and supply
// Build. After Train or Load the model is read-only and safe for concurrent
// inference; Train, Build and Load must not race with other calls.
type BaseModel struct {
	name           string
	estimator      *RidgeRegressor
	featureScaler  Scaler
	targetScaler   Scaler
	featureColumns []string
	metrics        Metrics
	trained        bool
	opts           Options
	log            *zap.Logger
	now            func() time.Time
}

func newBaseModel(name string, columns []string, opts Options, log *zap.Logger) *BaseModel {
	if log == nil {
		log = zap.NewNop()
	}
	return &BaseModel{
		name:           name,
		featureColumns: append([]string(nil), columns...),
		opts:           opts,
		log:            log.With(zap.String("model", name)),
		now:            time.Now,
	}
}

// reset installs fresh, unfitted components and marks the model untrained.
func (b *BaseModel) reset(est *RidgeRegressor, featureScaler, targetScaler Scaler) {
	b.estimator = est
	b.featureScaler = featureScaler
	b.targetScaler = targetScaler
	b.metrics = Metrics{}
	b.trained = false
}

// modelState is the mutable part of a BaseModel, used to roll back a
// multi-step update that fails after Train or Load succeeded.
type modelState struct {
	estimator     *RidgeRegressor
	featureScaler Scaler
	targetScaler  Scaler
	metrics       Metrics
	trained       bool
}

func (b *BaseModel) snapshot() modelState {
	return modelState{
		estimator:     b.estimator,
		featureScaler: b.featureScaler,
		targetScaler:  b.targetScaler,
		metrics:       b.metrics,
		trained:       b.trained,
	}
}

func (b *BaseModel) restore(s modelState) {
	b.estimator = s.estimator
	b.featureScaler = s.featureScaler
	b.targetScaler = s.targetScaler
	b.metrics = s.metrics
	b.trained = s.trained
}

func (b *BaseModel) Name() string { return b.name }

func (b *BaseModel) Trained() bool { return b.trained }

func (b *BaseModel) Metrics() Metrics { return b.metrics }

func (b *BaseModel) FeatureColumns() []string {
	return append([]string(nil), b.featureColumns...)
}

func (b *BaseModel) Preprocess(X [][]float64, y []float64) ([][]float64, []float64, error) {
	return preprocess(b.featureScaler, b.targetScaler, X, y)
}

func preprocess(fs, ts Scaler, X [][]float64, y []float64) ([][]float64, []float64, error) {
	var err error
	if X != nil && fs != nil {
		if X, err = fs.Transform(X); err != nil {
			return nil, nil, fmt.Errorf("feature scaler: %w", err)
		}
	}
	if y != nil && ts != nil {
		scaled, err := ts.Transform(column(y))
		if err != nil {
			return nil, nil, fmt.Errorf("target scaler: %w", err)
		}
		y = flatten(scaled)
	}
	return X, y, nil
}

// Train splits with the configured seed, fits scalers on the training
// partition only, fits the estimator and records metrics. On failure the
// model keeps its previous state.
func (b *BaseModel) Train(X [][]float64, y []float64, validationSplit float64) (Metrics, error) {
	if b.estimator == nil {
		return Metrics{}, fmt.Errorf("%s: estimator not built: %w", b.name, ErrNotFitted)
	}
	if len(X) != len(y) {
		return Metrics{}, fmt.Errorf("%s: %d rows but %d targets: %w", b.name, len(X), len(y), ErrFeatureMismatch)
	}
	if err := b.checkWidth(X); err != nil {
		return Metrics{}, err
	}
	if len(X) < b.opts.MinSamples {
		return Metrics{}, fmt.Errorf("%s: %d samples, need at least %d: %w", b.name, len(X), b.opts.MinSamples, ErrInsufficientData)
	}
	if validationSplit <= 0 {
		validationSplit = b.opts.ValidationSplit
	}
	for i := range y {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return Metrics{}, fmt.Errorf("%s: non-finite target at row %d: %w", b.name, i, ErrComputation)
		}
	}

	trainIdx, valIdx, err := splitIndices(len(X), validationSplit, b.opts.Seed)
	if err != nil {
		return Metrics{}, fmt.Errorf("%s: %w", b.name, err)
	}
	xTrain, yTrain := pickRows(X, trainIdx), pickValues(y, trainIdx)
	xVal, yVal := pickRows(X, valIdx), pickValues(y, valIdx)

	var fs, ts Scaler
	if b.featureScaler != nil {
		if fs, err = b.featureScaler.Fit(xTrain); err != nil {
			return Metrics{}, fmt.Errorf("%s: fit feature scaler: %w", b.name, err)
		}
	}
	if b.targetScaler != nil {
		if ts, err = b.targetScaler.Fit(column(yTrain)); err != nil {
			return Metrics{}, fmt.Errorf("%s: fit target scaler: %w", b.name, err)
		}
	}

	if xTrain, yTrain, err = preprocess(fs, ts, xTrain, yTrain); err != nil {
		return Metrics{}, err
	}
	if xVal, yVal, err = preprocess(fs, ts, xVal, yVal); err != nil {
		return Metrics{}, err
	}

	est := NewRidgeRegressor(b.estimator.Lambda)
	if err := est.Fit(xTrain, yTrain); err != nil {
		return Metrics{}, fmt.Errorf("%s: %w", b.name, err)
	}
	trainPred, err := est.Predict(xTrain)
	if err != nil {
		return Metrics{}, err
	}
	valPred, err := est.Predict(xVal)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{
		TrainMSE: meanSquaredError(yTrain, trainPred),
		ValMSE:   meanSquaredError(yVal, valPred),
		TrainR2:  rSquared(yTrain, trainPred),
		ValR2:    rSquared(yVal, valPred),
	}

	b.estimator = est
	b.featureScaler = fs
	b.targetScaler = ts
	b.metrics = m
	b.trained = true

	b.log.Info("model trained",
		zap.Int("train_samples", len(trainIdx)),
		zap.Int("val_samples", len(valIdx)),
		zap.Float64("train_mse", m.TrainMSE),
		zap.Float64("val_mse", m.ValMSE),
		zap.Float64("val_r2", m.ValR2))
	return m, nil
}

// PredictWithConfidence returns point predictions with a bootstrap 95% interval.
// Intervals are widened where needed so that lower <= prediction <= upper.
func (b *BaseModel) PredictWithConfidence(X [][]float64) (*Result, error) {
	if !b.trained {
		return nil, fmt.Errorf("%s: %w", b.name, ErrModelNotTrained)
	}
	if err := b.checkWidth(X); err != nil {
		return nil, err
	}

	xs, _, err := b.Preprocess(X, nil)
	if err != nil {
		return nil, err
	}
	points, err := b.estimator.Predict(xs)
	if err != nil {
		return nil, err
	}
	lower, upper, err := bootstrapInterval(b.estimator.Predict, xs, b.opts.BootstrapSamples, b.opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}

	if b.targetScaler != nil {
		if points, err = b.inverseTarget(points); err != nil {
			return nil, err
		}
		if lower, err = b.inverseTarget(lower); err != nil {
			return nil, err
		}
		if upper, err = b.inverseTarget(upper); err != nil {
			return nil, err
		}
	}

	for i := range points {
		lower[i] = math.Min(lower[i], points[i])
		upper[i] = math.Max(upper[i], points[i])
	}
	return &Result{Predictions: points, Lower: lower, Upper: upper}, nil
}

func (b *BaseModel) inverseTarget(v []float64) ([]float64, error) {
	out, err := b.targetScaler.InverseTransform(column(v))
	if err != nil {
		return nil, fmt.Errorf("target scaler inverse: %w", err)
	}
	return flatten(out), nil
}

func (b *BaseModel) checkWidth(X [][]float64) error {
	for i, row := range X {
		if len(row) != len(b.featureColumns) {
			return fmt.Errorf("%s: row %d has %d features, want %d: %w",
				b.name, i, len(row), len(b.featureColumns), ErrFeatureMismatch)
		}
	}
	return nil
}

// Save writes a timestamped artifact under dir and returns its path.
// Callers must serialise Save calls per model name.
func (b *BaseModel) Save(dir string) (string, error) {
	if !b.trained {
		return "", fmt.Errorf("%s: %w", b.name, ErrModelNotTrained)
	}
	a := &artifact{
		Name:           b.name,
		SavedAt:        b.now().UTC(),
		FeatureColumns: b.FeatureColumns(),
		Metrics:        b.metrics,
		Estimator:      b.estimator,
	}
	if b.featureScaler != nil {
		st := b.featureScaler.State()
		a.FeatureScaler = &st
	}
	if b.targetScaler != nil {
		st := b.targetScaler.State()
		a.TargetScaler = &st
	}

	path, err := writeArtifact(dir, a)
	if err != nil {
		return "", fmt.Errorf("%s: %w", b.name, err)
	}
	b.log.Info("model saved", zap.String("path", path))
	return path, nil
}

// Load restores the latest artifact for this model's name. When none exists
// it returns ErrModelNotFound and leaves the model untouched.
func (b *BaseModel) Load(dir string) error {
	path, err := latestArtifact(dir, b.name)
	if err != nil {
		return err
	}
	a, err := readArtifact(path)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	if !sameColumns(a.FeatureColumns, b.featureColumns) {
		return fmt.Errorf("%s: artifact columns %v, want %v: %w", b.name, a.FeatureColumns, b.featureColumns, ErrFeatureMismatch)
	}
	if len(a.Estimator.Coef) != len(b.featureColumns) {
		return fmt.Errorf("%s: estimator has %d coefficients: %w", b.name, len(a.Estimator.Coef), ErrFeatureMismatch)
	}
	fs, err := scalerFromState(a.FeatureScaler)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	ts, err := scalerFromState(a.TargetScaler)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}

	b.estimator = a.Estimator
	b.featureScaler = fs
	b.targetScaler = ts
	b.metrics = a.Metrics
	b.trained = true
	b.log.Info("model loaded", zap.String("path", path))
	return nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
