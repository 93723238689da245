package ml

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"greenchain-insights/models"
)

// Target selects what a SustainabilityPredictor forecasts.
type Target string

const (
	TargetEnergy    Target = "energy_usage"
	TargetEmissions Target = "emissions"
)

// SustainabilityFeatures is the fixed feature order of the predictor.
var SustainabilityFeatures = []string{
	"transaction_count",
	"block_time",
	"active_validators",
	"network_usage",
	"hour_of_day",
	"day_of_week",
	"is_proof_of_stake",
}

// referenceEnergyPerTx anchors the sustainability score, in kWh per transaction.
const referenceEnergyPerTx = 0.001

// SustainabilityPredictor forecasts energy usage or emissions from network activity.
type SustainabilityPredictor struct {
	*BaseModel
	target Target
}

func NewSustainabilityPredictor(target Target, opts Options, log *zap.Logger) *SustainabilityPredictor {
	p := &SustainabilityPredictor{
		BaseModel: newBaseModel(string(target), SustainabilityFeatures, opts, log),
		target:    target,
	}
	p.Build()
	return p
}

// Build installs an unfitted ridge estimator with standard feature and target scalers.
func (p *SustainabilityPredictor) Build() {
	p.reset(NewRidgeRegressor(p.opts.RidgeLambda), NewStandardScaler(), NewStandardScaler())
}

func (p *SustainabilityPredictor) Target() Target { return p.target }

// PrepareFeatures derives the feature vector of a sample. Calendar features
// use UTC; day_of_week counts from Monday = 0.
func PrepareFeatures(s models.MetricSample) []float64 {
	ts := s.Timestamp.UTC()
	pos := 0.0
	if s.IsProofOfStake() {
		pos = 1
	}
	return []float64{
		s.TransactionCount,
		s.BlockTime,
		s.ActiveValidators,
		s.NetworkUsage,
		float64(ts.Hour()),
		float64((int(ts.Weekday()) + 6) % 7),
		pos,
	}
}

// TargetValue extracts the value this predictor learns from a sample.
func (p *SustainabilityPredictor) TargetValue(s models.MetricSample) float64 {
	if p.target == TargetEmissions {
		return s.EmissionsKgCO2
	}
	return s.EnergyUsageKWh
}

// TrainingSet builds X and y from historical samples whose targets are known.
func (p *SustainabilityPredictor) TrainingSet(samples []models.MetricSample) ([][]float64, []float64) {
	X := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		X[i] = PrepareFeatures(s)
		y[i] = p.TargetValue(s)
	}
	return X, y
}

// FeatureImportance maps each feature to its share of the learned weight.
func (p *SustainabilityPredictor) FeatureImportance() (map[string]float64, error) {
	if !p.trained {
		return nil, fmt.Errorf("%s: %w", p.name, ErrModelNotTrained)
	}
	imp := p.estimator.Importances()
	out := make(map[string]float64, len(imp))
	for j, name := range p.featureColumns {
		out[name] = imp[j]
	}
	return out, nil
}

type rankedFeature struct {
	name  string
	score float64
}

func (p *SustainabilityPredictor) topFeatures(k int) ([]rankedFeature, error) {
	if !p.trained {
		return nil, fmt.Errorf("%s: %w", p.name, ErrModelNotTrained)
	}
	imp := p.estimator.Importances()
	ranked := make([]rankedFeature, len(imp))
	for j, v := range imp {
		ranked[j] = rankedFeature{name: p.featureColumns[j], score: v}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// ExplainPrediction renders the prediction, its interval and the three most
// important features.
func (p *SustainabilityPredictor) ExplainPrediction(prediction, lower, upper float64) (string, error) {
	top, err := p.topFeatures(3)
	if err != nil {
		return "", err
	}

	label, unit := "energy usage", "kWh"
	if p.target == TargetEmissions {
		label, unit = "CO2 emissions", "kg"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Predicted %s: %.2f %s\n", label, prediction, unit)
	fmt.Fprintf(&sb, "Confidence interval: [%.2f, %.2f] %s\n\n", lower, upper, unit)
	sb.WriteString("Key factors:\n")
	for _, f := range top {
		fmt.Fprintf(&sb, "- %s: %.2f%% importance\n", titleize(f.name), f.score*100)
	}
	return sb.String(), nil
}

// Predict forecasts a single sample and explains the result.
func (p *SustainabilityPredictor) Predict(s models.MetricSample) (*models.Prediction, error) {
	res, err := p.PredictWithConfidence([][]float64{PrepareFeatures(s)})
	if err != nil {
		return nil, err
	}
	value, lower, upper := res.Predictions[0], res.Lower[0], res.Upper[0]
	text, err := p.ExplainPrediction(value, lower, upper)
	if err != nil {
		return nil, err
	}
	return &models.Prediction{
		Model:       p.name,
		Value:       value,
		Interval:    models.ConfidenceInterval{Lower: lower, Upper: upper},
		Explanation: text,
	}, nil
}

// SustainabilityScore rates energy per transaction on a log scale against
// 0.001 kWh/tx, clamped to [0, 100].
func SustainabilityScore(energyKWh, transactionCount float64) float64 {
	energyPerTx := energyKWh / math.Max(transactionCount, 1)
	score := 100 * (1 - math.Log1p(energyPerTx)/math.Log1p(referenceEnergyPerTx))
	return math.Max(0, math.Min(100, score))
}

func titleize(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// Forecaster supplies forward energy and emissions predictions from the
// latest trained predictors.
type Forecaster struct {
	Energy    *SustainabilityPredictor
	Emissions *SustainabilityPredictor
}

// LoadForecaster loads both predictors from dir. Any missing artifact yields
// ErrModelNotFound so callers can continue without predictions.
func LoadForecaster(dir string, opts Options, log *zap.Logger) (*Forecaster, error) {
	energy := NewSustainabilityPredictor(TargetEnergy, opts, log)
	if err := energy.Load(dir); err != nil {
		return nil, err
	}
	emissions := NewSustainabilityPredictor(TargetEmissions, opts, log)
	if err := emissions.Load(dir); err != nil {
		return nil, err
	}
	return &Forecaster{Energy: energy, Emissions: emissions}, nil
}

func (f *Forecaster) Forecast(s models.MetricSample) (*models.Forecast, error) {
	x := [][]float64{PrepareFeatures(s)}
	energy, err := f.Energy.PredictWithConfidence(x)
	if err != nil {
		return nil, err
	}
	emissions, err := f.Emissions.PredictWithConfidence(x)
	if err != nil {
		return nil, err
	}
	return &models.Forecast{
		EnergyUsageKWh: energy.Predictions[0],
		EmissionsKgCO2: emissions.Predictions[0],
	}, nil
}

var _ Model = (*SustainabilityPredictor)(nil)
