package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"greenchain-insights/ml"
	"greenchain-insights/models"
)

// Monitored features, in detector column order.
const (
	FeatureEnergy       = "energyUsageKwh"
	FeatureTransactions = "transactionCount"
	FeatureEmissions    = "emissionsKgCo2"
)

var monitoredFeatures = []string{FeatureEnergy, FeatureTransactions, FeatureEmissions}

type DetectorConfig struct {
	// Contamination is the share of the fitted window flagged as outliers.
	Contamination float64
	Trees         int
	Seed          int64
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{Contamination: 0.1, Trees: 100, Seed: 42}
}

// AnomalyDetector refits an isolation forest on every window it is given.
// It keeps no state between calls.
type AnomalyDetector struct {
	cfg DetectorConfig
	log *zap.Logger
}

func NewAnomalyDetector(cfg DetectorConfig, log *zap.Logger) *AnomalyDetector {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = DefaultDetectorConfig().Contamination
	}
	return &AnomalyDetector{cfg: cfg, log: log}
}

// Detect labels every sample of the window. It never fails: on degenerate
// input every sample comes back non-anomalous and the cause is logged.
func (ad *AnomalyDetector) Detect(window []models.MetricSample) []models.AnomalyRecord {
	records, err := ad.detect(window)
	if err != nil {
		ad.log.Error("anomaly detection failed", zap.Int("samples", len(window)), zap.Error(err))
		return neutralRecords(window)
	}
	return records
}

func (ad *AnomalyDetector) detect(window []models.MetricSample) ([]models.AnomalyRecord, error) {
	if len(window) < 2 {
		return nil, fmt.Errorf("window of %d samples: %w", len(window), ml.ErrComputation)
	}

	X := make([][]float64, len(window))
	for i, s := range window {
		X[i] = []float64{s.EnergyUsageKWh, s.TransactionCount, s.EmissionsKgCO2}
		for _, v := range X[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("sample %d has a non-finite value: %w", i, ml.ErrComputation)
			}
		}
	}

	ranges := make(map[string]models.ExpectedRange, len(monitoredFeatures))
	varying := false
	for j, name := range monitoredFeatures {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std > 0 {
			varying = true
		}
		ranges[name] = models.ExpectedRange{Low: mean - 2*std, High: mean + 2*std}
	}
	if !varying {
		return nil, fmt.Errorf("zero variance across monitored features: %w", ml.ErrComputation)
	}

	forest := NewIsolationForest(ad.cfg.Trees, ad.cfg.Seed)
	if err := forest.Fit(X); err != nil {
		return nil, err
	}
	scores, err := forest.Score(X)
	if err != nil {
		return nil, err
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(1-ad.cfg.Contamination, stat.LinInterp, sorted, nil)

	records := make([]models.AnomalyRecord, len(window))
	for i, s := range window {
		records[i] = models.AnomalyRecord{
			ID:             uuid.NewString(),
			Sample:         s,
			IsAnomaly:      scores[i] > threshold,
			Score:          scores[i],
			ExpectedRanges: ranges,
		}
	}
	return records, nil
}

func neutralRecords(window []models.MetricSample) []models.AnomalyRecord {
	records := make([]models.AnomalyRecord, len(window))
	for i, s := range window {
		records[i] = models.AnomalyRecord{ID: uuid.NewString(), Sample: s}
	}
	return records
}

// Anomalous filters records down to the flagged ones.
func Anomalous(records []models.AnomalyRecord) []models.AnomalyRecord {
	out := []models.AnomalyRecord{}
	for _, r := range records {
		if r.IsAnomaly {
			out = append(out, r)
		}
	}
	return out
}
