package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"greenchain-insights/ml"
	"greenchain-insights/models"
)

type InsightsConfig struct {
	// TrendThreshold is the minimum absolute mean step reported as a trend.
	TrendThreshold float64
	// GoalPriority is the learning-goal rating from which goal insights are added.
	GoalPriority float64
}

func DefaultInsightsConfig() InsightsConfig {
	return InsightsConfig{TrendThreshold: 0.1, GoalPriority: 4}
}

// InsightsService turns a metrics window into narratives and threshold alerts.
// Both generators fail soft: any internal error yields an empty list and a log line.
type InsightsService struct {
	cfg InsightsConfig
	log *zap.Logger
	now func() time.Time
}

func NewInsightsService(cfg InsightsConfig, log *zap.Logger) *InsightsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &InsightsService{cfg: cfg, log: log, now: time.Now}
}

func (s *InsightsService) GenerateInsights(window []models.MetricSample, prefs models.UserPreferences, goals models.LearningGoals) []models.Insight {
	insights, err := s.insights(chronological(window), prefs, goals)
	if err != nil {
		s.log.Error("error generating insights", zap.Int("samples", len(window)), zap.Error(err))
		return []models.Insight{}
	}
	return insights
}

func (s *InsightsService) insights(window []models.MetricSample, prefs models.UserPreferences, goals models.LearningGoals) ([]models.Insight, error) {
	if len(window) == 0 {
		return nil, fmt.Errorf("empty window: %w", ml.ErrComputation)
	}
	energy := series(window, func(m models.MetricSample) float64 { return m.EnergyUsageKWh })
	emissions := series(window, func(m models.MetricSample) float64 { return m.EmissionsKgCO2 })

	out := []models.Insight{}
	add := func(category, msg string) {
		out = append(out, models.Insight{ID: uuid.NewString(), Message: msg, Category: category, Timestamp: s.now()})
	}

	if prefs.Focused(models.FocusEnergy) {
		if t, ok := trend(energy); ok && math.Abs(t) > s.cfg.TrendThreshold {
			add(models.CategoryEnergy, fmt.Sprintf("Energy usage is %s (%.2f kWh/period)", direction(t), math.Abs(t)))
		}
	}

	if prefs.Focused(models.FocusEmissions) {
		if t, ok := trend(emissions); ok && math.Abs(t) > s.cfg.TrendThreshold {
			add(models.CategoryEmissions, fmt.Sprintf("CO2 emissions are %s (%.2f kg/period)", direction(t), math.Abs(t)))
		}
	}

	if prefs.Focused(models.FocusTransactions) {
		perTx := series(window, func(m models.MetricSample) float64 { return m.EnergyPerTransaction() })
		add(models.CategoryEfficiency, fmt.Sprintf("Average energy usage per transaction: %.4f kWh", stat.Mean(perTx, nil)))
	}

	if goals[models.GoalEnergyEfficiency] >= s.cfg.GoalPriority {
		peak := floats.MaxIdx(energy)
		add(models.CategoryEnergyEfficiency, fmt.Sprintf("Peak energy usage of %.2f kWh detected at %s",
			energy[peak], window[peak].Timestamp.UTC().Format(time.RFC3339)))
	}

	if goals[models.GoalEmissions] >= s.cfg.GoalPriority {
		add(models.CategoryEmissionsTotal, fmt.Sprintf("Total CO2 emissions for the period: %.2f kg", floats.Sum(emissions)))
	}

	return out, nil
}

// GenerateAlerts checks the most recent sample against the thresholds, then
// the forecast if one is given. A zero threshold disables its metric.
func (s *InsightsService) GenerateAlerts(window []models.MetricSample, thresholds models.AlertThresholds, forecast *models.Forecast) []models.Alert {
	alerts, err := s.alerts(chronological(window), thresholds, forecast)
	if err != nil {
		s.log.Error("error generating alerts", zap.Int("samples", len(window)), zap.Error(err))
		return []models.Alert{}
	}
	return alerts
}

func (s *InsightsService) alerts(window []models.MetricSample, t models.AlertThresholds, forecast *models.Forecast) ([]models.Alert, error) {
	if len(window) == 0 {
		return nil, fmt.Errorf("empty window: %w", ml.ErrComputation)
	}
	latest := window[len(window)-1]

	out := []models.Alert{}
	add := func(sev models.Severity, predicted bool, msg string) {
		out = append(out, models.Alert{ID: uuid.NewString(), Message: msg, Severity: sev, Predicted: predicted, Timestamp: s.now()})
	}

	if t.Energy > 0 && latest.EnergyUsageKWh > t.Energy {
		add(models.SeverityHigh, false, fmt.Sprintf("Energy usage (%.2f kWh) exceeds threshold (%s kWh)",
			latest.EnergyUsageKWh, formatNumber(t.Energy)))
	}
	if t.Emissions > 0 && latest.EmissionsKgCO2 > t.Emissions {
		add(models.SeverityHigh, false, fmt.Sprintf("CO2 emissions (%.2f kg) exceeds threshold (%s kg)",
			latest.EmissionsKgCO2, formatNumber(t.Emissions)))
	}
	if t.Transactions > 0 && latest.TransactionCount > t.Transactions {
		add(models.SeverityMedium, false, fmt.Sprintf("Transaction count (%s) exceeds threshold (%s)",
			formatNumber(latest.TransactionCount), formatNumber(t.Transactions)))
	}

	if forecast != nil {
		if t.Energy > 0 && forecast.EnergyUsageKWh > t.Energy {
			add(models.SeverityMedium, true, fmt.Sprintf("Predicted energy usage (%.2f kWh) may exceed threshold (%s kWh)",
				forecast.EnergyUsageKWh, formatNumber(t.Energy)))
		}
		if t.Emissions > 0 && forecast.EmissionsKgCO2 > t.Emissions {
			add(models.SeverityMedium, true, fmt.Sprintf("Predicted CO2 emissions (%.2f kg) may exceed threshold (%s kg)",
				forecast.EmissionsKgCO2, formatNumber(t.Emissions)))
		}
	}
	return out, nil
}

// trend is the mean of consecutive differences; it needs two points.
func trend(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}
	return stat.Mean(diffs, nil), true
}

func direction(t float64) string {
	if t > 0 {
		return "increasing"
	}
	return "decreasing"
}

func series(window []models.MetricSample, pick func(models.MetricSample) float64) []float64 {
	out := make([]float64, len(window))
	for i, m := range window {
		out[i] = pick(m)
	}
	return out
}

// chronological returns the window sorted by timestamp, keeping input order for ties.
func chronological(window []models.MetricSample) []models.MetricSample {
	out := append([]models.MetricSample(nil), window...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
