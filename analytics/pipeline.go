package analytics

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"greenchain-insights/models"
)

// Forecaster predicts the next energy and emissions values for a sample.
type Forecaster interface {
	Forecast(sample models.MetricSample) (*models.Forecast, error)
}

type AnomalyCallback func(sourceID string)

type AlertCallback func(alert models.Alert)

// Request is one pipeline run over a caller-owned window.
type Request struct {
	Samples       []models.MetricSample   `json:"samples"`
	Preferences   *models.UserPreferences `json:"preferences,omitempty"`
	LearningGoals models.LearningGoals    `json:"learningGoals,omitempty"`
}

var ErrEmptyWindow = errors.New("no samples provided")

// Pipeline chains anomaly detection, insights and alerts over one window.
// It holds no per-run state, so concurrent runs on different windows are safe.
type Pipeline struct {
	detector   *AnomalyDetector
	insights   *InsightsService
	forecaster Forecaster
	log        *zap.Logger
	now        func() time.Time

	OnAnomaly AnomalyCallback
	OnAlert   AlertCallback
}

// NewPipeline wires the stages. forecaster may be nil, in which case alerts
// are computed from current values only.
func NewPipeline(detector *AnomalyDetector, insights *InsightsService, forecaster Forecaster, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		detector:   detector,
		insights:   insights,
		forecaster: forecaster,
		log:        log,
		now:        time.Now,
	}
}

// Run validates the request and produces the aggregated response. Only
// invalid input is an error; the analysis stages degrade on their own.
func (p *Pipeline) Run(req Request) (*models.PipelineResponse, error) {
	if len(req.Samples) == 0 {
		return nil, ErrEmptyWindow
	}
	if err := models.ValidateWindow(req.Samples); err != nil {
		return nil, err
	}
	prefs := models.DefaultPreferences()
	if req.Preferences != nil {
		if err := req.Preferences.Validate(); err != nil {
			return nil, err
		}
		prefs = *req.Preferences
	}
	if err := req.LearningGoals.Validate(); err != nil {
		return nil, err
	}

	window := chronological(req.Samples)
	latest := window[len(window)-1]

	var forecast *models.Forecast
	if p.forecaster != nil {
		f, err := p.forecaster.Forecast(latest)
		if err != nil {
			p.log.Warn("forecast unavailable", zap.String("source_id", latest.SourceID), zap.Error(err))
		} else {
			forecast = f
		}
	}

	anomalies := Anomalous(p.detector.Detect(window))
	p.log.Info("detected anomalies", zap.String("source_id", latest.SourceID), zap.Int("count", len(anomalies)))
	if p.OnAnomaly != nil {
		for _, a := range anomalies {
			p.OnAnomaly(a.Sample.SourceID)
		}
	}

	insights := p.insights.GenerateInsights(window, prefs, req.LearningGoals)
	alerts := p.insights.GenerateAlerts(window, prefs.AlertThresholds, forecast)
	if p.OnAlert != nil {
		for _, a := range alerts {
			p.OnAlert(a)
		}
	}
	p.log.Info("generated insights and alerts",
		zap.String("source_id", latest.SourceID),
		zap.Int("insights", len(insights)),
		zap.Int("alerts", len(alerts)))

	return &models.PipelineResponse{
		SourceID:  latest.SourceID,
		Insights:  insights,
		Alerts:    alerts,
		Anomalies: anomalies,
		Timestamp: p.now().UTC(),
	}, nil
}

// ErrorResponse wraps err in the error envelope returned at process boundaries.
func ErrorResponse(err error, now time.Time) models.ErrorResponse {
	return models.ErrorResponse{Error: err.Error(), Timestamp: now.UTC()}
}
