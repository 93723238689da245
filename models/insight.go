package models

import "time"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Insight categories.
const (
	CategoryEnergy           = "energy"
	CategoryEmissions        = "emissions"
	CategoryEfficiency       = "efficiency"
	CategoryEnergyEfficiency = "energy_efficiency"
	CategoryEmissionsTotal   = "emissions_total"
)

type Insight struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Category  string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type Alert struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Predicted bool      `json:"predicted"`
	Timestamp time.Time `json:"timestamp"`
}

// ExpectedRange is the mean ± 2·std band of one monitored feature.
type ExpectedRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// AnomalyRecord is a sample annotated by one detection pass.
type AnomalyRecord struct {
	ID             string                   `json:"id"`
	Sample         MetricSample             `json:"sample"`
	IsAnomaly      bool                     `json:"isAnomaly"`
	Score          float64                  `json:"score"`
	ExpectedRanges map[string]ExpectedRange `json:"expectedRanges,omitempty"`
}

// Forecast is a forward prediction consumed by the alerts pass.
type Forecast struct {
	EnergyUsageKWh float64 `json:"energyUsage"`
	EmissionsKgCO2 float64 `json:"emissions"`
}

type PipelineResponse struct {
	SourceID  string          `json:"sourceId,omitempty"`
	Insights  []Insight       `json:"insights"`
	Alerts    []Alert         `json:"alerts"`
	Anomalies []AnomalyRecord `json:"anomalies"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// AnomalyFeedback is an operator's verdict on a flagged anomaly.
type AnomalyFeedback struct {
	AnomalyID string `json:"anomaly_id"`
	IsValid   *bool  `json:"is_valid"`
}

func (f *AnomalyFeedback) Validate() error {
	if f.AnomalyID == "" {
		return &ValidationError{Field: "anomaly_id", Reason: "is required"}
	}
	if f.IsValid == nil {
		return &ValidationError{Field: "is_valid", Reason: "is required"}
	}
	return nil
}
