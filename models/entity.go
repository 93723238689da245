package models

import "time"

// Entity is a network submitted for ranking or optimization advice.
type Entity struct {
	Name                string             `json:"name"`
	ConsensusMechanism  ConsensusMechanism `json:"consensus_mechanism"`
	Timestamp           time.Time          `json:"timestamp"`
	TransactionCount    float64            `json:"transaction_count"`
	BlockTime           float64            `json:"block_time"`
	ActiveValidators    float64            `json:"active_validators"`
	NetworkUsage        float64            `json:"network_usage"`
	EnergyUsageKWh      float64            `json:"energy_usage_kwh"`
	SustainabilityScore float64            `json:"sustainability_score"`
	AvgBlockSpaceUsed   float64            `json:"avg_block_space_used"`
	PeakHourUsage       bool               `json:"peak_hour_usage"`
}

func (e *Entity) Validate() error {
	if e.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if e.TransactionCount < 0 || e.EnergyUsageKWh < 0 || e.ActiveValidators < 0 {
		return &ValidationError{Field: e.Name, Reason: "counts and energy must be non-negative"}
	}
	return nil
}

// EnergyPerTransaction treats fewer than one transaction as one.
func (e *Entity) EnergyPerTransaction() float64 {
	tx := e.TransactionCount
	if tx < 1 {
		tx = 1
	}
	return e.EnergyUsageKWh / tx
}

// Sample projects the entity onto a MetricSample for prediction.
func (e *Entity) Sample() MetricSample {
	return MetricSample{
		SourceID:           e.Name,
		Timestamp:          e.Timestamp,
		TransactionCount:   e.TransactionCount,
		BlockTime:          e.BlockTime,
		EnergyUsageKWh:     e.EnergyUsageKWh,
		ActiveValidators:   e.ActiveValidators,
		NetworkUsage:       e.NetworkUsage,
		ConsensusMechanism: e.ConsensusMechanism,
	}
}

type Recommendation struct {
	EntityName    string  `json:"blockchain"`
	WeightedScore float64 `json:"sustainability_score"`
	Explanation   string  `json:"explanation"`
}

type Suggestion struct {
	Type            string   `json:"type"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PotentialSaving string   `json:"potential_saving"`
	Priority        Severity `json:"priority"`
}

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

type Prediction struct {
	Model       string             `json:"model"`
	Value       float64            `json:"prediction"`
	Interval    ConfidenceInterval `json:"confidence_interval"`
	Explanation string             `json:"explanation"`
}
