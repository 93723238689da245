package models

import (
	"fmt"
	"time"
)

type ConsensusMechanism string

const (
	ProofOfStake   ConsensusMechanism = "proof-of-stake"
	ProofOfWork    ConsensusMechanism = "proof-of-work"
	OtherConsensus ConsensusMechanism = "other"
)

// MetricSample is one observation of a network's activity and footprint.
// A slice of samples ordered oldest first forms a metrics window.
type MetricSample struct {
	SourceID           string             `json:"sourceId"`
	Timestamp          time.Time          `json:"timestamp"`
	TransactionCount   float64            `json:"transactionCount"`
	BlockTime          float64            `json:"blockTime"`
	EnergyUsageKWh     float64            `json:"energyUsageKwh"`
	EmissionsKgCO2     float64            `json:"emissionsKgCo2"`
	ActiveValidators   float64            `json:"activeValidators"`
	NetworkUsage       float64            `json:"networkUsage"`
	ConsensusMechanism ConsensusMechanism `json:"consensusMechanism"`
}

// ValidationError reports a single invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Reason)
}

func (m *MetricSample) Validate() error {
	if m.SourceID == "" {
		return &ValidationError{Field: "sourceId", Reason: "is required"}
	}

	if m.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}

	if m.TransactionCount < 0 {
		return &ValidationError{Field: "transactionCount", Reason: "must be non-negative"}
	}

	if m.BlockTime <= 0 {
		return &ValidationError{Field: "blockTime", Reason: "must be positive"}
	}

	if m.EnergyUsageKWh < 0 {
		return &ValidationError{Field: "energyUsageKwh", Reason: "must be non-negative"}
	}

	if m.EmissionsKgCO2 < 0 {
		return &ValidationError{Field: "emissionsKgCo2", Reason: "must be non-negative"}
	}

	if m.ActiveValidators < 0 {
		return &ValidationError{Field: "activeValidators", Reason: "must be non-negative"}
	}

	if m.NetworkUsage < 0 || m.NetworkUsage > 1 {
		return &ValidationError{Field: "networkUsage", Reason: "must be between 0 and 1"}
	}

	switch m.ConsensusMechanism {
	case ProofOfStake, ProofOfWork, OtherConsensus, "":
	default:
		return &ValidationError{Field: "consensusMechanism", Reason: "unknown mechanism " + string(m.ConsensusMechanism)}
	}

	return nil
}

// IsProofOfStake reports whether the sample comes from a proof-of-stake network.
func (m *MetricSample) IsProofOfStake() bool {
	return m.ConsensusMechanism == ProofOfStake
}

// EnergyPerTransaction treats fewer than one transaction as one.
func (m *MetricSample) EnergyPerTransaction() float64 {
	tx := m.TransactionCount
	if tx < 1 {
		tx = 1
	}
	return m.EnergyUsageKWh / tx
}

// ValidateWindow validates every sample of a window.
func ValidateWindow(window []MetricSample) error {
	for i := range window {
		if err := window[i].Validate(); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}
