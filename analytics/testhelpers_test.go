package analytics

import (
	"time"

	"greenchain-insights/models"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sample(i int, energy, tx, emissions float64) models.MetricSample {
	return models.MetricSample{
		SourceID:           "ethereum",
		Timestamp:          baseTime.Add(time.Duration(i) * time.Minute),
		TransactionCount:   tx,
		BlockTime:          12,
		EnergyUsageKWh:     energy,
		EmissionsKgCO2:     emissions,
		ActiveValidators:   500,
		NetworkUsage:       0.5,
		ConsensusMechanism: models.ProofOfStake,
	}
}

// spikeWindow is three samples where the last one burns fifty times the energy.
func spikeWindow() []models.MetricSample {
	return []models.MetricSample{
		sample(0, 1.0, 100, 0.5),
		sample(1, 1.05, 105, 0.52),
		sample(2, 50.0, 100, 30.0),
	}
}
