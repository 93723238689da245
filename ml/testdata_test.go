package ml

import (
	"testing"
	"time"

	"greenchain-insights/models"
)

// syntheticSamples returns n hourly samples whose energy is a linear function
// of transaction count and block time.
func syntheticSamples(n int) []models.MetricSample {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.MetricSample, n)
	for i := 0; i < n; i++ {
		tx := float64(100 + (i*37)%400)
		block := 2 + float64(i%7)
		consensus := models.ProofOfWork
		if i%2 == 0 {
			consensus = models.ProofOfStake
		}
		energy := 0.5*tx + 10*block
		out[i] = models.MetricSample{
			SourceID:           "net",
			Timestamp:          start.Add(time.Duration(i) * time.Hour),
			TransactionCount:   tx,
			BlockTime:          block,
			EnergyUsageKWh:     energy,
			EmissionsKgCO2:     energy * 0.4,
			ActiveValidators:   float64(50 + i%20),
			NetworkUsage:       float64(i%10) / 10,
			ConsensusMechanism: consensus,
		}
	}
	return out
}

func trainedPredictor(t testing.TB, target Target) *SustainabilityPredictor {
	t.Helper()
	p := NewSustainabilityPredictor(target, DefaultOptions(), nil)
	X, y := p.TrainingSet(syntheticSamples(60))
	if _, err := p.Train(X, y, 0.2); err != nil {
		t.Fatalf("train %s: %v", target, err)
	}
	return p
}
