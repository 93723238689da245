package ml

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	lowerPercentile = 0.025
	upperPercentile = 0.975
)

// bootstrapInterval resamples the rows of X with replacement n times, predicts
// each resample and returns the pointwise 2.5/97.5 percentiles of the
// predictions. X must already be scaled. Resample indices come from a source
// seeded with seed, so identical inputs give identical intervals.
func bootstrapInterval(predict func([][]float64) ([]float64, error), X [][]float64, n int, seed int64) (lower, upper []float64, err error) {
	m := len(X)
	if m == 0 {
		return nil, nil, fmt.Errorf("bootstrap on empty input: %w", ErrComputation)
	}
	if n < 1 {
		return nil, nil, fmt.Errorf("bootstrap needs at least one resample, got %d", n)
	}

	rng := rand.New(rand.NewSource(seed))
	draws := make([][]float64, m)
	for j := range draws {
		draws[j] = make([]float64, n)
	}

	sample := make([][]float64, m)
	for i := 0; i < n; i++ {
		for j := range sample {
			sample[j] = X[rng.Intn(m)]
		}
		preds, err := predict(sample)
		if err != nil {
			return nil, nil, err
		}
		for j, p := range preds {
			draws[j][i] = p
		}
	}

	lower = make([]float64, m)
	upper = make([]float64, m)
	for j, col := range draws {
		sort.Float64s(col)
		lower[j] = stat.Quantile(lowerPercentile, stat.LinInterp, col, nil)
		upper[j] = stat.Quantile(upperPercentile, stat.LinInterp, col, nil)
	}
	return lower, upper, nil
}
