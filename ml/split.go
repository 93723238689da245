package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// splitIndices shuffles 0..n-1 with a seeded source and carves off
// ceil(n*validation) indices for validation. The same seed and n always
// produce the same partition.
func splitIndices(n int, validation float64, seed int64) (train, val []int, err error) {
	if validation <= 0 || validation >= 1 {
		return nil, nil, fmt.Errorf("validation split %.2f outside (0, 1)", validation)
	}
	nVal := int(math.Ceil(float64(n) * validation))
	nTrain := n - nVal
	if nVal < 1 || nTrain < 1 {
		return nil, nil, fmt.Errorf("%d samples leave %d train / %d validation: %w", n, nTrain, nVal, ErrInsufficientData)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nVal:], perm[:nVal], nil
}

func pickRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, k := range idx {
		out[i] = X[k]
	}
	return out
}

func pickValues(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = y[k]
	}
	return out
}
