package analytics

import (
	"errors"
	"math"
	"testing"

	"greenchain-insights/ml"
)

func TestAveragePathLength(t *testing.T) {
	if got := averagePathLength(1); got != 0 {
		t.Fatalf("c(1): want 0, got %f", got)
	}
	if got := averagePathLength(2); got != 1 {
		t.Fatalf("c(2): want 1, got %f", got)
	}
	want := 2*(math.Log(255)+eulerGamma) - 2*255.0/256
	if got := averagePathLength(256); math.Abs(got-want) > 1e-9 {
		t.Fatalf("c(256): want %f, got %f", want, got)
	}
}

func TestIsolationForestScoresOutlierHighest(t *testing.T) {
	X := [][]float64{{1, 1}, {1.1, 0.9}, {0.9, 1.1}, {1, 1.05}, {10, 10}}
	f := NewIsolationForest(100, 42)
	if err := f.Fit(X); err != nil {
		t.Fatalf("fit: %v", err)
	}
	scores, err := f.Score(X)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for i := 0; i < 4; i++ {
		if scores[i] >= scores[4] {
			t.Fatalf("inlier %d scored %f, outlier %f", i, scores[i], scores[4])
		}
	}
	for i, s := range scores {
		if s <= 0 || s > 1 {
			t.Fatalf("score %d out of (0, 1]: %f", i, s)
		}
	}
}

func TestIsolationForestErrors(t *testing.T) {
	f := NewIsolationForest(10, 1)
	if err := f.Fit([][]float64{{1}}); !errors.Is(err, ml.ErrComputation) {
		t.Fatalf("expected ErrComputation, got %v", err)
	}
	if _, err := f.Score([][]float64{{1}}); err == nil {
		t.Fatalf("expected error scoring an unfitted forest")
	}
}

func TestIsolationForestSeeded(t *testing.T) {
	X := make([][]float64, 40)
	for i := range X {
		X[i] = []float64{float64(i % 7), float64((i * 13) % 11), float64(i)}
	}

	score := func(seed int64) []float64 {
		f := NewIsolationForest(50, seed)
		if err := f.Fit(X); err != nil {
			t.Fatalf("fit: %v", err)
		}
		s, err := f.Score(X)
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		return s
	}

	a, b, other := score(42), score(42), score(7)
	differs := false
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different scores at %d: %f vs %f", i, a[i], b[i])
		}
		if a[i] != other[i] {
			differs = true
		}
	}
	if !differs {
		t.Fatalf("a different seed should grow different trees")
	}
}
