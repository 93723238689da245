package analytics

import (
	"fmt"
	"math"
	"math/rand"

	"greenchain-insights/ml"
)

const (
	eulerGamma    = 0.5772156649015329
	maxSampleSize = 256
)

// IsolationForest scores points by how quickly random axis-aligned splits
// isolate them. Short average paths mean outliers.
type IsolationForest struct {
	trees      int
	seed       int64
	sampleSize int
	roots      []*iNode
}

type iNode struct {
	feature     int
	split       float64
	left, right *iNode
	size        int // leaf only
}

func (n *iNode) leaf() bool { return n.left == nil && n.right == nil }

func NewIsolationForest(trees int, seed int64) *IsolationForest {
	if trees < 1 {
		trees = 100
	}
	return &IsolationForest{trees: trees, seed: seed}
}

// Fit grows the trees on sub-samples of X without replacement.
func (f *IsolationForest) Fit(X [][]float64) error {
	if len(X) < 2 {
		return fmt.Errorf("isolation forest needs at least 2 samples, got %d: %w", len(X), ml.ErrComputation)
	}
	rng := rand.New(rand.NewSource(f.seed))
	f.sampleSize = len(X)
	if f.sampleSize > maxSampleSize {
		f.sampleSize = maxSampleSize
	}
	limit := int(math.Ceil(math.Log2(float64(f.sampleSize))))

	f.roots = make([]*iNode, f.trees)
	for t := range f.roots {
		idx := rng.Perm(len(X))[:f.sampleSize]
		rows := make([][]float64, len(idx))
		for i, k := range idx {
			rows[i] = X[k]
		}
		f.roots[t] = grow(rows, 0, limit, rng)
	}
	return nil
}

func grow(rows [][]float64, depth, limit int, rng *rand.Rand) *iNode {
	if depth >= limit || len(rows) <= 1 {
		return &iNode{size: len(rows)}
	}

	// Only features that still vary within this node can split it.
	type span struct {
		feature int
		lo, hi  float64
	}
	var spans []span
	for j := range rows[0] {
		lo, hi := rows[0][j], rows[0][j]
		for _, r := range rows[1:] {
			lo = math.Min(lo, r[j])
			hi = math.Max(hi, r[j])
		}
		if hi > lo {
			spans = append(spans, span{j, lo, hi})
		}
	}
	if len(spans) == 0 {
		return &iNode{size: len(rows)}
	}

	s := spans[rng.Intn(len(spans))]
	split := s.lo + rng.Float64()*(s.hi-s.lo)
	var left, right [][]float64
	for _, r := range rows {
		if r[s.feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &iNode{
		feature: s.feature,
		split:   split,
		left:    grow(left, depth+1, limit, rng),
		right:   grow(right, depth+1, limit, rng),
	}
}

// Score returns anomaly scores in (0, 1]; higher is more anomalous.
func (f *IsolationForest) Score(X [][]float64) ([]float64, error) {
	if len(f.roots) == 0 {
		return nil, fmt.Errorf("isolation forest: %w", ml.ErrNotFitted)
	}
	norm := averagePathLength(f.sampleSize)
	out := make([]float64, len(X))
	for i, x := range X {
		var total float64
		for _, root := range f.roots {
			total += pathLength(x, root, 0)
		}
		out[i] = math.Pow(2, -(total/float64(len(f.roots)))/norm)
	}
	return out, nil
}

func pathLength(x []float64, n *iNode, depth int) float64 {
	for !n.leaf() {
		if x[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.size)
}

// averagePathLength is the expected path length of an unsuccessful search in
// a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
