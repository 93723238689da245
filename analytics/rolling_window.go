package analytics

import (
	"sync"

	"greenchain-insights/models"
)

// RollingWindow keeps the most recent samples of one source in a ring buffer.
type RollingWindow struct {
	mu         sync.RWMutex
	windowSize int
	values     []models.MetricSample
	index      int
	count      int
}

func NewRollingWindow(size int) *RollingWindow {
	if size < 1 {
		size = 1
	}
	return &RollingWindow{
		windowSize: size,
		values:     make([]models.MetricSample, size),
	}
}

func (rw *RollingWindow) Add(sample models.MetricSample) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.values[rw.index] = sample
	rw.index = (rw.index + 1) % rw.windowSize
	if rw.count < rw.windowSize {
		rw.count++
	}
}

func (rw *RollingWindow) Len() int {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	return rw.count
}

// Samples returns a copy of the window, oldest first.
func (rw *RollingWindow) Samples() []models.MetricSample {
	rw.mu.RLock()
	defer rw.mu.RUnlock()

	out := make([]models.MetricSample, 0, rw.count)
	start := 0
	if rw.count == rw.windowSize {
		start = rw.index
	}
	for i := 0; i < rw.count; i++ {
		out = append(out, rw.values[(start+i)%rw.windowSize])
	}
	return out
}
