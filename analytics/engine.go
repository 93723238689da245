package analytics

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"greenchain-insights/models"
)

// ReportStore caches the latest pipeline response per source.
type ReportStore interface {
	SaveReport(ctx context.Context, sourceID string, report *models.PipelineResponse) error
	GetReport(ctx context.Context, sourceID string) (*models.PipelineResponse, error)
}

type EngineConfig struct {
	WindowSize int
	Workers    int
	QueueSize  int
}

// AnalyticsEngine ingests samples from many sources through a worker pool
// into per-source rolling windows and analyses a window on demand.
type AnalyticsEngine struct {
	pipeline       *Pipeline
	store          ReportStore
	log            *zap.Logger
	windowSize     int
	rollingWindows map[string]*RollingWindow
	mu             sync.RWMutex
	metricChan     chan models.MetricSample
	wg             sync.WaitGroup
	closeOnce      sync.Once
}

// NewAnalyticsEngine starts cfg.Workers ingestion workers (clamped to 4..16).
// store may be nil.
func NewAnalyticsEngine(pipeline *Pipeline, store ReportStore, cfg EngineConfig, log *zap.Logger) *AnalyticsEngine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.WindowSize < 2 {
		cfg.WindowSize = 50
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 10000
	}
	numWorkers := cfg.Workers
	if numWorkers < 4 {
		numWorkers = 4
	}
	if numWorkers > 16 {
		numWorkers = 16
	}

	engine := &AnalyticsEngine{
		pipeline:       pipeline,
		store:          store,
		log:            log,
		windowSize:     cfg.WindowSize,
		rollingWindows: make(map[string]*RollingWindow),
		metricChan:     make(chan models.MetricSample, cfg.QueueSize),
	}

	log.Info("starting analytics workers", zap.Int("workers", numWorkers))
	for i := 0; i < numWorkers; i++ {
		engine.wg.Add(1)
		go engine.processMetrics()
	}
	return engine
}

// ProcessMetric enqueues a sample without blocking. It reports false when the
// queue is full and the sample was dropped.
func (ae *AnalyticsEngine) ProcessMetric(sample models.MetricSample) bool {
	select {
	case ae.metricChan <- sample:
		return true
	default:
		ae.log.Warn("metric channel is full, dropping sample", zap.String("source_id", sample.SourceID))
		return false
	}
}

func (ae *AnalyticsEngine) processMetrics() {
	defer ae.wg.Done()
	for sample := range ae.metricChan {
		ae.window(sample.SourceID).Add(sample)
	}
}

func (ae *AnalyticsEngine) window(sourceID string) *RollingWindow {
	ae.mu.RLock()
	rw, ok := ae.rollingWindows[sourceID]
	ae.mu.RUnlock()
	if ok {
		return rw
	}

	ae.mu.Lock()
	defer ae.mu.Unlock()
	if rw, ok = ae.rollingWindows[sourceID]; !ok {
		rw = NewRollingWindow(ae.windowSize)
		ae.rollingWindows[sourceID] = rw
	}
	return rw
}

// Samples returns a snapshot of the source's window, or nil if unseen.
func (ae *AnalyticsEngine) Samples(sourceID string) []models.MetricSample {
	ae.mu.RLock()
	rw, ok := ae.rollingWindows[sourceID]
	ae.mu.RUnlock()
	if !ok {
		return nil
	}
	return rw.Samples()
}

// Analyze runs the pipeline over the source's current window with prefs and
// caches the result. A cache failure is logged, not returned.
func (ae *AnalyticsEngine) Analyze(ctx context.Context, sourceID string, prefs *models.UserPreferences) (*models.PipelineResponse, error) {
	report, err := ae.pipeline.Run(Request{Samples: ae.Samples(sourceID), Preferences: prefs})
	if err != nil {
		return nil, err
	}
	if ae.store != nil {
		if err := ae.store.SaveReport(ctx, sourceID, report); err != nil {
			ae.log.Error("failed to save report", zap.String("source_id", sourceID), zap.Error(err))
		}
	}
	return report, nil
}

// CachedReport returns the last cached report, or nil when none is cached.
func (ae *AnalyticsEngine) CachedReport(ctx context.Context, sourceID string) (*models.PipelineResponse, error) {
	if ae.store == nil {
		return nil, nil
	}
	return ae.store.GetReport(ctx, sourceID)
}

// Close stops accepting samples and waits for the workers to drain the queue.
// ProcessMetric must not be called after Close.
func (ae *AnalyticsEngine) Close() {
	ae.closeOnce.Do(func() {
		close(ae.metricChan)
		ae.wg.Wait()
	})
}
