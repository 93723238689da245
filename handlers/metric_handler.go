package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"greenchain-insights/analytics"
	"greenchain-insights/models"
)

// MetricHandler feeds the streaming engine and serves per-source reports.
type MetricHandler struct {
	engine *analytics.AnalyticsEngine
	log    *zap.Logger
}

func NewMetricHandler(engine *analytics.AnalyticsEngine, log *zap.Logger) *MetricHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MetricHandler{engine: engine, log: log}
}

func (h *MetricHandler) HandleMetric(w http.ResponseWriter, r *http.Request) {
	var sample models.MetricSample
	if err := decode(r, &sample); err != nil {
		writeError(w, err)
		return
	}

	if err := sample.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if !h.engine.ProcessMetric(sample) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "dropped",
			"source_id": sample.SourceID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "accepted",
		"source_id": sample.SourceID,
	})
}

// HandleAnalyze serves the cached report for source_id, running the pipeline
// over the current window when nothing is cached or refresh=true.
func (h *MetricHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		writeError(w, &models.ValidationError{Field: "source_id", Reason: "parameter is required"})
		return
	}

	if r.URL.Query().Get("refresh") != "true" {
		cached, err := h.engine.CachedReport(r.Context(), sourceID)
		if err != nil {
			h.log.Warn("failed to read cached report", zap.String("source_id", sourceID), zap.Error(err))
		} else if cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	report, err := h.engine.Analyze(r.Context(), sourceID, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
