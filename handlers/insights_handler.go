package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"greenchain-insights/analytics"
)

// InsightsHandler runs the pipeline over a caller-supplied window.
type InsightsHandler struct {
	pipeline *analytics.Pipeline
	log      *zap.Logger
}

func NewInsightsHandler(pipeline *analytics.Pipeline, log *zap.Logger) *InsightsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InsightsHandler{pipeline: pipeline, log: log}
}

func (h *InsightsHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	var req analytics.Request
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.pipeline.Run(req)
	if err != nil {
		h.log.Warn("insights request rejected", zap.Int("samples", len(req.Samples)), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
