package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"greenchain-insights/models"
)

// FeedbackStore persists operator verdicts on flagged anomalies.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, fb models.AnomalyFeedback) error
	FeedbackCounts(ctx context.Context, anomalyID string) (valid, invalid int, err error)
}

// FeedbackSummary tallies the verdicts recorded for one anomaly.
type FeedbackSummary struct {
	AnomalyID string `json:"anomaly_id"`
	Valid     int    `json:"valid"`
	Invalid   int    `json:"invalid"`
}

type FeedbackHandler struct {
	store FeedbackStore
	log   *zap.Logger
}

func NewFeedbackHandler(store FeedbackStore, log *zap.Logger) *FeedbackHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeedbackHandler{store: store, log: log}
}

func (h *FeedbackHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb models.AnomalyFeedback
	if err := decode(r, &fb); err != nil {
		writeError(w, err)
		return
	}
	if err := fb.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.SaveFeedback(r.Context(), fb); err != nil {
		h.log.Error("failed to save feedback", zap.String("anomaly_id", fb.AnomalyID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"status":     "recorded",
		"anomaly_id": fb.AnomalyID,
	})
}

func (h *FeedbackHandler) HandleFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	valid, invalid, err := h.store.FeedbackCounts(r.Context(), id)
	if err != nil {
		h.log.Error("failed to count feedback", zap.String("anomaly_id", id), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FeedbackSummary{AnomalyID: id, Valid: valid, Invalid: invalid})
}
