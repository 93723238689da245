package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"greenchain-insights/ml"
	"greenchain-insights/models"
)

type PredictRequest struct {
	Model  ml.Target           `json:"model"`
	Sample models.MetricSample `json:"sample"`
}

type RecommendationsRequest struct {
	Entities []models.Entity    `json:"entities"`
	Weights  map[string]float64 `json:"weights,omitempty"`
}

type OptimizationsResponse struct {
	Blockchain          string              `json:"blockchain"`
	SustainabilityScore float64             `json:"sustainability_score"`
	Suggestions         []models.Suggestion `json:"suggestions"`
	EnergyForecast      *models.Prediction  `json:"energy_forecast,omitempty"`
}

// ModelHandler serves predictions, rankings and optimization advice.
type ModelHandler struct {
	predictors  map[ml.Target]*ml.SustainabilityPredictor
	recommender *ml.Recommender
	log         *zap.Logger
}

func NewModelHandler(energy, emissions *ml.SustainabilityPredictor, recommender *ml.Recommender, log *zap.Logger) *ModelHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModelHandler{
		predictors: map[ml.Target]*ml.SustainabilityPredictor{
			ml.TargetEnergy:    energy,
			ml.TargetEmissions: emissions,
		},
		recommender: recommender,
		log:         log,
	}
}

func (h *ModelHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Model == "" {
		req.Model = ml.TargetEnergy
	}
	predictor, ok := h.predictors[req.Model]
	if !ok || predictor == nil {
		writeError(w, &models.ValidationError{Field: "model", Reason: fmt.Sprintf("unknown model %q", req.Model)})
		return
	}
	if err := req.Sample.Validate(); err != nil {
		writeError(w, err)
		return
	}

	prediction, err := predictor.Predict(req.Sample)
	if err != nil {
		h.log.Warn("prediction failed", zap.String("model", string(req.Model)), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (h *ModelHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for i := range req.Entities {
		if err := req.Entities[i].Validate(); err != nil {
			writeError(w, err)
			return
		}
	}

	rec := h.recommender
	if len(req.Weights) > 0 {
		var err error
		if rec, err = rec.WithWeights(req.Weights); err != nil {
			writeError(w, err)
			return
		}
	}

	ranked, err := rec.CalculateScores(req.Entities)
	if err != nil {
		h.log.Error("failed to rank entities", zap.Int("entities", len(req.Entities)), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (h *ModelHandler) HandleOptimizations(w http.ResponseWriter, r *http.Request) {
	var entity models.Entity
	if err := decode(r, &entity); err != nil {
		writeError(w, err)
		return
	}
	if err := entity.Validate(); err != nil {
		writeError(w, err)
		return
	}

	resp := OptimizationsResponse{
		Blockchain:          entity.Name,
		SustainabilityScore: ml.SustainabilityScore(entity.EnergyUsageKWh, entity.TransactionCount),
		Suggestions:         h.recommender.SuggestOptimizations(entity),
	}
	if energy := h.predictors[ml.TargetEnergy]; energy != nil && energy.Trained() && entity.BlockTime > 0 {
		if p, err := energy.Predict(entity.Sample()); err != nil {
			h.log.Warn("energy forecast unavailable", zap.String("blockchain", entity.Name), zap.Error(err))
		} else {
			resp.EnergyForecast = p
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
