package handlers

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Metrics  *MetricHandler
	Insights *InsightsHandler
	Models   *ModelHandler
	Feedback *FeedbackHandler
}

func NewRouter(h Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", HealthCheck).Methods("GET")
	r.HandleFunc("/metric", instrument(h.Metrics.HandleMetric)).Methods("POST")
	r.HandleFunc("/analyze", instrument(h.Metrics.HandleAnalyze)).Methods("GET")
	r.HandleFunc("/insights", instrument(h.Insights.HandleInsights)).Methods("POST")
	r.HandleFunc("/predict", instrument(h.Models.HandlePredict)).Methods("POST")
	r.HandleFunc("/recommendations", instrument(h.Models.HandleRecommendations)).Methods("POST")
	r.HandleFunc("/optimizations", instrument(h.Models.HandleOptimizations)).Methods("POST")
	r.HandleFunc("/anomalies/feedback", instrument(h.Feedback.HandleFeedback)).Methods("POST")
	r.HandleFunc("/anomalies/{id}/feedback", instrument(h.Feedback.HandleFeedbackSummary)).Methods("GET")

	r.Path("/metrics").Handler(promhttp.Handler())
	return r
}
