package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"greenchain-insights/analytics"
	"greenchain-insights/ml"
	"greenchain-insights/models"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	anomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"source_id"},
	)

	alertsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_generated_total",
			Help: "Total number of alerts generated",
		},
		[]string{"severity", "predicted"},
	)
)

// RecordAnomaly is an analytics.AnomalyCallback.
func RecordAnomaly(sourceID string) {
	anomaliesDetectedTotal.WithLabelValues(sourceID).Inc()
}

// RecordAlert is an analytics.AlertCallback.
func RecordAlert(alert models.Alert) {
	alertsGeneratedTotal.WithLabelValues(string(alert.Severity), strconv.FormatBool(alert.Predicted)).Inc()
}

// instrument times the request and counts it by the status the handler wrote.
func instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		defer func() {
			duration := time.Since(start).Seconds()
			requestDurationSeconds.WithLabelValues(r.Method, endpoint).Observe(duration)
			httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		}()

		next(rec, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), analytics.ErrorResponse(err, time.Now()))
}

func statusFor(err error) int {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, analytics.ErrEmptyWindow), errors.Is(err, ml.ErrFeatureMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrModelNotTrained), errors.Is(err, ml.ErrModelNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &models.ValidationError{Field: "body", Reason: "invalid JSON format"}
	}
	return nil
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
