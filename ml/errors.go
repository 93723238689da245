package ml

import "errors"

var (
	// ErrNotFitted is returned when a scaler or estimator is used before Fit.
	ErrNotFitted = errors.New("not fitted")

	// ErrInsufficientData is returned when a training set cannot be split into
	// non-empty training and validation partitions.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelNotFound is returned by Load when no artifact exists for a model name.
	ErrModelNotFound = errors.New("model not found")

	// ErrModelNotTrained is returned when a model is queried before Train or Load.
	ErrModelNotTrained = errors.New("model not trained")

	ErrComputation     = errors.New("computation error")
	ErrFeatureMismatch = errors.New("feature mismatch")
)
