package models

import "errors"

var (
	// ErrInsufficientData means fewer aligned rows than the training minimum.
	ErrInsufficientData = errors.New("Insufficient data for training")
	// ErrFeatureUnavailable means the series cannot produce a single complete feature row.
	ErrFeatureUnavailable = errors.New("Could not prepare features for prediction")
	// ErrUpstreamData means the bar series is empty, malformed or could not be fetched.
	ErrUpstreamData = errors.New("upstream data unavailable")
)

// ErrModelNotTrained is returned when a trained model is required but none exists.
var ErrModelNotTrained = errors.New("model not trained")
