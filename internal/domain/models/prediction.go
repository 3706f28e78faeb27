package models

import "time"

// Bar represents an OHLCV record fetched by the market-data collaborator.
// RSI is only set when an upstream stage already computed it (0..100).
type Bar struct {
	Timestamp time.Time
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	RSI       *float64
}

type TrainingOutcome struct {
	Symbol          string
	Horizon         int
	Success         bool
	MSE             float64
	R2Score         float64
	TrainingSamples int
	TestSamples     int
	Error           string
}

type PredictionResult struct {
	Symbol             string
	AsOf               time.Time
	PredictedPrice     float64
	CurrentPrice       float64
	PredictedChange    float64
	PredictedChangePct float64
	Confidence         float64 // heuristic in [0.1, 0.9], not a calibrated probability
	HorizonDays        int
}

type FeatureImportance struct {
	Feature    string
	Importance float64
}

// WatchlistPredictions is a consolidated view over several symbols.
// Note: no transport (json/http) concerns here.
type WatchlistPredictions struct {
	Timestamp   time.Time
	Horizon     int
	Predictions map[string]PredictionResult
	Errors      map[string]string
}
