package service

import (
	"LutherTerminal/internal/domain/models"
)

// PricePredictor trains on a bar series and forecasts the close price horizon bars ahead.
// Implementations own their fitted model and are not safe for concurrent use.
type PricePredictor interface {
	Train(bars []models.Bar, horizon int) (models.TrainingOutcome, error)
	Predict(bars []models.Bar, horizon int) (models.PredictionResult, error)
	FeatureImportance() []models.FeatureImportance
	IsTrained() bool
	// TrainedHorizon is 0 for an untrained predictor.
	TrainedHorizon() int
}

// PredictorFactory builds a fresh, untrained predictor for one symbol.
type PredictorFactory func(symbol string) PricePredictor
