package repository

import (
	"context"
	"time"

	"LutherTerminal/internal/domain/models"
)

// BarStore provides read-only access to OHLCV bars, oldest first.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Bar, error)
}

// PredictionPublisher emits prediction events for downstream consumers (dashboard, alerts).
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, p models.PredictionResult) error
	PublishPredictions(ctx context.Context, ps []models.PredictionResult) error
	Close() error
}

type Metrics interface {
	RecordTraining(symbol string, outcome models.TrainingOutcome, seconds float64)
	RecordPrediction(symbol string, p models.PredictionResult, seconds float64)
	RecordError(kind string)
	RecordCacheHit(kind string, hit bool)
}
