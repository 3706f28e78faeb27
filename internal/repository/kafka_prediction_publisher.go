package repository

import (
	"context"
	"time"

	"LutherTerminal/internal/domain/models"
	domrepo "LutherTerminal/internal/domain/repository"
	pkgkafka "LutherTerminal/pkg/kafka"
)

// predictionEvent is the wire format of a prediction on the events topic.
type predictionEvent struct {
	Type               string  `json:"type"`
	Symbol             string  `json:"symbol"`
	AsOf               int64   `json:"as_of"`
	EmittedAt          int64   `json:"emitted_at"`
	HorizonDays        int     `json:"horizon_days"`
	CurrentPrice       float64 `json:"current_price"`
	PredictedPrice     float64 `json:"predicted_price"`
	PredictedChangePct float64 `json:"predicted_change_pct"`
	Confidence         float64 `json:"confidence"`
}

func newPredictionEvent(p models.PredictionResult, now time.Time) predictionEvent {
	return predictionEvent{
		Type:               predictionEventType,
		Symbol:             p.Symbol,
		AsOf:               p.AsOf.Unix(),
		EmittedAt:          now.Unix(),
		HorizonDays:        p.HorizonDays,
		CurrentPrice:       p.CurrentPrice,
		PredictedPrice:     p.PredictedPrice,
		PredictedChangePct: p.PredictedChangePct,
		Confidence:         p.Confidence,
	}
}

const predictionEventType = "price_prediction"

func predictionMessage(r models.PredictionResult, now time.Time) pkgkafka.Message {
	return pkgkafka.Message{
		Key:     []byte(r.Symbol),
		Value:   newPredictionEvent(r, now),
		Headers: map[string]string{"event_type": predictionEventType},
	}
}

// KafkaPredictionPublisher implements PredictionPublisher for Kafka, keyed by symbol.
type KafkaPredictionPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaPredictionPublisher(producer *pkgkafka.Producer) *KafkaPredictionPublisher {
	return &KafkaPredictionPublisher{producer: producer}
}

func (p *KafkaPredictionPublisher) PublishPrediction(ctx context.Context, r models.PredictionResult) error {
	return p.producer.Publish(ctx, predictionMessage(r, time.Now()))
}

func (p *KafkaPredictionPublisher) PublishPredictions(ctx context.Context, rs []models.PredictionResult) error {
	if len(rs) == 0 {
		return nil
	}
	now := time.Now()
	msgs := make([]pkgkafka.Message, len(rs))
	for i, r := range rs {
		msgs[i] = predictionMessage(r, now)
	}
	return p.producer.PublishBatch(ctx, msgs)
}

func (p *KafkaPredictionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishPrediction(context.Context, models.PredictionResult) error      { return nil }
func (NoopPublisher) PublishPredictions(context.Context, []models.PredictionResult) error { return nil }
func (NoopPublisher) Close() error                                                          { return nil }

var (
	_ domrepo.PredictionPublisher = (*KafkaPredictionPublisher)(nil)
	_ domrepo.PredictionPublisher = NoopPublisher{}
)
