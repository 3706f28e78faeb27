package metrics

import (
	"strconv"

	"LutherTerminal/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainings      *prometheus.CounterVec
	trainLatency   *prometheus.HistogramVec
	trainR2        *prometheus.GaugeVec
	predictions    *prometheus.CounterVec
	predictLatency *prometheus.HistogramVec
	confidence     *prometheus.GaugeVec
	predictedPct   *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		trainings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luther_trainings_total",
				Help: "Model training runs by result",
			},
			[]string{"symbol", "result"},
		),
		trainLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "luther_training_duration_seconds",
				Help:    "Duration of model training in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"symbol"},
		),
		trainR2: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "luther_model_test_r2",
				Help: "Held-out R² of the latest successful training",
			},
			[]string{"symbol", "horizon"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luther_predictions_total",
				Help: "Predictions served",
			},
			[]string{"symbol"},
		),
		predictLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "luther_prediction_duration_seconds",
				Help:    "Duration of a prediction in seconds, including implicit training",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "luther_prediction_confidence",
				Help: "Confidence of the last prediction",
			},
			[]string{"symbol"},
		),
		predictedPct: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "luther_predicted_change_pct",
				Help: "Predicted percent change of the last prediction",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luther_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luther_cache_lookups_total",
				Help: "Cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

func (r *Recorder) RecordTraining(symbol string, outcome models.TrainingOutcome, seconds float64) {
	result := "ok"
	if !outcome.Success {
		result = "failed"
	}
	r.trainings.WithLabelValues(symbol, result).Inc()
	r.trainLatency.WithLabelValues(symbol).Observe(seconds)
	if outcome.Success {
		r.trainR2.WithLabelValues(symbol, strconv.Itoa(outcome.Horizon)).Set(outcome.R2Score)
	}
}

func (r *Recorder) RecordPrediction(symbol string, p models.PredictionResult, seconds float64) {
	r.predictions.WithLabelValues(symbol).Inc()
	r.predictLatency.WithLabelValues(symbol).Observe(seconds)
	r.confidence.WithLabelValues(symbol).Set(p.Confidence)
	r.predictedPct.WithLabelValues(symbol).Set(p.PredictedChangePct)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordCacheHit(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}
