package metrics

import (
	"testing"

	"LutherTerminal/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordTraining("AAPL", models.TrainingOutcome{Success: true, Horizon: 1, R2Score: 0.4}, 0.2)
	r.RecordTraining("AAPL", models.TrainingOutcome{Success: false}, 0.01)
	r.RecordPrediction("AAPL", models.PredictionResult{Confidence: 0.7, PredictedChangePct: 1.5}, 0.05)
	r.RecordError("upstream")
	r.RecordCacheHit("prediction", true)
	r.RecordCacheHit("prediction", false)
	r.RecordCacheHit("prediction", false)

	if v := testutil.ToFloat64(r.trainings.WithLabelValues("AAPL", "failed")); v != 1 {
		t.Fatalf("failed trainings=%v", v)
	}
	if v := testutil.ToFloat64(r.trainR2.WithLabelValues("AAPL", "1")); v != 0.4 {
		t.Fatalf("r2 gauge=%v", v)
	}
	if v := testutil.ToFloat64(r.confidence.WithLabelValues("AAPL")); v != 0.7 {
		t.Fatalf("confidence gauge=%v", v)
	}
	if v := testutil.ToFloat64(r.cacheLookups.WithLabelValues("prediction", "miss")); v != 2 {
		t.Fatalf("cache misses=%v", v)
	}
	if v := testutil.ToFloat64(r.errorsTotal.WithLabelValues("upstream")); v != 1 {
		t.Fatalf("errors=%v", v)
	}
}
