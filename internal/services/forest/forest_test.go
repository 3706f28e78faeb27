package forest

import (
	"errors"
	"math"
	"testing"
)

func linearData(n int) ([][]float64, []float64) {
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		// second column is constant and carries no signal
		x[i] = []float64{float64(i), 7}
		y[i] = 2*float64(i) + 1
	}
	return x, y
}

func TestForestFitsLinearTrend(t *testing.T) {
	x, y := linearData(60)
	f := New(DefaultConfig())
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	r2, err := f.Score(x, y)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if r2 <= 0.95 {
		t.Fatalf("in-sample r2=%.4f want > 0.95", r2)
	}
	if len(f.trees) != 100 {
		t.Fatalf("trees=%d want 100", len(f.trees))
	}
}

func TestForestDeterministicAcrossWorkers(t *testing.T) {
	x, y := linearData(40)
	cfg := DefaultConfig()
	cfg.Workers = 1
	a := New(cfg)
	cfg.Workers = 8
	b := New(cfg)
	if err := a.Fit(x, y); err != nil {
		t.Fatalf("fit a: %v", err)
	}
	if err := b.Fit(x, y); err != nil {
		t.Fatalf("fit b: %v", err)
	}
	for _, probe := range [][]float64{{-3, 7}, {12.5, 7}, {39, 7}, {100, 7}} {
		pa, _ := a.Predict(probe)
		pb, _ := b.Predict(probe)
		if pa != pb {
			t.Fatalf("probe %v: %v != %v", probe, pa, pb)
		}
	}
}

func TestForestRespectsMaxDepth(t *testing.T) {
	x, y := linearData(200)
	cfg := DefaultConfig()
	cfg.NEstimators = 10
	cfg.MaxDepth = 3
	f := New(cfg)
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	for i, tr := range f.trees {
		if d := tr.depth(); d > 3 {
			t.Fatalf("tree %d depth=%d want <= 3", i, d)
		}
	}
}

func TestForestCannotExtrapolate(t *testing.T) {
	x, y := linearData(30)
	f := New(DefaultConfig())
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	p, err := f.Predict([]float64{1000, 7})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p > y[len(y)-1] {
		t.Fatalf("prediction %v exceeds largest training target %v", p, y[len(y)-1])
	}
}

func TestFeatureImportances(t *testing.T) {
	x, y := linearData(50)
	f := New(DefaultConfig())
	if got := f.FeatureImportances(); len(got) != 0 {
		t.Fatalf("unfitted importances should be empty, got %v", got)
	}
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	imp := f.FeatureImportances()
	if len(imp) != 2 {
		t.Fatalf("len=%d want 2", len(imp))
	}
	if imp[1] != 0 {
		t.Fatalf("constant column importance=%v want 0", imp[1])
	}
	if math.Abs(imp[0]+imp[1]-1) > 1e-9 {
		t.Fatalf("importances do not sum to 1: %v", imp)
	}
}

func TestForestErrors(t *testing.T) {
	f := New(DefaultConfig())
	if _, err := f.Predict([]float64{1, 2}); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
	if err := f.Fit(nil, nil); err == nil {
		t.Fatalf("expected error for empty training set")
	}
	if err := f.Fit([][]float64{{1}, {2}}, []float64{1}); err == nil {
		t.Fatalf("expected error for length mismatch")
	}
	if err := f.Fit([][]float64{{1}, {2, 3}}, []float64{1, 2}); err == nil {
		t.Fatalf("expected error for ragged rows")
	}
	x, y := linearData(10)
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if _, err := f.Predict([]float64{1}); err == nil {
		t.Fatalf("expected error for wrong feature count")
	}
}

func TestScoreHelpers(t *testing.T) {
	truth := []float64{1, 2, 3, 4}
	if got := R2(truth, truth); math.Abs(got-1) > 1e-12 {
		t.Fatalf("perfect r2=%v want 1", got)
	}
	mean := []float64{2.5, 2.5, 2.5, 2.5}
	if got := R2(truth, mean); math.Abs(got) > 1e-12 {
		t.Fatalf("mean predictor r2=%v want 0", got)
	}
	if got := MSE(truth, mean); math.Abs(got-1.25) > 1e-12 {
		t.Fatalf("mse=%v want 1.25", got)
	}
	if got := R2([]float64{5, 5}, []float64{5, 4}); got != 0 {
		t.Fatalf("constant truth r2=%v want 0", got)
	}
	if got := R2([]float64{5}, []float64{5}); got != 1 {
		t.Fatalf("single exact r2=%v want 1", got)
	}
}
