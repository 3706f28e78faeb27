package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LutherTerminal/internal/domain/models"
	domrepo "LutherTerminal/internal/domain/repository"
	domsvc "LutherTerminal/internal/domain/service"
	icache "LutherTerminal/internal/service/cache"
	"LutherTerminal/internal/services/prediction"
)

func linearBars(symbol string, n int) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		out[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Symbol:    symbol,
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000 + 10*float64(i),
		}
	}
	return out
}

type fakeStore struct {
	mu    sync.Mutex
	bars  map[string][]models.Bar
	err   error
	calls int
}

func (s *fakeStore) GetBars(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Bar
	for _, b := range s.bars[symbol] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) GetLatestNBars(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	b := s.bars[symbol]
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return b, nil
}

type fakeMetrics struct {
	mu          sync.Mutex
	trainings   int
	predictions int
	errs        map[string]int
	hits        int
	misses      int
}

func (m *fakeMetrics) RecordTraining(string, models.TrainingOutcome, float64) {
	m.mu.Lock()
	m.trainings++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordPrediction(string, models.PredictionResult, float64) {
	m.mu.Lock()
	m.predictions++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	if m.errs == nil {
		m.errs = map[string]int{}
	}
	m.errs[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordCacheHit(_ string, hit bool) {
	m.mu.Lock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
	m.mu.Unlock()
}

type fakePublisher struct {
	mu      sync.Mutex
	single  []models.PredictionResult
	batches [][]models.PredictionResult
}

func (p *fakePublisher) PublishPrediction(_ context.Context, r models.PredictionResult) error {
	p.mu.Lock()
	p.single = append(p.single, r)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) PublishPredictions(_ context.Context, rs []models.PredictionResult) error {
	p.mu.Lock()
	p.batches = append(p.batches, rs)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func smallFactory() domsvc.PredictorFactory {
	cfg := prediction.DefaultConfig()
	cfg.Forest.NEstimators = 10
	return func(symbol string) domsvc.PricePredictor {
		return prediction.NewPredictor(symbol, cfg)
	}
}

func newStore() *fakeStore {
	return &fakeStore{bars: map[string][]models.Bar{
		"AAPL": linearBars("AAPL", 80),
		"TSLA": linearBars("TSLA", 80),
		"TINY": linearBars("TINY", 10),
	}}
}

func TestPredictTrainsOnceAndPublishes(t *testing.T) {
	store := newStore()
	m := &fakeMetrics{}
	pub := &fakePublisher{}
	uc := NewPredictionUseCase(store, smallFactory(), WithMetrics(m), WithPublisher(pub))

	res, err := uc.Predict(context.Background(), PredictParams{Symbol: "aapl", Horizon: 1, N: 60})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Symbol != "AAPL" || res.CurrentPrice != 179 {
		t.Fatalf("result=%+v", res)
	}
	if _, err := uc.Predict(context.Background(), PredictParams{Symbol: "AAPL", Horizon: 1, N: 60}); err != nil {
		t.Fatalf("second predict: %v", err)
	}
	if m.trainings != 1 || m.predictions != 2 {
		t.Fatalf("trainings=%d predictions=%d", m.trainings, m.predictions)
	}
	if len(pub.single) != 2 {
		t.Fatalf("published=%d want 2", len(pub.single))
	}
	if got := uc.Models(); len(got) != 1 || got[0] != (ModelInfo{Symbol: "AAPL", Timeframe: domrepo.TF1d, Horizon: 1}) {
		t.Fatalf("models=%v", got)
	}
}

func TestPredictRetrainsOnHorizonChange(t *testing.T) {
	m := &fakeMetrics{}
	uc := NewPredictionUseCase(newStore(), smallFactory(), WithMetrics(m))
	ctx := context.Background()

	if _, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", Horizon: 1}); err != nil {
		t.Fatalf("h=1: %v", err)
	}
	res, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", Horizon: 5})
	if err != nil {
		t.Fatalf("h=5: %v", err)
	}
	if res.HorizonDays != 5 || m.trainings != 2 {
		t.Fatalf("horizon=%d trainings=%d", res.HorizonDays, m.trainings)
	}
}

func TestPredictUpstreamErrors(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	store.err = errors.New("connection refused")
	m := &fakeMetrics{}
	uc := NewPredictionUseCase(store, smallFactory(), WithMetrics(m))
	if _, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL"}); !errors.Is(err, models.ErrUpstreamData) {
		t.Fatalf("store error: %v", err)
	}

	uc = NewPredictionUseCase(newStore(), smallFactory(), WithMetrics(m))
	if _, err := uc.Predict(ctx, PredictParams{Symbol: "MSFT"}); !errors.Is(err, models.ErrUpstreamData) {
		t.Fatalf("empty bars: %v", err)
	}
	if m.errs["upstream"] != 2 {
		t.Fatalf("upstream errors=%d", m.errs["upstream"])
	}
}

func TestPredictInsufficientData(t *testing.T) {
	m := &fakeMetrics{}
	uc := NewPredictionUseCase(newStore(), smallFactory(), WithMetrics(m))
	_, err := uc.Predict(context.Background(), PredictParams{Symbol: "TINY"})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("err=%v want ErrInsufficientData", err)
	}
	if m.errs["insufficient_data"] != 1 {
		t.Fatalf("errors=%v", m.errs)
	}
}

func TestPredictServesFromCache(t *testing.T) {
	store := newStore()
	m := &fakeMetrics{}
	uc := NewPredictionUseCase(store, smallFactory(), WithMetrics(m), WithCache(icache.NewTTLCache(), time.Minute))
	ctx := context.Background()

	first, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", N: 60})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	calls := store.calls
	second, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", N: 60})
	if err != nil {
		t.Fatalf("cached predict: %v", err)
	}
	if store.calls != calls {
		t.Fatalf("cache hit still fetched bars")
	}
	if second.PredictedPrice != first.PredictedPrice || !second.AsOf.Equal(first.AsOf) {
		t.Fatalf("cached=%+v first=%+v", second, first)
	}
	if m.hits != 1 || m.misses != 1 {
		t.Fatalf("hits=%d misses=%d", m.hits, m.misses)
	}
}

func TestTrainImportanceAndForget(t *testing.T) {
	uc := NewPredictionUseCase(newStore(), smallFactory())
	ctx := context.Background()

	if _, err := uc.FeatureImportance(ctx, "AAPL", ""); !errors.Is(err, models.ErrModelNotTrained) {
		t.Fatalf("untrained importance: %v", err)
	}
	out, err := uc.Train(ctx, TrainParams{Symbol: "AAPL", Horizon: 2})
	if err != nil || !out.Success {
		t.Fatalf("train: %+v %v", out, err)
	}
	imp, err := uc.FeatureImportance(ctx, "aapl", domrepo.TF1d)
	if err != nil || len(imp) == 0 {
		t.Fatalf("importance: %v %v", imp, err)
	}

	bad, err := uc.Train(ctx, TrainParams{Symbol: "TINY"})
	if !errors.Is(err, models.ErrInsufficientData) || bad.Success || bad.Error != "Insufficient data for training" {
		t.Fatalf("tiny train: %+v %v", bad, err)
	}

	if !uc.Forget("AAPL", "") {
		t.Fatalf("forget returned false")
	}
	if uc.Forget("AAPL", "") {
		t.Fatalf("second forget returned true")
	}
	if _, err := uc.FeatureImportance(ctx, "AAPL", ""); !errors.Is(err, models.ErrModelNotTrained) {
		t.Fatalf("importance after forget: %v", err)
	}
}

func TestWatchlistCollectsPerSymbolErrors(t *testing.T) {
	pub := &fakePublisher{}
	preds := NewPredictionUseCase(newStore(), smallFactory())
	wl := NewWatchlistUseCase(preds, pub, 2, time.Minute)

	res, err := wl.PredictMany(context.Background(), PredictManyParams{
		Symbols: []string{"AAPL", "TSLA", "TINY", "MSFT"},
		Horizon: 1,
	})
	if err != nil {
		t.Fatalf("predict many: %v", err)
	}
	if len(res.Predictions) != 2 || len(res.Errors) != 2 {
		t.Fatalf("predictions=%d errors=%v", len(res.Predictions), res.Errors)
	}
	if _, ok := res.Errors["TINY"]; !ok {
		t.Fatalf("missing TINY error: %v", res.Errors)
	}
	if len(pub.batches) != 1 || len(pub.batches[0]) != 2 || pub.batches[0][0].Symbol != "AAPL" {
		t.Fatalf("batches=%v", pub.batches)
	}

	if _, err := wl.PredictMany(context.Background(), PredictManyParams{}); err == nil {
		t.Fatalf("expected error for empty watchlist")
	}
}

func TestGetFeatures(t *testing.T) {
	uc := NewFeaturesUseCase(newStore())
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := uc.GetFeatures(context.Background(), GetFeaturesParams{
		Symbol:    "AAPL",
		From:      from,
		To:        from.AddDate(0, 0, 39),
		Timeframe: domrepo.TF1d,
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("get features: %v", err)
	}
	if res.Bars != 40 || len(res.Rows) != 5 || len(res.Times) != 5 {
		t.Fatalf("bars=%d rows=%d times=%d", res.Bars, len(res.Rows), len(res.Times))
	}
	if !res.Times[4].Equal(from.AddDate(0, 0, 39)) {
		t.Fatalf("last row time=%v", res.Times[4])
	}
	if len(res.Columns) != len(res.Rows[0]) {
		t.Fatalf("columns=%d row width=%d", len(res.Columns), len(res.Rows[0]))
	}

	if _, err := uc.GetFeatures(context.Background(), GetFeaturesParams{Symbol: "AAPL", From: from, To: from.AddDate(0, 0, -1)}); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestForgetInvalidatesCachedPredictions(t *testing.T) {
	m := &fakeMetrics{}
	uc := NewPredictionUseCase(newStore(), smallFactory(), WithMetrics(m), WithCache(icache.NewTTLCache(), time.Minute))
	ctx := context.Background()

	if _, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", N: 60}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !uc.Forget("AAPL", "") {
		t.Fatalf("forget returned false")
	}
	if _, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", N: 60}); err != nil {
		t.Fatalf("predict after forget: %v", err)
	}
	if m.trainings != 2 || m.hits != 0 || m.misses != 2 {
		t.Fatalf("trainings=%d hits=%d misses=%d", m.trainings, m.hits, m.misses)
	}
}

func TestTrainInvalidatesCachedPredictions(t *testing.T) {
	m := &fakeMetrics{}
	uc := NewPredictionUseCase(newStore(), smallFactory(), WithMetrics(m), WithCache(icache.NewTTLCache(), time.Minute))
	ctx := context.Background()

	if _, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", N: 60}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if _, err := uc.Train(ctx, TrainParams{Symbol: "AAPL", N: 70}); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", N: 60}); err != nil {
		t.Fatalf("predict after train: %v", err)
	}
	if m.trainings != 2 || m.hits != 0 || m.misses != 2 {
		t.Fatalf("trainings=%d hits=%d misses=%d", m.trainings, m.hits, m.misses)
	}

	// a failed training keeps the model and its cache entries
	if _, err := uc.Train(ctx, TrainParams{Symbol: "AAPL", N: 10}); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("short train: %v", err)
	}
	if _, err := uc.Predict(ctx, PredictParams{Symbol: "AAPL", N: 60}); err != nil {
		t.Fatalf("predict after failed train: %v", err)
	}
	if m.hits != 1 {
		t.Fatalf("hits=%d want 1", m.hits)
	}
}

func TestForgetUntrainedEntry(t *testing.T) {
	uc := NewPredictionUseCase(newStore(), smallFactory())
	if _, err := uc.Predict(context.Background(), PredictParams{Symbol: "TINY"}); err == nil {
		t.Fatalf("expected training error")
	}
	if uc.Forget("TINY", "") {
		t.Fatalf("forget reported a model that was never trained")
	}
}

func TestGetFeaturesUpstreamError(t *testing.T) {
	store := newStore()
	store.err = errors.New("connection refused")
	uc := NewFeaturesUseCase(store)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := uc.GetFeatures(context.Background(), GetFeaturesParams{Symbol: "AAPL", From: from, To: from.AddDate(0, 1, 0), Timeframe: domrepo.TF1d})
	if !errors.Is(err, models.ErrUpstreamData) {
		t.Fatalf("err=%v want ErrUpstreamData", err)
	}
}
