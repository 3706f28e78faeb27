package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"LutherTerminal/internal/domain/models"
	domrepo "LutherTerminal/internal/domain/repository"
	domsvc "LutherTerminal/internal/domain/service"
	icache "LutherTerminal/internal/service/cache"
	applogger "LutherTerminal/pkg/logger"
	xutil "LutherTerminal/pkg/util"
)

// PredictionUseCase serves predictions from a registry holding one predictor per
// (symbol, timeframe). Access to a single predictor is serialized; different symbols
// run concurrently.
type PredictionUseCase struct {
	store    domrepo.BarStore
	factory  domsvc.PredictorFactory
	cache    icache.BytesCache
	pub      domrepo.PredictionPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
	cacheTTL time.Duration
	history  int

	mu      sync.Mutex
	entries map[string]*registryEntry
	gen     atomic.Uint64
}

// registryEntry guards one predictor. gen is part of every cache key written for the
// entry; it changes whenever the model does, so stale forecasts are never read back.
type registryEntry struct {
	symbol string
	tf     domrepo.Timeframe

	mu  sync.Mutex
	p   domsvc.PricePredictor
	gen uint64
}

type PredictionOption func(*PredictionUseCase)

// WithCache enables caching of served predictions. A nil cache disables it.
func WithCache(c icache.BytesCache, ttl time.Duration) PredictionOption {
	return func(uc *PredictionUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

func WithPublisher(p domrepo.PredictionPublisher) PredictionOption {
	return func(uc *PredictionUseCase) { uc.pub = p }
}

func WithMetrics(m domrepo.Metrics) PredictionOption {
	return func(uc *PredictionUseCase) { uc.metrics = m }
}

func WithLogger(l *applogger.Logger) PredictionOption {
	return func(uc *PredictionUseCase) {
		if l != nil {
			uc.l = l
		}
	}
}

// WithHistory sets how many bars are fetched when a request does not say.
func WithHistory(n int) PredictionOption {
	return func(uc *PredictionUseCase) {
		if n > 0 {
			uc.history = n
		}
	}
}

func NewPredictionUseCase(store domrepo.BarStore, factory domsvc.PredictorFactory, opts ...PredictionOption) *PredictionUseCase {
	uc := &PredictionUseCase{
		store:   store,
		factory: factory,
		l:       applogger.Nop(),
		history: 250,
		entries: make(map[string]*registryEntry),
	}
	// start from the clock so replicas sharing a redis cache never reuse a generation
	uc.gen.Store(uint64(time.Now().UnixNano()))
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type PredictParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Horizon   int
	N         int
}

type TrainParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Horizon   int
	N         int
}

// Predict returns the forecast for one symbol, training or retraining the registry
// model when it is missing or was fitted for a different horizon.
func (uc *PredictionUseCase) Predict(ctx context.Context, p PredictParams) (models.PredictionResult, error) {
	res, err := uc.predict(ctx, p)
	if err != nil {
		return res, err
	}
	if uc.pub != nil {
		if err := uc.pub.PublishPrediction(ctx, res); err != nil {
			uc.recordError("publish")
			uc.l.Warn("publish prediction failed", applogger.String("symbol", res.Symbol), applogger.Error(err))
		}
	}
	return res, nil
}

func (uc *PredictionUseCase) predict(ctx context.Context, p PredictParams) (models.PredictionResult, error) {
	p.Symbol = xutil.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return models.PredictionResult{}, fmt.Errorf("symbol required")
	}
	if p.Timeframe == "" {
		p.Timeframe = domrepo.DefaultTimeframe()
	}
	if p.Horizon < 1 {
		p.Horizon = 1
	}
	if p.N <= 0 {
		p.N = uc.history
	}

	e := uc.entry(p.Symbol, p.Timeframe)
	e.mu.Lock()
	defer e.mu.Unlock()

	if res, ok := uc.cached(ctx, cacheKey(p, e.gen)); ok {
		return res, nil
	}

	bars, err := uc.fetch(ctx, p.Symbol, p.N, p.Timeframe)
	if err != nil {
		return models.PredictionResult{}, err
	}

	if !e.p.IsTrained() || e.p.TrainedHorizon() != p.Horizon {
		if _, err := uc.train(e, p.Symbol, bars, p.Horizon); err != nil {
			return models.PredictionResult{}, err
		}
	}

	start := time.Now()
	res, err := e.p.Predict(bars, p.Horizon)
	if err != nil {
		uc.recordError(errorKind(err))
		return models.PredictionResult{}, fmt.Errorf("predict %s: %w", p.Symbol, err)
	}
	res.Symbol = p.Symbol
	if uc.metrics != nil {
		uc.metrics.RecordPrediction(p.Symbol, res, time.Since(start).Seconds())
	}

	uc.storeCached(ctx, cacheKey(p, e.gen), res)
	return res, nil
}

// Train explicitly (re)fits the registry model. A failed run keeps the previous model
// and its cached forecasts; a successful one makes them unreachable.
func (uc *PredictionUseCase) Train(ctx context.Context, p TrainParams) (models.TrainingOutcome, error) {
	p.Symbol = xutil.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return models.TrainingOutcome{}, fmt.Errorf("symbol required")
	}
	if p.Timeframe == "" {
		p.Timeframe = domrepo.DefaultTimeframe()
	}
	if p.Horizon < 1 {
		p.Horizon = 1
	}
	if p.N <= 0 {
		p.N = uc.history
	}

	bars, err := uc.fetch(ctx, p.Symbol, p.N, p.Timeframe)
	if err != nil {
		return models.TrainingOutcome{Symbol: p.Symbol, Horizon: p.Horizon, Error: models.ErrUpstreamData.Error()}, err
	}

	e := uc.entry(p.Symbol, p.Timeframe)
	e.mu.Lock()
	defer e.mu.Unlock()
	return uc.train(e, p.Symbol, bars, p.Horizon)
}

// train must be called with e.mu held.
func (uc *PredictionUseCase) train(e *registryEntry, symbol string, bars []models.Bar, horizon int) (models.TrainingOutcome, error) {
	start := time.Now()
	out, err := e.p.Train(bars, horizon)
	out.Symbol = symbol
	if uc.metrics != nil {
		uc.metrics.RecordTraining(symbol, out, time.Since(start).Seconds())
	}
	if err != nil {
		uc.recordError(errorKind(err))
		return out, fmt.Errorf("train %s: %w", symbol, err)
	}
	e.gen = uc.gen.Add(1)
	return out, nil
}

// FeatureImportance reports the importances of the registry model, most important first.
func (uc *PredictionUseCase) FeatureImportance(_ context.Context, symbol string, tf domrepo.Timeframe) ([]models.FeatureImportance, error) {
	symbol = xutil.NormalizeSymbol(symbol)
	if tf == "" {
		tf = domrepo.DefaultTimeframe()
	}
	uc.mu.Lock()
	e, ok := uc.entries[registryKey(symbol, tf)]
	uc.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, models.ErrModelNotTrained)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.p.IsTrained() {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, models.ErrModelNotTrained)
	}
	return e.p.FeatureImportance(), nil
}

// Forget drops the model for (symbol, tf) and reports whether a trained one existed.
// Its cached forecasts are no longer read; the next prediction trains from scratch.
func (uc *PredictionUseCase) Forget(symbol string, tf domrepo.Timeframe) bool {
	symbol = xutil.NormalizeSymbol(symbol)
	if tf == "" {
		tf = domrepo.DefaultTimeframe()
	}
	key := registryKey(symbol, tf)
	uc.mu.Lock()
	e, ok := uc.entries[key]
	delete(uc.entries, key)
	uc.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	ok = e.p.IsTrained()
	e.mu.Unlock()
	if ok {
		uc.l.Info("model forgotten", applogger.String("symbol", symbol), applogger.String("tf", string(tf)))
	}
	return ok
}

// ModelInfo describes one trained registry model.
type ModelInfo struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Horizon   int
}

// Models lists the trained registry models ordered by symbol, then timeframe.
func (uc *PredictionUseCase) Models() []ModelInfo {
	uc.mu.Lock()
	entries := make([]*registryEntry, 0, len(uc.entries))
	for _, e := range uc.entries {
		entries = append(entries, e)
	}
	uc.mu.Unlock()

	out := make([]ModelInfo, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.p.IsTrained() {
			out = append(out, ModelInfo{Symbol: e.symbol, Timeframe: e.tf, Horizon: e.p.TrainedHorizon()})
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timeframe < out[j].Timeframe
	})
	return out
}

func (uc *PredictionUseCase) fetch(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	bars, err := uc.store.GetLatestNBars(ctx, symbol, n, tf)
	if err != nil {
		uc.recordError("upstream")
		return nil, fmt.Errorf("%w: fetch %s bars: %w", models.ErrUpstreamData, symbol, err)
	}
	if len(bars) == 0 {
		uc.recordError("upstream")
		return nil, fmt.Errorf("%w: no %s bars for %s", models.ErrUpstreamData, tf, symbol)
	}
	return bars, nil
}

func (uc *PredictionUseCase) entry(symbol string, tf domrepo.Timeframe) *registryEntry {
	key := registryKey(symbol, tf)
	uc.mu.Lock()
	defer uc.mu.Unlock()
	e, ok := uc.entries[key]
	if !ok {
		e = &registryEntry{symbol: symbol, tf: tf, p: uc.factory(symbol), gen: uc.gen.Add(1)}
		uc.entries[key] = e
	}
	return e
}

func (uc *PredictionUseCase) cached(ctx context.Context, key string) (models.PredictionResult, bool) {
	var res models.PredictionResult
	if uc.cache == nil {
		return res, false
	}
	b, ok, err := uc.cache.GetBytes(ctx, key)
	if err != nil {
		uc.l.Warn("prediction cache get failed", applogger.String("key", key), applogger.Error(err))
		ok = false
	}
	if ok {
		if err := json.Unmarshal(b, &res); err != nil {
			ok = false
		}
	}
	if uc.metrics != nil {
		uc.metrics.RecordCacheHit("prediction", ok)
	}
	return res, ok
}

func (uc *PredictionUseCase) storeCached(ctx context.Context, key string, res models.PredictionResult) {
	if uc.cache == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := uc.cache.SetBytes(ctx, key, b, uc.cacheTTL); err != nil {
		uc.l.Warn("prediction cache set failed", applogger.String("key", key), applogger.Error(err))
	}
}

func (uc *PredictionUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}

func cacheKey(p PredictParams, gen uint64) string {
	return fmt.Sprintf("pred:%s:%s:%d:%d:%x", p.Symbol, p.Timeframe, p.Horizon, p.N, gen)
}

func registryKey(symbol string, tf domrepo.Timeframe) string {
	return symbol + "|" + string(tf)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, models.ErrFeatureUnavailable):
		return "feature_unavailable"
	case errors.Is(err, models.ErrUpstreamData):
		return "upstream"
	default:
		return "internal"
	}
}
