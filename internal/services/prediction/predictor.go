package prediction

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"LutherTerminal/internal/domain/models"
	domsvc "LutherTerminal/internal/domain/service"
	"LutherTerminal/internal/services/features"
	applogger "LutherTerminal/pkg/logger"
)

// Predictor owns one trained model for one symbol. It is not safe for concurrent
// use: callers serialize Train and Predict on the same instance.
type Predictor struct {
	symbol string
	cfg    Config
	model  *Model
	l      *applogger.Logger
}

func NewPredictor(symbol string, cfg Config) *Predictor {
	return &Predictor{symbol: symbol, cfg: cfg.normalized(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (p *Predictor) SetLogger(l *applogger.Logger) {
	if l != nil {
		p.l = l.With(applogger.String("symbol", p.symbol))
	}
}

func (p *Predictor) IsTrained() bool { return p.model != nil }

// TrainedHorizon is the horizon of the current model, or 0 when untrained.
func (p *Predictor) TrainedHorizon() int {
	if p.model == nil {
		return 0
	}
	return p.model.Horizon
}

// Model exposes the fitted model, nil when untrained.
func (p *Predictor) Model() *Model { return p.model }

// Train fits a fresh model for horizon bars ahead. On failure the previous model,
// if any, is kept and the outcome carries the failure reason.
func (p *Predictor) Train(bars []models.Bar, horizon int) (models.TrainingOutcome, error) {
	if horizon < 1 {
		horizon = p.cfg.DefaultHorizon
	}
	start := time.Now()
	if err := ValidateBars(bars); err != nil {
		return failed(p.symbol, horizon, err), err
	}

	m, outcome, err := fit(p.cfg, bars, horizon)
	outcome.Symbol = p.symbol
	if err != nil {
		p.l.Warn("training failed",
			applogger.Int("bars", len(bars)),
			applogger.Int("horizon", horizon),
			applogger.Error(err),
		)
		return failed(p.symbol, horizon, err), err
	}
	p.model = m
	p.l.Info("model trained",
		applogger.Int("horizon", horizon),
		applogger.Int("train", outcome.TrainingSamples),
		applogger.Int("test", outcome.TestSamples),
		applogger.Float64("mse", outcome.MSE),
		applogger.Float64("r2", outcome.R2Score),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return outcome, nil
}

// Predict forecasts the close price from the latest complete feature row.
// An untrained predictor first trains with the default horizon, not with horizon;
// callers wanting another horizon call Train first. The result always reports the
// horizon the model was fitted for.
func (p *Predictor) Predict(bars []models.Bar, horizon int) (models.PredictionResult, error) {
	if err := ValidateBars(bars); err != nil {
		return models.PredictionResult{}, err
	}

	tbl := features.Build(bars)
	if tbl.Empty() {
		return models.PredictionResult{}, fmt.Errorf("%d bars yield no complete feature row: %w", len(bars), models.ErrFeatureUnavailable)
	}

	if p.model == nil {
		if _, err := p.Train(bars, p.cfg.DefaultHorizon); err != nil {
			return models.PredictionResult{}, err
		}
	}
	m := p.model
	if !sameColumns(m.Columns, tbl.Columns) {
		return models.PredictionResult{}, fmt.Errorf("feature columns %v differ from trained %v: %w", tbl.Columns, m.Columns, models.ErrFeatureUnavailable)
	}

	predicted, err := m.Forest.Predict(m.Scaler.Transform(tbl.Last()))
	if err != nil {
		return models.PredictionResult{}, fmt.Errorf("predict: %w", err)
	}

	last := bars[len(bars)-1]
	current := last.Close
	change := predicted - current
	res := models.PredictionResult{
		Symbol:             p.symbol,
		AsOf:               last.Timestamp,
		PredictedPrice:     predicted,
		CurrentPrice:       current,
		PredictedChange:    change,
		PredictedChangePct: change / current * 100,
		Confidence:         p.confidence(tbl, bars),
		HorizonDays:        m.Horizon,
	}
	p.l.Debug("prediction",
		applogger.Float64("predicted", predicted),
		applogger.Float64("current", current),
		applogger.Float64("confidence", res.Confidence),
	)
	return res, nil
}

// confidence is a bounded R², not a calibrated probability.
func (p *Predictor) confidence(tbl *features.Table, bars []models.Bar) float64 {
	r2 := p.model.TestR2
	if p.cfg.ConfidenceMode == ConfidenceInSample {
		ds := Align(tbl, bars, p.model.Horizon)
		r2 = 0
		if ds.Len() > 0 {
			if s, err := p.model.Forest.Score(p.model.Scaler.TransformAll(ds.X), ds.Y); err == nil {
				r2 = s
			}
		}
	}
	if math.IsNaN(r2) {
		r2 = 0
	}
	return math.Max(p.cfg.ConfidenceFloor, math.Min(p.cfg.ConfidenceCeil, r2))
}

// FeatureImportance lists features by mean impurity decrease, most important first.
func (p *Predictor) FeatureImportance() []models.FeatureImportance {
	if p.model == nil {
		return nil
	}
	imp := p.model.Forest.FeatureImportances()
	out := make([]models.FeatureImportance, len(imp))
	for i, v := range imp {
		out[i] = models.FeatureImportance{Feature: p.model.Columns[i], Importance: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

// ValidateBars rejects series a market-data collaborator should never hand over:
// non-finite or non-positive prices, negative volume, timestamps out of order.
func ValidateBars(bars []models.Bar) error {
	for i, b := range bars {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("bar %d: invalid price %v: %w", i, v, models.ErrUpstreamData)
			}
		}
		if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
			return fmt.Errorf("bar %d: invalid volume %v: %w", i, b.Volume, models.ErrUpstreamData)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s not after %s: %w", i, b.Timestamp, bars[i-1].Timestamp, models.ErrUpstreamData)
		}
	}
	return nil
}

func failed(symbol string, horizon int, err error) models.TrainingOutcome {
	reason := err.Error()
	for _, sentinel := range []error{models.ErrInsufficientData, models.ErrUpstreamData, models.ErrFeatureUnavailable} {
		if errors.Is(err, sentinel) {
			reason = sentinel.Error()
			break
		}
	}
	return models.TrainingOutcome{Symbol: symbol, Horizon: horizon, Success: false, Error: reason}
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ domsvc.PricePredictor = (*Predictor)(nil)
