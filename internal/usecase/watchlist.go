package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LutherTerminal/internal/domain/models"
	domrepo "LutherTerminal/internal/domain/repository"
	applogger "LutherTerminal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// WatchlistUseCase fans predictions out over several symbols.
type WatchlistUseCase struct {
	preds       *PredictionUseCase
	pub         domrepo.PredictionPublisher
	l           *applogger.Logger
	concurrency int
	timeout     time.Duration
}

func NewWatchlistUseCase(preds *PredictionUseCase, pub domrepo.PredictionPublisher, concurrency int, timeout time.Duration) *WatchlistUseCase {
	if concurrency < 1 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WatchlistUseCase{preds: preds, pub: pub, l: preds.l, concurrency: concurrency, timeout: timeout}
}

type PredictManyParams struct {
	Symbols   []string
	Timeframe domrepo.Timeframe
	Horizon   int
	N         int
}

// PredictMany predicts every symbol; a failing symbol lands in Errors instead of failing the call.
// The successful predictions are published as one batch.
func (uc *WatchlistUseCase) PredictMany(ctx context.Context, p PredictManyParams) (*models.WatchlistPredictions, error) {
	if len(p.Symbols) == 0 {
		return nil, fmt.Errorf("symbols required")
	}
	if p.Horizon < 1 {
		p.Horizon = 1
	}

	// Overall timeout
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res := &models.WatchlistPredictions{
		Timestamp:   time.Now(),
		Horizon:     p.Horizon,
		Predictions: make(map[string]models.PredictionResult, len(p.Symbols)),
		Errors:      map[string]string{},
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(uc.concurrency)
	for _, sym := range p.Symbols {
		g.Go(func() error {
			r, err := uc.preds.predict(ctx, PredictParams{
				Symbol:    sym,
				Timeframe: p.Timeframe,
				Horizon:   p.Horizon,
				N:         p.N,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[sym] = err.Error()
				return nil
			}
			res.Predictions[sym] = r
			return nil
		})
	}
	_ = g.Wait()

	if uc.pub != nil && len(res.Predictions) > 0 {
		batch := make([]models.PredictionResult, 0, len(res.Predictions))
		for _, sym := range p.Symbols {
			if r, ok := res.Predictions[sym]; ok {
				batch = append(batch, r)
			}
		}
		if err := uc.pub.PublishPredictions(ctx, batch); err != nil {
			uc.preds.recordError("publish")
			uc.l.Warn("publish watchlist failed", applogger.Int("count", len(batch)), applogger.Error(err))
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
