package usecase

import (
	"context"
	"fmt"
	"time"

	"LutherTerminal/internal/domain/models"
	domrepo "LutherTerminal/internal/domain/repository"
	"LutherTerminal/internal/services/features"
	xutil "LutherTerminal/pkg/util"
)

// FeaturesUseCase exposes the engineered feature table for a bar range.
type FeaturesUseCase struct {
	store domrepo.BarStore
}

func NewFeaturesUseCase(store domrepo.BarStore) *FeaturesUseCase {
	return &FeaturesUseCase{store: store}
}

type GetFeaturesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetFeaturesResult struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Bars      int
	Columns   []string
	Times     []time.Time
	Rows      [][]float64
}

func (uc *FeaturesUseCase) GetFeatures(ctx context.Context, p GetFeaturesParams) (*GetFeaturesResult, error) {
	p.Symbol = xutil.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}
	p.From, p.To = xutil.AlignFromTo(p.From, p.To, string(p.Timeframe))

	bars, err := uc.store.GetBars(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s bars: %w", models.ErrUpstreamData, p.Symbol, err)
	}

	tbl := features.Build(bars)
	rows, times := tbl.Rows, tbl.Times
	// keep the most recent rows
	if len(rows) > p.Limit {
		rows = rows[len(rows)-p.Limit:]
		times = times[len(times)-p.Limit:]
	}

	return &GetFeaturesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Bars:      len(bars),
		Columns:   tbl.Columns,
		Times:     times,
		Rows:      rows,
	}, nil
}
