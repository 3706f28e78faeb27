package features

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"LutherTerminal/internal/domain/models"
)

// Feature column names, in model order.
const (
	VolumeMA       = "volume_ma"
	PriceMA5       = "price_ma_5"
	PriceMA10      = "price_ma_10"
	PriceMA20      = "price_ma_20"
	Volatility     = "volatility"
	HighLowRatio   = "high_low_ratio"
	CloseOpenRatio = "close_open_ratio"
	Momentum3      = "momentum_3"
	Momentum5      = "momentum_5"
	BBPosition     = "bb_position"
	RSINormalized  = "rsi_normalized"
)

// Window sizes. LongestWindow bounds the warm-up period of every indicator.
const (
	VolumeWindow     = 10
	VolatilityWindow = 10
	BollingerWindow  = 20
	BollingerWidth   = 2.0
	LongestWindow    = 20
)

var baseColumns = []string{
	VolumeMA, PriceMA5, PriceMA10, PriceMA20, Volatility,
	HighLowRatio, CloseOpenRatio, Momentum3, Momentum5, BBPosition,
}

// Table is an aligned feature table. Row i was derived from bars[Index[i]].
type Table struct {
	Columns []string
	Rows    [][]float64
	Index   []int
	Times   []time.Time
}

func (t *Table) Len() int { return len(t.Rows) }

func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Last returns the most recent complete row, or nil for an empty table.
func (t *Table) Last() []float64 {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[len(t.Rows)-1]
}

// column returns the values of the named column, or nil if absent.
func (t *Table) column(name string) []float64 {
	for j, c := range t.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(t.Rows))
		for i, r := range t.Rows {
			out[i] = r[j]
		}
		return out
	}
	return nil
}

// Build derives the technical-indicator table from chronological bars.
// Rows still inside any rolling warm-up, or carrying a non-finite value, are dropped.
func Build(bars []models.Bar) *Table {
	cols := columnsFor(bars)
	t := &Table{Columns: cols}
	if len(bars) == 0 {
		return t
	}

	n := len(bars)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	returns := PctChange(closes)
	volMA := RollingMean(volumes, VolumeWindow)
	ma5 := RollingMean(closes, 5)
	ma10 := RollingMean(closes, 10)
	ma20 := RollingMean(closes, BollingerWindow)
	sd20 := RollingStd(closes, BollingerWindow)
	vol := RollingStd(returns, VolatilityWindow)
	mom3 := Momentum(closes, 3)
	mom5 := Momentum(closes, 5)

	withRSI := len(cols) > len(baseColumns)
	for i, b := range bars {
		upper := ma20[i] + BollingerWidth*sd20[i]
		lower := ma20[i] - BollingerWidth*sd20[i]
		row := []float64{
			volMA[i], ma5[i], ma10[i], ma20[i], vol[i],
			b.High / b.Low,
			b.Close / b.Open,
			mom3[i], mom5[i],
			(b.Close - lower) / (upper - lower),
		}
		if withRSI {
			rsi := math.NaN()
			if b.RSI != nil {
				rsi = *b.RSI / 100
			}
			row = append(row, rsi)
		}
		if !finite(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
		t.Index = append(t.Index, i)
		t.Times = append(t.Times, b.Timestamp)
	}
	return t
}

func columnsFor(bars []models.Bar) []string {
	cols := append([]string(nil), baseColumns...)
	for _, b := range bars {
		if b.RSI != nil {
			return append(cols, RSINormalized)
		}
	}
	return cols
}

// PctChange returns x[t]/x[t-1] - 1 with NaN at t=0.
func PctChange(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i]/xs[i-1] - 1
	}
	return out
}

// Momentum returns x[t]/x[t-k] with NaN for the first k entries.
func Momentum(xs []float64, k int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i < k {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i] / xs[i-k]
	}
	return out
}

// RollingMean is the trailing mean over window; NaN until the window is full
// or while it contains a NaN.
func RollingMean(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 { return stat.Mean(w, nil) })
}

// RollingStd is the trailing sample standard deviation (n-1) over window.
func RollingStd(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 { return stat.StdDev(w, nil) })
}

func rolling(xs []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if window <= 0 || i < window-1 {
			out[i] = math.NaN()
			continue
		}
		w := xs[i-window+1 : i+1]
		if !finite(w) {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func finite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
