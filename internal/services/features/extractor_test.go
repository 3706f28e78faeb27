package features

import (
	"math"
	"testing"
	"time"

	"LutherTerminal/internal/domain/models"
)

func linearBars(n int) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		out[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Symbol:    "TEST",
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000 + 10*float64(i),
		}
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func TestBuildEmpty(t *testing.T) {
	tbl := Build(nil)
	if !tbl.Empty() {
		t.Fatalf("expected empty table, got %d rows", tbl.Len())
	}
	if len(tbl.Columns) != len(baseColumns) {
		t.Fatalf("unexpected columns %v", tbl.Columns)
	}
	if tbl.Last() != nil {
		t.Fatalf("expected nil last row")
	}
}

func TestBuildShorterThanLongestWindow(t *testing.T) {
	for n := 1; n < LongestWindow; n++ {
		if tbl := Build(linearBars(n)); !tbl.Empty() {
			t.Fatalf("n=%d: expected empty table, got %d rows", n, tbl.Len())
		}
	}
	tbl := Build(linearBars(LongestWindow))
	if tbl.Len() != 1 {
		t.Fatalf("expected exactly one row, got %d", tbl.Len())
	}
	if tbl.Index[0] != LongestWindow-1 {
		t.Fatalf("row derived from bar %d, want %d", tbl.Index[0], LongestWindow-1)
	}
}

func TestBuildNoUndefinedValues(t *testing.T) {
	bars := linearBars(80)
	for i := range bars {
		// add some oscillation so volatility is not degenerate
		bars[i].Close += 3 * math.Sin(float64(i)/3)
	}
	tbl := Build(bars)
	if tbl.Len() != 80-LongestWindow+1 {
		t.Fatalf("rows=%d want %d", tbl.Len(), 80-LongestWindow+1)
	}
	for i, row := range tbl.Rows {
		if len(row) != len(tbl.Columns) {
			t.Fatalf("row %d has %d values for %d columns", i, len(row), len(tbl.Columns))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("row %d column %s is not finite: %v", i, tbl.Columns[j], v)
			}
		}
	}
	for i := 1; i < len(tbl.Times); i++ {
		if !tbl.Times[i].After(tbl.Times[i-1]) {
			t.Fatalf("rows out of chronological order at %d", i)
		}
	}
}

func TestBuildIndicatorValues(t *testing.T) {
	tbl := Build(linearBars(20))
	if tbl.Len() != 1 {
		t.Fatalf("expected one row, got %d", tbl.Len())
	}
	get := func(name string) float64 {
		col := tbl.column(name)
		if len(col) != 1 {
			t.Fatalf("column %s missing", name)
		}
		return col[0]
	}

	// closes 100..119, last close 119
	assertClose(t, "price_ma_5", get(PriceMA5), 117.0, 1e-9)
	assertClose(t, "price_ma_10", get(PriceMA10), 114.5, 1e-9)
	assertClose(t, "price_ma_20", get(PriceMA20), 109.5, 1e-9)
	assertClose(t, "volume_ma", get(VolumeMA), 1145.0, 1e-9)
	assertClose(t, "high_low_ratio", get(HighLowRatio), 120.0/118.0, 1e-12)
	assertClose(t, "close_open_ratio", get(CloseOpenRatio), 119.0/118.5, 1e-12)
	assertClose(t, "momentum_3", get(Momentum3), 119.0/116.0, 1e-12)
	assertClose(t, "momentum_5", get(Momentum5), 119.0/114.0, 1e-12)

	// sample variance of 20 consecutive integers is 20*21/12 = 35
	sd := math.Sqrt(35)
	lower := 109.5 - 2*sd
	upper := 109.5 + 2*sd
	assertClose(t, "bb_position", get(BBPosition), (119-lower)/(upper-lower), 1e-9)
}

func TestBuildRSIColumn(t *testing.T) {
	bars := linearBars(30)
	for i := range bars {
		v := 40 + float64(i)
		bars[i].RSI = &v
	}
	// one bar without upstream RSI loses its row
	bars[25].RSI = nil

	tbl := Build(bars)
	if tbl.Columns[len(tbl.Columns)-1] != RSINormalized {
		t.Fatalf("expected %s as last column, got %v", RSINormalized, tbl.Columns)
	}
	if tbl.Len() != 30-LongestWindow+1-1 {
		t.Fatalf("rows=%d want %d", tbl.Len(), 30-LongestWindow)
	}
	for i, idx := range tbl.Index {
		if idx == 25 {
			t.Fatalf("row for bar without RSI was emitted")
		}
		got := tbl.Rows[i][len(tbl.Columns)-1]
		assertClose(t, "rsi_normalized", got, (40+float64(idx))/100, 1e-12)
	}
}

func TestBuildDropsNonFiniteRows(t *testing.T) {
	bars := linearBars(25)
	bars[22].Low = 0
	tbl := Build(bars)
	for _, idx := range tbl.Index {
		if idx == 22 {
			t.Fatalf("row with infinite high/low ratio was emitted")
		}
	}
	if tbl.Len() != 5 {
		t.Fatalf("rows=%d want 5", tbl.Len())
	}
}

func TestRollingHelpers(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	mean := RollingMean(xs, 3)
	if !math.IsNaN(mean[0]) || !math.IsNaN(mean[1]) {
		t.Fatalf("expected NaN warm-up, got %v", mean[:2])
	}
	assertClose(t, "mean[2]", mean[2], 2, 1e-12)
	assertClose(t, "mean[4]", mean[4], 4, 1e-12)

	sd := RollingStd(xs, 3)
	assertClose(t, "std[4]", sd[4], 1, 1e-12)

	ret := PctChange([]float64{100, 110, 99})
	if !math.IsNaN(ret[0]) {
		t.Fatalf("expected NaN first return")
	}
	assertClose(t, "ret[1]", ret[1], 0.1, 1e-12)
	assertClose(t, "ret[2]", ret[2], -0.1, 1e-12)

	withGap := RollingMean([]float64{1, math.NaN(), 3, 4, 5}, 2)
	if !math.IsNaN(withGap[1]) || !math.IsNaN(withGap[2]) {
		t.Fatalf("window containing NaN must be NaN, got %v", withGap)
	}
	assertClose(t, "gap[3]", withGap[3], 3.5, 1e-12)
}
