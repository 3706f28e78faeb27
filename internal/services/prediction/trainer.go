package prediction

import (
	"fmt"
	"math"
	"time"

	"LutherTerminal/internal/domain/models"
	"LutherTerminal/internal/services/features"
	"LutherTerminal/internal/services/forest"
)

// Model is a fitted forest together with the feature layout and scaler it was trained with.
type Model struct {
	Forest    *forest.Forest
	Scaler    *Scaler
	Columns   []string
	Horizon   int
	TestR2    float64
	TrainedAt time.Time
	// TrainEnd and TestStart are the bar times of the last training row and the
	// first held-out row; TrainEnd is always before TestStart.
	TrainEnd  time.Time
	TestStart time.Time
}

// Dataset pairs feature rows with the close price Horizon bars later.
type Dataset struct {
	X       [][]float64
	Y       []float64
	Index   []int
	Columns []string
}

func (d Dataset) Len() int { return len(d.Y) }

// Align pairs each feature row derived from bars[i] with bars[i+horizon].Close.
// Rows whose target lies past the end of the series are dropped.
func Align(tbl *features.Table, bars []models.Bar, horizon int) Dataset {
	ds := Dataset{Columns: tbl.Columns}
	for r, i := range tbl.Index {
		j := i + horizon
		if j >= len(bars) {
			break
		}
		ds.X = append(ds.X, tbl.Rows[r])
		ds.Y = append(ds.Y, bars[j].Close)
		ds.Index = append(ds.Index, i)
	}
	return ds
}

// SplitSizes returns the chronological train/test sizes; the test part is rounded up.
func SplitSizes(n int, testFraction float64) (train, test int) {
	test = int(math.Ceil(float64(n) * testFraction))
	if test < 1 {
		test = 1
	}
	if test >= n {
		test = n - 1
	}
	return n - test, test
}

// fit trains a model on bars. It never mutates predictor state.
func fit(cfg Config, bars []models.Bar, horizon int) (*Model, models.TrainingOutcome, error) {
	outcome := models.TrainingOutcome{Horizon: horizon}

	tbl := features.Build(bars)
	ds := Align(tbl, bars, horizon)
	if ds.Len() < cfg.MinTrainingRows {
		return nil, outcome, fmt.Errorf("%d aligned rows, need %d: %w", ds.Len(), cfg.MinTrainingRows, models.ErrInsufficientData)
	}

	nTrain, nTest := SplitSizes(ds.Len(), cfg.TestFraction)
	xTrain, yTrain := ds.X[:nTrain], ds.Y[:nTrain]
	xTest, yTest := ds.X[nTrain:], ds.Y[nTrain:]

	scaler := FitScaler(xTrain)
	f := forest.New(cfg.Forest)
	if err := f.Fit(scaler.TransformAll(xTrain), yTrain); err != nil {
		return nil, outcome, fmt.Errorf("fit forest: %w", err)
	}

	pred, err := f.PredictBatch(scaler.TransformAll(xTest))
	if err != nil {
		return nil, outcome, fmt.Errorf("evaluate: %w", err)
	}
	r2 := forest.R2(yTest, pred)

	outcome.Success = true
	outcome.MSE = forest.MSE(yTest, pred)
	outcome.R2Score = r2
	outcome.TrainingSamples = nTrain
	outcome.TestSamples = nTest

	m := &Model{
		Forest:    f,
		Scaler:    scaler,
		Columns:   append([]string(nil), ds.Columns...),
		Horizon:   horizon,
		TestR2:    r2,
		TrainedAt: time.Now(),
		TrainEnd:  bars[ds.Index[nTrain-1]].Timestamp,
		TestStart: bars[ds.Index[nTrain]].Timestamp,
	}
	return m, outcome, nil
}
