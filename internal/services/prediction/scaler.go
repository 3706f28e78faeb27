package prediction

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes each column to zero mean and unit (population) variance.
// Columns with no spread keep a scale of 1.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

func FitScaler(x [][]float64) *Scaler {
	if len(x) == 0 {
		return &Scaler{}
	}
	nCols := len(x[0])
	s := &Scaler{Mean: make([]float64, nCols), Scale: make([]float64, nCols)}
	col := make([]float64, len(x))
	for j := 0; j < nCols; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		mean, sd := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if sd <= 1e-12*math.Max(1, math.Abs(mean)) {
			sd = 1
		}
		s.Scale[j] = sd
	}
	return s
}

func (s *Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s *Scaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Transform(row)
	}
	return out
}
