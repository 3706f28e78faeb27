package forest

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MSE is the mean squared error between truth and prediction.
func MSE(truth, pred []float64) float64 {
	if len(truth) == 0 || len(truth) != len(pred) {
		return math.NaN()
	}
	d := floats.Distance(truth, pred, 2)
	return d * d / float64(len(truth))
}

// R2 is the coefficient of determination. A constant truth series scores 1 when
// matched exactly and 0 otherwise, so the result is always finite.
func R2(truth, pred []float64) float64 {
	if len(truth) == 0 || len(truth) != len(pred) {
		return math.NaN()
	}
	if len(truth) == 1 || stat.Variance(truth, nil) == 0 {
		if floats.EqualApprox(truth, pred, 1e-12) {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(pred, truth, nil)
}
