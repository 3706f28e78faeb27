// Package forest implements a bagged ensemble of regression trees
// (random forest regressor) with deterministic seeding.
package forest

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var ErrNotFitted = errors.New("forest: model not fitted")

type Config struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Seed            uint64
	Bootstrap       bool
	Workers         int // 0 = GOMAXPROCS
}

// DefaultConfig mirrors the usual regressor settings: 100 trees, depth 10, seed 42.
func DefaultConfig() Config {
	return Config{
		NEstimators:     100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
		Bootstrap:       true,
	}
}

// Forest is a random forest regressor. Not safe for concurrent Fit.
type Forest struct {
	cfg       Config
	trees     []*Tree
	nFeatures int
}

func New(cfg Config) *Forest {
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = 100
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	return &Forest{cfg: cfg}
}

// Fit grows NEstimators trees. Per-tree seeds are drawn up front from the forest
// seed, so the fitted model does not depend on worker scheduling.
func (f *Forest) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("fit: empty training set")
	}
	if len(x) != len(y) {
		return fmt.Errorf("fit: %d rows but %d targets", len(x), len(y))
	}
	nFeatures := len(x[0])
	for i, row := range x {
		if len(row) != nFeatures {
			return fmt.Errorf("fit: row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}

	master := rand.New(rand.NewPCG(f.cfg.Seed, f.cfg.Seed^0x9e3779b97f4a7c15))
	seeds := make([]uint64, f.cfg.NEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*Tree, f.cfg.NEstimators)
	workers := f.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			idx := f.sample(len(x), seeds[i])
			trees[i] = growTree(x, y, idx, nFeatures, f.cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	f.trees = trees
	f.nFeatures = nFeatures
	return nil
}

func (f *Forest) sample(n int, seed uint64) []int {
	idx := make([]int, n)
	if !f.cfg.Bootstrap {
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	rng := rand.New(rand.NewPCG(seed, seed+1))
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

func (f *Forest) Fitted() bool { return len(f.trees) > 0 }

// Predict averages the tree outputs for one feature vector.
func (f *Forest) Predict(x []float64) (float64, error) {
	if !f.Fitted() {
		return 0, ErrNotFitted
	}
	if len(x) != f.nFeatures {
		return 0, fmt.Errorf("predict: got %d features, want %d", len(x), f.nFeatures)
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.trees)), nil
}

func (f *Forest) PredictBatch(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := f.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Score returns the R² of the forest's predictions on (x, y).
func (f *Forest) Score(x [][]float64, y []float64) (float64, error) {
	pred, err := f.PredictBatch(x)
	if err != nil {
		return 0, err
	}
	return R2(y, pred), nil
}

// FeatureImportances returns the mean decrease in squared error per feature,
// normalized per tree and across the forest so the values sum to 1.
func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, f.nFeatures)
	if !f.Fitted() {
		return out
	}
	for _, t := range f.trees {
		total := 0.0
		for _, v := range t.importances {
			total += v
		}
		if total <= 0 {
			continue
		}
		for j, v := range t.importances {
			out[j] += v / total
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}
