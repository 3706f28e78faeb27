package prediction

import "LutherTerminal/internal/services/forest"

// Confidence sources.
const (
	// ConfidenceHoldout uses the R² measured on the held-out test split at training time.
	ConfidenceHoldout = "holdout"
	// ConfidenceInSample scores the model over every aligned row of the prediction input,
	// including rows it was fitted on. Inflated; kept for compatibility with older dashboards.
	ConfidenceInSample = "in_sample"
)

type Config struct {
	Forest          forest.Config
	MinTrainingRows int
	TestFraction    float64
	DefaultHorizon  int
	ConfidenceMode  string
	ConfidenceFloor float64
	ConfidenceCeil  float64
}

func DefaultConfig() Config {
	return Config{
		Forest:          forest.DefaultConfig(),
		MinTrainingRows: 20,
		TestFraction:    0.2,
		DefaultHorizon:  1,
		ConfidenceMode:  ConfidenceHoldout,
		ConfidenceFloor: 0.1,
		ConfidenceCeil:  0.9,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MinTrainingRows < 2 {
		c.MinTrainingRows = d.MinTrainingRows
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		c.TestFraction = d.TestFraction
	}
	if c.DefaultHorizon < 1 {
		c.DefaultHorizon = d.DefaultHorizon
	}
	if c.ConfidenceMode != ConfidenceInSample {
		c.ConfidenceMode = ConfidenceHoldout
	}
	if c.ConfidenceFloor <= 0 && c.ConfidenceCeil <= 0 {
		c.ConfidenceFloor, c.ConfidenceCeil = d.ConfidenceFloor, d.ConfidenceCeil
	}
	if c.ConfidenceCeil < c.ConfidenceFloor {
		c.ConfidenceCeil = c.ConfidenceFloor
	}
	return c
}
