package predictor

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/saaga0h/parking-edge/internal/features"
	"gopkg.in/yaml.v3"
)

// ModelFile is the on-disk form of a standardised logistic regression model.
// Exported from the training pipeline; this package only loads it.
//
//	features: [g0_min, g1_min, ...]
//	scaler:
//	  mean:  [...]
//	  scale: [...]
//	coefficients: [...]
//	intercept: -0.42
type ModelFile struct {
	Name         string    `yaml:"name"`
	Features     []string  `yaml:"features"`
	Scaler       Scaler    `yaml:"scaler"`
	Coefficients []float64 `yaml:"coefficients"`
	Intercept    float64   `yaml:"intercept"`
}

// Scaler holds per-feature standardisation parameters
type Scaler struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

// Logistic scores a feature vector with a standardised logistic regression
type Logistic struct {
	name         string
	features     []string
	mean         []float64
	scale        []float64
	coefficients []float64
	intercept    float64
}

// LoadLogistic reads and validates a YAML model file against the schema
func LoadLogistic(path string, schema *features.Schema) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return ParseLogistic(data, schema)
}

// ParseLogistic builds a model from YAML bytes
func ParseLogistic(data []byte, schema *features.Schema) (*Logistic, error) {
	var mf ModelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse model YAML: %w", err)
	}
	return NewLogistic(mf, schema)
}

// NewLogistic validates a model definition
func NewLogistic(mf ModelFile, schema *features.Schema) (*Logistic, error) {
	n := len(mf.Features)
	if n == 0 {
		return nil, errors.New("model declares no features")
	}
	if len(mf.Coefficients) != n {
		return nil, fmt.Errorf("model has %d coefficients for %d features", len(mf.Coefficients), n)
	}

	mean := mf.Scaler.Mean
	scale := mf.Scaler.Scale
	if mean == nil {
		mean = make([]float64, n)
	}
	if scale == nil {
		scale = make([]float64, n)
		for i := range scale {
			scale[i] = 1
		}
	}
	if len(mean) != n || len(scale) != n {
		return nil, fmt.Errorf("scaler width does not match %d features", n)
	}
	for i, s := range scale {
		if s == 0 || math.IsNaN(s) {
			return nil, fmt.Errorf("scaler scale for %s must be non-zero", mf.Features[i])
		}
	}

	if schema != nil {
		if err := schema.Require(mf.Features...); err != nil {
			return nil, fmt.Errorf("model does not match feature schema: %w", err)
		}
	}

	return &Logistic{
		name:         mf.Name,
		features:     append([]string(nil), mf.Features...),
		mean:         mean,
		scale:        scale,
		coefficients: mf.Coefficients,
		intercept:    mf.Intercept,
	}, nil
}

// Name returns the model name from the file
func (l *Logistic) Name() string {
	return l.name
}

// Predict returns sigmoid(w . (x - mean) / scale + b). Missing or NaN
// features contribute their mean, i.e. zero after scaling.
func (l *Logistic) Predict(v features.Vector) float64 {
	z := l.intercept
	for i, name := range l.features {
		x, ok := v.Get(name)
		if !ok || math.IsNaN(x) {
			continue
		}
		z += l.coefficients[i] * (x - l.mean[i]) / l.scale[i]
	}
	return 1 / (1 + math.Exp(-z))
}
