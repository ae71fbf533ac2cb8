package features

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingFeature is returned when input lacks a required feature column
var ErrMissingFeature = errors.New("missing required feature")

// DefaultFeatureNames is the feature layout produced by the sensor
// feature-extraction pipeline: three ToF zone groups, magnetometer and
// aggregate ToF statistics.
var DefaultFeatureNames = []string{
	"g0_min", "g1_min", "g2_min",
	"g0_mean", "g1_mean", "g2_mean",
	"mag_norm", "mag_norm_diff",
	"tof_min_all", "tof_mean_all", "tof_mean_all_diff",
}

// Schema is an ordered, fixed-width set of named features
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema from ordered, unique feature names
func NewSchema(names []string) (*Schema, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("schema needs at least one feature")
	}
	s := &Schema{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if _, dup := s.index[n]; dup {
			return nil, fmt.Errorf("duplicate feature %q in schema", n)
		}
		s.index[n] = i
	}
	return s, nil
}

// DefaultSchema returns the schema for DefaultFeatureNames
func DefaultSchema() *Schema {
	s, _ := NewSchema(DefaultFeatureNames)
	return s
}

// Names returns the feature names in order
func (s *Schema) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the vector width
func (s *Schema) Len() int {
	return len(s.names)
}

// Index returns the position of a feature
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Require checks that every name is part of the schema
func (s *Schema) Require(names ...string) error {
	for _, n := range names {
		if _, ok := s.index[n]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingFeature, n)
		}
	}
	return nil
}

// Vector is one observation laid out according to its schema
type Vector struct {
	schema *Schema
	values []float64
}

// NewVector binds values to a schema; len(values) must equal the schema width
func NewVector(schema *Schema, values []float64) (Vector, error) {
	if len(values) != schema.Len() {
		return Vector{}, fmt.Errorf("vector has %d values, schema expects %d", len(values), schema.Len())
	}
	return Vector{schema: schema, values: append([]float64(nil), values...)}, nil
}

// Schema returns the vector's schema
func (v Vector) Schema() *Schema {
	return v.schema
}

// Values returns a copy of the values in schema order
func (v Vector) Values() []float64 {
	return append([]float64(nil), v.values...)
}

// Get returns a named feature value
func (v Vector) Get(name string) (float64, bool) {
	if v.schema == nil {
		return 0, false
	}
	i, ok := v.schema.Index(name)
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Sample is one sensor observation. Samples are immutable once loaded.
type Sample struct {
	Slot        string
	Timestamp   time.Time
	Vector      Vector
	RawDistance float64
}
