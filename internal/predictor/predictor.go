// Package predictor holds the change classifier boundary used by the gate.
package predictor

import (
	"math"
	"sync"

	"github.com/saaga0h/parking-edge/internal/features"
)

// Predictor returns the probability that a slot is about to change state.
// Implementations must be deterministic for a fixed model and free of
// side effects visible to the caller.
type Predictor interface {
	Predict(v features.Vector) float64
}

// Constant always returns the same probability
type Constant float64

// Predict returns c
func (c Constant) Predict(features.Vector) float64 {
	return float64(c)
}

// Sequence returns the given probabilities in call order and repeats the
// last one once exhausted. Safe for concurrent use; intended for tests.
type Sequence struct {
	mu    sync.Mutex
	probs []float64
	next  int
}

// NewSequence creates a Sequence predictor
func NewSequence(probs ...float64) *Sequence {
	return &Sequence{probs: probs}
}

// Predict returns the next probability in the sequence
func (s *Sequence) Predict(features.Vector) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.probs) == 0 {
		return 0
	}
	i := s.next
	if i >= len(s.probs) {
		i = len(s.probs) - 1
	} else {
		s.next++
	}
	return s.probs[i]
}

// Clamp bounds p to [0, 1]; NaN maps to 0
func Clamp(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
