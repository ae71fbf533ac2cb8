// Package gate implements the per-slot transmission gate: it fuses the
// threshold-derived occupancy flag with the classifier probability and
// decides whether a sample is worth transmitting.
package gate

import (
	"errors"
	"fmt"
	"time"

	"github.com/saaga0h/parking-edge/internal/predictor"
)

// DefaultDecisionThreshold is the probability above which a change is predicted
const DefaultDecisionThreshold = 0.5

// ErrOutOfOrder is returned when a sample is older than the last one processed
var ErrOutOfOrder = errors.New("sample older than last processed sample")

// EventKind identifies a transmitted gate decision
type EventKind int

const (
	// EventChange is a confirmed occupancy transition
	EventChange EventKind = iota + 1
	// EventPredictedChange is an advisory from the classifier
	EventPredictedChange
)

func (k EventKind) String() string {
	switch k {
	case EventChange:
		return "CHANGE"
	case EventPredictedChange:
		return "PRED_CHANGE"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a gate decision that must be transmitted. State is set for
// EventChange, Probability for EventPredictedChange.
type Event struct {
	Kind        EventKind `cbor:"1,keyasint"`
	SlotID      string    `cbor:"2,keyasint"`
	State       Occupancy `cbor:"3,keyasint,omitempty"`
	Probability float64   `cbor:"4,keyasint,omitempty"`
	Timestamp   time.Time `cbor:"5,keyasint"`
}

// SlotState is the mutable per-slot state owned by a Gate
type SlotState struct {
	SlotID        string
	LastOccupancy Occupancy
	EdgeTxCount   uint64
	TradTxCount   uint64
	Seeded        bool
	LastTimestamp time.Time
}

// Gate is the transmission state machine for a single slot. It is not safe
// for concurrent use; one goroutine owns a slot's gate.
type Gate struct {
	state             SlotState
	decisionThreshold float64
}

// New creates a gate for slotID. The first processed sample seeds the
// baseline occupancy without emitting a change.
func New(slotID string, decisionThreshold float64) *Gate {
	return &Gate{
		state:             SlotState{SlotID: slotID},
		decisionThreshold: decisionThreshold,
	}
}

// Process evaluates one sample. ok is false when the sample is suppressed.
//
// Rule 1: an occupancy flip updates the baseline and emits EventChange.
// Rule 2: otherwise a probability above the decision threshold emits
// EventPredictedChange and leaves the baseline alone.
// Rule 3: otherwise nothing is sent.
//
// The baseline counter advances for every accepted sample.
func (g *Gate) Process(occ Occupancy, probability float64, ts time.Time) (ev Event, ok bool, err error) {
	if g.state.Seeded && ts.Before(g.state.LastTimestamp) {
		return Event{}, false, fmt.Errorf("%w: slot %s at %s (last %s)",
			ErrOutOfOrder, g.state.SlotID, ts.Format(time.RFC3339Nano), g.state.LastTimestamp.Format(time.RFC3339Nano))
	}

	g.state.TradTxCount++
	g.state.LastTimestamp = ts

	if !g.state.Seeded {
		g.state.Seeded = true
		g.state.LastOccupancy = occ
	}

	if occ != g.state.LastOccupancy {
		g.state.LastOccupancy = occ
		g.state.EdgeTxCount++
		return Event{Kind: EventChange, SlotID: g.state.SlotID, State: occ, Timestamp: ts}, true, nil
	}

	p := predictor.Clamp(probability)
	if p > g.decisionThreshold {
		g.state.EdgeTxCount++
		return Event{Kind: EventPredictedChange, SlotID: g.state.SlotID, Probability: p, Timestamp: ts}, true, nil
	}

	return Event{}, false, nil
}

// State returns a copy of the slot state
func (g *Gate) State() SlotState {
	return g.state
}

// LastOccupancy returns the baseline and whether it has been seeded
func (g *Gate) LastOccupancy() (Occupancy, bool) {
	return g.state.LastOccupancy, g.state.Seeded
}
