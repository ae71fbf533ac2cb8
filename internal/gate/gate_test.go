package gate

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type emitted struct {
	index int
	event Event
}

// run feeds occupancy/probability pairs through a fresh gate
func run(t *testing.T, occ []Occupancy, probs []float64) ([]emitted, SlotState) {
	t.Helper()
	require.Equal(t, len(occ), len(probs))

	g := New("slot1", DefaultDecisionThreshold)
	var out []emitted
	for i := range occ {
		ev, ok, err := g.Process(occ[i], probs[i], t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		if ok {
			out = append(out, emitted{index: i, event: ev})
		}
	}
	return out, g.State()
}

func TestScenarioConfirmedChangesOnly(t *testing.T) {
	events, state := run(t,
		[]Occupancy{0, 0, 1, 1, 0},
		[]float64{0, 0, 0, 0, 0})

	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].index)
	assert.Equal(t, EventChange, events[0].event.Kind)
	assert.Equal(t, Occupied, events[0].event.State)
	assert.Equal(t, 4, events[1].index)
	assert.Equal(t, Vacant, events[1].event.State)
	assert.Equal(t, t0.Add(4*time.Second), events[1].event.Timestamp)

	assert.Equal(t, uint64(2), state.EdgeTxCount)
	assert.Equal(t, uint64(5), state.TradTxCount)
	assert.InDelta(t, 60.0, Finalize(map[string]SlotState{"slot1": state}).ReductionPct, 1e-9)
}

func TestScenarioPredictionOnly(t *testing.T) {
	events, state := run(t,
		[]Occupancy{0, 0, 0},
		[]float64{0.1, 0.93, 0.2})

	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].index)
	assert.Equal(t, EventPredictedChange, events[0].event.Kind)
	assert.Equal(t, "slot1", events[0].event.SlotID)
	assert.Equal(t, 0.93, events[0].event.Probability)

	m := Finalize(map[string]SlotState{"slot1": state})
	assert.Equal(t, uint64(1), m.EdgeAI)
	assert.Equal(t, uint64(3), m.Traditional)
	assert.InDelta(t, 66.6667, m.ReductionPct, 1e-3)
}

func TestScenarioEmptyInput(t *testing.T) {
	events, state := run(t, nil, nil)

	assert.Empty(t, events)
	m := Finalize(map[string]SlotState{"slot1": state})
	assert.Equal(t, uint64(0), m.Traditional)
	assert.Equal(t, uint64(0), m.EdgeAI)
	assert.Equal(t, 0.0, m.ReductionPct)

	assert.Equal(t, Metrics{}, Finalize(nil))
}

func TestFirstSampleSeedsSilently(t *testing.T) {
	g := New("slot1", DefaultDecisionThreshold)

	_, ok, err := g.Process(Occupied, 0, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	occ, seeded := g.LastOccupancy()
	assert.True(t, seeded)
	assert.Equal(t, Occupied, occ)
}

func TestFirstSampleCanStillPredict(t *testing.T) {
	g := New("slot1", DefaultDecisionThreshold)

	ev, ok, err := g.Process(Vacant, 0.8, t0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EventPredictedChange, ev.Kind)
}

func TestConfirmedChangeShortCircuitsPrediction(t *testing.T) {
	g := New("slot1", DefaultDecisionThreshold)
	_, _, _ = g.Process(Vacant, 0, t0)

	ev, ok, err := g.Process(Occupied, 0.99, t0.Add(time.Second))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EventChange, ev.Kind)
	assert.Equal(t, uint64(1), g.State().EdgeTxCount)
}

func TestPredictionDoesNotMoveBaseline(t *testing.T) {
	g := New("slot1", DefaultDecisionThreshold)
	_, _, _ = g.Process(Vacant, 0, t0)
	_, ok, _ := g.Process(Vacant, 0.9, t0.Add(time.Second))
	require.True(t, ok)

	occ, _ := g.LastOccupancy()
	assert.Equal(t, Vacant, occ)
}

func TestThresholdIsStrict(t *testing.T) {
	g := New("slot1", 0.5)
	_, ok, _ := g.Process(Vacant, 0.5, t0)
	assert.False(t, ok, "probability equal to the threshold is not a prediction")
}

func TestProbabilityIsClamped(t *testing.T) {
	g := New("slot1", DefaultDecisionThreshold)

	ev, ok, _ := g.Process(Vacant, 3.2, t0)
	require.True(t, ok)
	assert.Equal(t, 1.0, ev.Probability)

	_, ok, _ = g.Process(Vacant, math.NaN(), t0.Add(time.Second))
	assert.False(t, ok)

	_, ok, _ = g.Process(Vacant, -4, t0.Add(2*time.Second))
	assert.False(t, ok)
}

func TestOutOfOrderRejected(t *testing.T) {
	g := New("slot1", DefaultDecisionThreshold)
	_, _, _ = g.Process(Vacant, 0, t0.Add(time.Minute))

	_, ok, err := g.Process(Occupied, 0, t0)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrOutOfOrder))
	assert.Equal(t, uint64(1), g.State().TradTxCount, "rejected sample is not counted")

	// Equal timestamps are accepted
	_, ok, err = g.Process(Occupied, 0, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestGateInvariants checks the counting and change-detection guarantees
// over random sequences.
func TestGateInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 200; trial++ {
		n := rng.IntN(60)
		occ := make([]Occupancy, n)
		probs := make([]float64, n)
		for i := range occ {
			if rng.IntN(4) == 0 {
				occ[i] = 1 - occ[max(i-1, 0)]
			} else if i > 0 {
				occ[i] = occ[i-1]
			}
			probs[i] = rng.Float64()*1.4 - 0.2
		}

		events, state := run(t, occ, probs)

		assert.Equal(t, uint64(n), state.TradTxCount)
		assert.LessOrEqual(t, state.EdgeTxCount, state.TradTxCount)
		assert.Equal(t, uint64(len(events)), state.EdgeTxCount)

		byIndex := make(map[int]Event, len(events))
		for _, e := range events {
			byIndex[e.index] = e.event
		}

		for i := 0; i < n; i++ {
			ev, sent := byIndex[i]
			flipped := i > 0 && occ[i] != occ[i-1]
			switch {
			case flipped:
				require.True(t, sent, "trial %d: flip at %d not sent", trial, i)
				assert.Equal(t, EventChange, ev.Kind)
				assert.Equal(t, occ[i], ev.State)
			case sent:
				assert.Equal(t, EventPredictedChange, ev.Kind, "trial %d: change without flip at %d", trial, i)
				assert.Greater(t, probs[i], DefaultDecisionThreshold)
			default:
				assert.LessOrEqual(t, probs[i], DefaultDecisionThreshold)
			}
		}
	}
}

func TestFinalizeAcrossSlots(t *testing.T) {
	g1 := New("slot1", DefaultDecisionThreshold)
	g2 := New("slot2", DefaultDecisionThreshold)

	_, _, _ = g1.Process(Vacant, 0, t0)
	_, _, _ = g2.Process(Occupied, 0, t0)
	_, ok, _ := g1.Process(Occupied, 0, t0.Add(time.Second))
	assert.True(t, ok)

	states := map[string]SlotState{"slot1": g1.State(), "slot2": g2.State()}
	assert.Equal(t, uint64(2), states["slot1"].TradTxCount)
	assert.Equal(t, uint64(1), states["slot2"].TradTxCount)

	per := FinalizePerSlot(states)
	assert.InDelta(t, 50.0, per["slot1"].ReductionPct, 1e-9)
	assert.InDelta(t, 100.0, per["slot2"].ReductionPct, 1e-9)

	global := Finalize(states)
	assert.Equal(t, uint64(3), global.Traditional)
	assert.Equal(t, uint64(1), global.EdgeAI)
}

func TestDetermineOccupancy(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     Occupancy
	}{
		{"well below threshold", 120, Occupied},
		{"just below", 299.9, Occupied},
		{"at threshold", 300, Vacant},
		{"above", 800, Vacant},
		{"negative", -5, Occupied},
		{"nan", math.NaN(), Vacant},
		{"positive infinity", math.Inf(1), Vacant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineOccupancy(tt.distance, 300))
		})
	}

	assert.False(t, ValidDistance(math.NaN()))
	assert.True(t, ValidDistance(0))
	assert.Equal(t, "1", Occupied.String())
}
