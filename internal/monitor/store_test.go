package monitor

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/saaga0h/parking-edge/internal/gate"
	"github.com/saaga0h/parking-edge/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(size int) *Store {
	s := NewStore(size)
	s.now = fixedClock()
	return s
}

func apply(s *Store, topic, payload string) {
	s.Apply(protocol.Decode(topic, payload))
}

func TestStoreAppliesEventKinds(t *testing.T) {
	s := newTestStore(10)

	apply(s, "smartparking/slot1/event", "PRED_CHANGE: prob=0.998, ts=2024-01-01T00:00:01")
	apply(s, "smartparking/slot1/event", "CHANGE: state=1, ts=2024-01-01T00:00:02")
	apply(s, "smartparking/slot1/state", "1")

	view, ok := s.Slot("slot1", 0)
	require.True(t, ok)

	require.Len(t, view.Events, 3)
	assert.Equal(t, protocol.KindState, view.Events[0].Kind)
	assert.Equal(t, protocol.KindChange, view.Events[1].Kind)
	assert.Equal(t, "state=1", view.Events[1].Info)
	assert.Equal(t, protocol.KindPredictedChange, view.Events[2].Kind)
	assert.Equal(t, "prob=0.998", view.Events[2].Info)

	require.Len(t, view.Probabilities, 1)
	assert.InDelta(t, 0.998, *view.Probabilities[0].Probability, 1e-9)

	require.Len(t, view.Occupancy, 2)
	require.NotNil(t, view.State)
	assert.Equal(t, gate.Occupied, *view.State)

	assert.Len(t, s.Raw(0), 3)
	assert.Equal(t, uint64(3), s.Applied())
}

func TestStoreUnparseableProbabilityStillRecorded(t *testing.T) {
	s := newTestStore(10)
	apply(s, "ns/slot2/event", "PRED_CHANGE: prob=abc, ts=2024-01-01T00:00:01")

	view, ok := s.Slot("slot2", 0)
	require.True(t, ok)
	require.Len(t, view.Probabilities, 1)
	assert.Nil(t, view.Probabilities[0].Probability)
	assert.Equal(t, "prob=unknown", view.Events[0].Info)
}

func TestStoreRawMessageGoesToFallbackSlot(t *testing.T) {
	s := newTestStore(10)
	apply(s, "smartparking/diagnostics", "hello world")

	raw := s.Raw(0)
	require.Len(t, raw, 1)
	assert.Equal(t, "hello world", raw[0].Payload)

	view, ok := s.Slot("slot1", 0)
	require.True(t, ok)
	require.Len(t, view.Events, 1)
	assert.Equal(t, protocol.KindRaw, view.Events[0].Kind)
	assert.Equal(t, "hello world", view.Events[0].Info)
	assert.Nil(t, view.State)
}

func TestStoreMetricsMerge(t *testing.T) {
	s := newTestStore(10)

	_, ok := s.Metrics()
	assert.False(t, ok)

	apply(s, "smartparking/metrics/transmissions", "Traditional=1000, EdgeAI=483, Reduction=51.70%")
	apply(s, "smartparking/metrics/transmissions", "Traditional=1200, EdgeAI=oops")

	m, ok := s.Metrics()
	require.True(t, ok)
	assert.Equal(t, uint64(1200), *m.Traditional)
	assert.Equal(t, uint64(483), *m.EdgeAI)
	assert.InDelta(t, 51.70, *m.ReductionPct, 1e-9)

	// metrics are global, never attributed to a slot
	assert.Empty(t, s.Slots())
	assert.Len(t, s.Raw(0), 2)
}

func TestStoreHistoryIsBounded(t *testing.T) {
	s := newTestStore(3)
	for i := 0; i < 10; i++ {
		apply(s, "ns/slot1/state", fmt.Sprint(i%2))
	}

	view, _ := s.Slot("slot1", 0)
	assert.Len(t, view.Events, 3)
	assert.Len(t, view.Occupancy, 3)
	assert.Len(t, s.Raw(0), 3)
	assert.Equal(t, gate.Occupied, *view.State)

	limited, _ := s.Slot("slot1", 1)
	assert.Len(t, limited.Events, 1)
}

func TestStoreSnapshotsAreCopies(t *testing.T) {
	s := newTestStore(10)
	apply(s, "ns/slot1/state", "1")

	view, _ := s.Slot("slot1", 0)
	*view.State = gate.Vacant
	view.Events[0].Info = "mutated"

	again, _ := s.Slot("slot1", 0)
	assert.Equal(t, gate.Occupied, *again.State)
	assert.Equal(t, "state=1", again.Events[0].Info)
}

func TestStoreSlotsSortedByID(t *testing.T) {
	s := newTestStore(10)
	apply(s, "ns/slot3/state", "0")
	apply(s, "ns/slot1/state", "1")
	apply(s, "ns/slot2/event", "PRED_CHANGE: prob=0.9, ts=2024-01-01T00:00:00")

	slots := s.Slots()
	require.Len(t, slots, 3)
	assert.Equal(t, "slot1", slots[0].ID)
	assert.Equal(t, "slot2", slots[1].ID)
	assert.Equal(t, 1, slots[1].Predictions)
	assert.Equal(t, "slot3", slots[2].ID)
}

func TestStoreUnknownSlot(t *testing.T) {
	s := newTestStore(10)
	_, ok := s.Slot("slot9", 0)
	assert.False(t, ok)
}
