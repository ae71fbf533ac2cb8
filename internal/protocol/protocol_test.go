package protocol

import (
	"testing"
	"time"

	"github.com/saaga0h/parking-edge/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestEncodeEvent(t *testing.T) {
	out, err := EncodeEvent("smartparking", gate.Event{Kind: gate.EventChange, SlotID: "slot1", State: gate.Occupied, Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, "smartparking/slot1/event", out.Topic)
	assert.Equal(t, "CHANGE: state=1, ts=2024-01-01T00:00:00", string(out.Payload))

	out, err = EncodeEvent("smartparking", gate.Event{Kind: gate.EventPredictedChange, SlotID: "slot2", Probability: 0.99812, Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, "smartparking/slot2/event", out.Topic)
	assert.Equal(t, "PRED_CHANGE: prob=0.998, ts=2024-01-01T00:00:00", string(out.Payload))

	for _, slot := range []string{"", "3", "bay-A", "slot1/x", "slot#"} {
		_, err = EncodeEvent("smartparking", gate.Event{Kind: gate.EventChange, SlotID: slot, Timestamp: ts})
		assert.ErrorIs(t, err, ErrInvalidSlot, slot)
	}

	_, err = EncodeEvent("smartparking", gate.Event{SlotID: "slot1"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEncodeStateAndMetrics(t *testing.T) {
	out := EncodeState("ns", "slot4", gate.Vacant)
	assert.Equal(t, "ns/slot4/state", out.Topic)
	assert.Equal(t, "0", string(out.Payload))

	out = EncodeMetrics("ns", gate.NewMetrics(1000, 483))
	assert.Equal(t, "ns/metrics/transmissions", out.Topic)
	assert.Equal(t, "Traditional=1000, EdgeAI=483, Reduction=51.70%", string(out.Payload))

	assert.Equal(t, "Traditional=0, EdgeAI=0, Reduction=0.00%", FormatMetrics(gate.NewMetrics(0, 0)))
	assert.Equal(t, "Traditional=3, EdgeAI=1, Reduction=66.67%", FormatMetrics(gate.NewMetrics(3, 1)))
}

func TestDecodePredictedChange(t *testing.T) {
	msg := Decode("ns/slot3/event", "PRED_CHANGE: prob=0.998, ts=2024-01-01T00:00:00")

	assert.Equal(t, KindPredictedChange, msg.Kind)
	assert.Equal(t, "slot3", msg.SlotID)
	require.NotNil(t, msg.Probability)
	assert.Equal(t, 0.998, *msg.Probability)
	require.NotNil(t, msg.Timestamp)
	assert.True(t, ts.Equal(*msg.Timestamp))
	assert.Equal(t, "2024-01-01T00:00:00", msg.TimestampText)
	assert.False(t, msg.Lenient)
}

func TestDecodeChange(t *testing.T) {
	msg := Decode("smartparking/slot1/event", "CHANGE: state=0, ts=2024-01-01 00:00:00")

	assert.Equal(t, KindChange, msg.Kind)
	require.NotNil(t, msg.State)
	assert.Equal(t, gate.Vacant, *msg.State)
	require.NotNil(t, msg.Timestamp)
	assert.False(t, msg.Lenient)
}

func TestDecodeLenientFallback(t *testing.T) {
	msg := Decode("ns/slot2/event", "CHANGE:state = 1 ,ts=2024-01-01T00:00:00")

	assert.Equal(t, KindChange, msg.Kind)
	assert.True(t, msg.Lenient)
	require.NotNil(t, msg.State)
	assert.Equal(t, gate.Occupied, *msg.State)
	require.NotNil(t, msg.Timestamp)
}

func TestDecodeUnknownFieldsAreNil(t *testing.T) {
	msg := Decode("ns/slot1/event", "PRED_CHANGE: prob=high, ts=whenever")
	assert.Equal(t, KindPredictedChange, msg.Kind)
	assert.Nil(t, msg.Probability)
	assert.Nil(t, msg.Timestamp)
	assert.Equal(t, "whenever", msg.TimestampText)

	msg = Decode("ns/slot1/event", "CHANGE: state=7, ts=2024-01-01T00:00:00")
	assert.Equal(t, KindChange, msg.Kind)
	assert.Nil(t, msg.State)

	msg = Decode("ns/slot1/event", "PRED_CHANGE")
	assert.Equal(t, KindPredictedChange, msg.Kind)
	assert.Nil(t, msg.Probability)

	for _, prob := range []string{"1.5", "-0.2", "1e3"} {
		msg = Decode("ns/slot1/event", "PRED_CHANGE: prob="+prob+", ts=2024-01-01T00:00:00")
		assert.Equal(t, KindPredictedChange, msg.Kind, prob)
		assert.Nil(t, msg.Probability, prob)
		assert.NotNil(t, msg.Timestamp, prob)
	}

	for _, prob := range []string{"0.000", "1.000"} {
		msg = Decode("ns/slot1/event", "PRED_CHANGE: prob="+prob+", ts=2024-01-01T00:00:00")
		assert.NotNil(t, msg.Probability, prob)
	}
}

func TestDecodeState(t *testing.T) {
	msg := Decode("ns/slot5/state", " 1\n")
	assert.Equal(t, KindState, msg.Kind)
	assert.Equal(t, "slot5", msg.SlotID)
	require.NotNil(t, msg.State)
	assert.Equal(t, gate.Occupied, *msg.State)

	msg = Decode("ns/slot5/state", "open")
	assert.Equal(t, KindState, msg.Kind)
	assert.Nil(t, msg.State)
}

func TestDecodeMetrics(t *testing.T) {
	msg := Decode("smartparking/metrics/transmissions", "Traditional=1000, EdgeAI=483, Reduction=51.70%")

	assert.Equal(t, KindMetrics, msg.Kind)
	assert.Equal(t, DefaultSlot, msg.SlotID)
	require.NotNil(t, msg.Metrics)
	snap, ok := msg.Metrics.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(1000), snap.Traditional)
	assert.Equal(t, uint64(483), snap.EdgeAI)
	assert.InDelta(t, 51.70, snap.ReductionPct, 1e-9)

	msg = Decode("smartparking/metrics/transmissions", "EdgeAI=12.0, Traditional=x")
	assert.Equal(t, KindMetrics, msg.Kind)
	assert.True(t, msg.Lenient)
	assert.Nil(t, msg.Metrics.Traditional)
	require.NotNil(t, msg.Metrics.EdgeAI)
	assert.Equal(t, uint64(12), *msg.Metrics.EdgeAI)
	_, ok = msg.Metrics.Snapshot()
	assert.False(t, ok)
}

func TestDecodeMetricsIsIdempotent(t *testing.T) {
	payload := "Traditional=5, EdgeAI=2, Reduction=60.00%"

	first, ok := Decode("ns/metrics/transmissions", payload).Metrics.Snapshot()
	require.True(t, ok)
	second, ok := Decode("ns/metrics/transmissions", payload).Metrics.Snapshot()
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestDecodeUnrecognisedIsRaw(t *testing.T) {
	tests := []struct {
		topic   string
		payload string
	}{
		{"ns/slot1/event", "hello"},
		{"ns/slot1/diagnostics", "{\"rssi\": -60}"},
		{"ns/metrics/transmissions", "no metrics here"},
		{"other/topic", ""},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			msg := Decode(tt.topic, tt.payload)
			assert.Equal(t, KindRaw, msg.Kind)
			assert.Equal(t, tt.topic, msg.Topic)
			assert.Equal(t, "MSG", msg.Kind.String())
		})
	}

	assert.Equal(t, DefaultSlot, Decode("other/topic", "x").SlotID)
}

func TestEventRoundTrip(t *testing.T) {
	events := []gate.Event{
		{Kind: gate.EventChange, SlotID: "slot1", State: gate.Occupied, Timestamp: ts},
		{Kind: gate.EventChange, SlotID: "slot12", State: gate.Vacant, Timestamp: ts.Add(1500 * time.Millisecond)},
		{Kind: gate.EventPredictedChange, SlotID: "slot3", Probability: 0.5004, Timestamp: ts.Add(time.Hour)},
		{Kind: gate.EventPredictedChange, SlotID: "slot7", Probability: 1, Timestamp: ts},
	}

	for _, ev := range events {
		out, err := EncodeEvent("ns", ev)
		require.NoError(t, err)

		msg := Decode(out.Topic, string(out.Payload))
		assert.Equal(t, ev.SlotID, msg.SlotID)
		assert.Equal(t, ev.Kind.String(), msg.Kind.String())
		require.NotNil(t, msg.Timestamp)
		assert.True(t, ev.Timestamp.Equal(*msg.Timestamp))

		switch ev.Kind {
		case gate.EventChange:
			require.NotNil(t, msg.State)
			assert.Equal(t, ev.State, *msg.State)
		case gate.EventPredictedChange:
			require.NotNil(t, msg.Probability)
			assert.InDelta(t, ev.Probability, *msg.Probability, 0.0005)
		}
	}
}
