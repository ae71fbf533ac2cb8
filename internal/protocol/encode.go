package protocol

import (
	"errors"
	"fmt"

	"github.com/saaga0h/parking-edge/internal/gate"
	"github.com/saaga0h/parking-edge/pkg/mqtt"
	"github.com/saaga0h/parking-edge/pkg/timefmt"
)

var (
	// ErrUnknownEvent is returned when an event kind has no wire form
	ErrUnknownEvent = errors.New("unknown gate event kind")
	// ErrInvalidSlot is returned for slot ids Decode would not read back
	ErrInvalidSlot = errors.New("invalid slot id")
)

// Payload prefixes on the event topic
const (
	prefixChange          = "CHANGE"
	prefixPredictedChange = "PRED_CHANGE"
)

// Outbound is a ready-to-publish topic and payload
type Outbound struct {
	Topic   string
	Payload []byte
}

// EncodeEvent renders a gate event for the slot's event topic:
//
//	CHANGE: state=1, ts=2024-01-01T00:00:00
//	PRED_CHANGE: prob=0.998, ts=2024-01-01T00:00:00
func EncodeEvent(namespace string, ev gate.Event) (Outbound, error) {
	if !mqtt.ValidSlotID(ev.SlotID) {
		return Outbound{}, fmt.Errorf("%w: %q", ErrInvalidSlot, ev.SlotID)
	}

	var payload string
	ts := timefmt.Format(ev.Timestamp)

	switch ev.Kind {
	case gate.EventChange:
		payload = fmt.Sprintf("%s: state=%s, ts=%s", prefixChange, ev.State, ts)
	case gate.EventPredictedChange:
		payload = fmt.Sprintf("%s: prob=%.3f, ts=%s", prefixPredictedChange, ev.Probability, ts)
	default:
		return Outbound{}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Kind)
	}

	return Outbound{
		Topic:   mqtt.EventTopic(namespace, ev.SlotID),
		Payload: []byte(payload),
	}, nil
}

// EncodeState renders a raw occupancy snapshot
func EncodeState(namespace, slotID string, occ gate.Occupancy) Outbound {
	return Outbound{
		Topic:   mqtt.StateTopic(namespace, slotID),
		Payload: []byte(occ.String()),
	}
}

// EncodeMetrics renders the transmission summary. Key order and casing are
// fixed: existing consumers parse Traditional, EdgeAI, Reduction in order.
func EncodeMetrics(namespace string, m gate.Metrics) Outbound {
	return Outbound{
		Topic:   mqtt.MetricsTopic(namespace),
		Payload: []byte(FormatMetrics(m)),
	}
}

// FormatMetrics renders "Traditional=<n>, EdgeAI=<n>, Reduction=<pct>%"
func FormatMetrics(m gate.Metrics) string {
	return fmt.Sprintf("Traditional=%d, EdgeAI=%d, Reduction=%.2f%%", m.Traditional, m.EdgeAI, m.ReductionPct)
}
