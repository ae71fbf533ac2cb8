// Package protocol encodes gate decisions into MQTT topics and text payloads
// and decodes them back on the consumer side.
package protocol

import (
	"time"

	"github.com/saaga0h/parking-edge/internal/gate"
)

// DefaultSlot is used when a topic carries no slot segment
const DefaultSlot = "slot1"

// Kind is the closed set of decoded message variants
type Kind int

const (
	// KindRaw is any message that matched no known pattern
	KindRaw Kind = iota
	// KindState is a raw occupancy snapshot ("0" / "1")
	KindState
	// KindChange is a confirmed transition
	KindChange
	// KindPredictedChange is a classifier advisory
	KindPredictedChange
	// KindMetrics is an end-of-run transmission summary
	KindMetrics
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "STATE"
	case KindChange:
		return "CHANGE"
	case KindPredictedChange:
		return "PRED_CHANGE"
	case KindMetrics:
		return "METRICS"
	default:
		return "MSG"
	}
}

// MarshalText renders the kind label in JSON snapshots
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the labels produced by MarshalText; anything else
// is KindRaw
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "STATE":
		*k = KindState
	case "CHANGE":
		*k = KindChange
	case "PRED_CHANGE":
		*k = KindPredictedChange
	case "METRICS":
		*k = KindMetrics
	default:
		*k = KindRaw
	}
	return nil
}

// Message is a decoded wire message. Pointer fields are nil when the
// payload did not carry a usable value for them.
type Message struct {
	Kind          Kind            `json:"kind"`
	Topic         string          `json:"topic"`
	Payload       string          `json:"payload"`
	SlotID        string          `json:"slot_id"`
	State         *gate.Occupancy `json:"state,omitempty"`
	Probability   *float64        `json:"probability,omitempty"`
	Timestamp     *time.Time      `json:"timestamp,omitempty"`
	TimestampText string          `json:"timestamp_text,omitempty"`
	Metrics       *Metrics        `json:"metrics,omitempty"`
	// Lenient is set when the strict layout did not match and fields were
	// recovered individually.
	Lenient bool `json:"lenient,omitempty"`
}

// Metrics is the decoded transmission summary
type Metrics struct {
	Traditional  *uint64  `json:"traditional"`
	EdgeAI       *uint64  `json:"edge_ai"`
	ReductionPct *float64 `json:"reduction_pct"`
}

// Snapshot converts decoded metrics to gate.Metrics; ok is false when any
// field is unknown.
func (m Metrics) Snapshot() (gate.Metrics, bool) {
	if m.Traditional == nil || m.EdgeAI == nil || m.ReductionPct == nil {
		return gate.Metrics{}, false
	}
	return gate.Metrics{
		Traditional:  *m.Traditional,
		EdgeAI:       *m.EdgeAI,
		ReductionPct: *m.ReductionPct,
	}, true
}
