package protocol

import (
	"math"
	"strconv"
	"strings"

	"github.com/saaga0h/parking-edge/internal/gate"
	"github.com/saaga0h/parking-edge/pkg/mqtt"
	"github.com/saaga0h/parking-edge/pkg/timefmt"
)

var (
	changeKeys    = []string{"state", "ts"}
	predictedKeys = []string{"prob", "ts"}
	metricsKeys   = []string{"Traditional", "EdgeAI", "Reduction"}
)

// Decode parses one inbound message. It never fails: payloads that match no
// known layout come back as KindRaw, and numeric fields that cannot be read
// are left nil while the enclosing message keeps its kind.
//
// Each layout is tried strictly first (exact prefix, key order and
// separators) and then leniently (keys located anywhere in the text).
func Decode(topic, payload string) Message {
	text := strings.TrimSpace(payload)

	slotID, ok := mqtt.SlotFromTopic(topic)
	if !ok {
		slotID = DefaultSlot
	}

	msg := Message{
		Kind:    KindRaw,
		Topic:   topic,
		Payload: text,
		SlotID:  slotID,
	}

	switch {
	case mqtt.IsMetricsTopic(topic):
		decodeMetrics(&msg, text)
	case strings.Contains(text, prefixPredictedChange):
		decodePredicted(&msg, text)
	case strings.HasPrefix(text, prefixChange):
		decodeChange(&msg, text)
	case mqtt.IsStateTopic(topic):
		decodeState(&msg, text)
	}

	return msg
}

func decodeMetrics(msg *Message, text string) {
	fields, strict := parseFields("", metricsKeys, text)
	if len(fields) == 0 {
		return
	}

	m := &Metrics{}
	if v, ok := fields["Traditional"]; ok {
		m.Traditional = parseCount(v)
	}
	if v, ok := fields["EdgeAI"]; ok {
		m.EdgeAI = parseCount(v)
	}
	if v, ok := fields["Reduction"]; ok {
		m.ReductionPct = parseFloat(strings.TrimSuffix(v, "%"))
	}

	msg.Kind = KindMetrics
	msg.Metrics = m
	msg.Lenient = !strict
}

func decodePredicted(msg *Message, text string) {
	fields, strict := parseFields(prefixPredictedChange, predictedKeys, text)

	msg.Kind = KindPredictedChange
	msg.Lenient = !strict
	if v, ok := fields["prob"]; ok {
		msg.Probability = parseProbability(v)
	}
	setTimestamp(msg, fields)
}

func decodeChange(msg *Message, text string) {
	fields, strict := parseFields(prefixChange, changeKeys, text)

	msg.Kind = KindChange
	msg.Lenient = !strict
	if v, ok := fields["state"]; ok {
		msg.State = parseOccupancy(v)
	}
	setTimestamp(msg, fields)
}

func decodeState(msg *Message, text string) {
	msg.Kind = KindState
	msg.State = parseOccupancy(text)
}

func setTimestamp(msg *Message, fields map[string]string) {
	v, ok := fields["ts"]
	if !ok {
		return
	}
	msg.TimestampText = v
	if t, err := timefmt.Parse(v); err == nil {
		msg.Timestamp = &t
	}
}

// parseFields extracts key=value pairs. strict is true when text is exactly
// "<prefix>: k1=v1, k2=v2" with keys in the given order (no prefix and no
// colon when prefix is empty). Otherwise each comma-separated token is
// scanned for "key = value", with the key taken as the last word before '='.
func parseFields(prefix string, keys []string, text string) (map[string]string, bool) {
	if fields, ok := parseStrict(prefix, keys, text); ok {
		return fields, true
	}
	return parseLenient(keys, text), false
}

func parseStrict(prefix string, keys []string, text string) (map[string]string, bool) {
	body := text
	if prefix != "" {
		rest, found := strings.CutPrefix(text, prefix+": ")
		if !found {
			return nil, false
		}
		body = rest
	}

	parts := strings.Split(body, ", ")
	if len(parts) != len(keys) {
		return nil, false
	}

	fields := make(map[string]string, len(keys))
	for i, part := range parts {
		k, v, found := strings.Cut(part, "=")
		if !found || k != keys[i] || v == "" {
			return nil, false
		}
		fields[k] = v
	}
	return fields, true
}

func parseLenient(keys []string, text string) map[string]string {
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	fields := make(map[string]string)
	for _, token := range strings.Split(text, ",") {
		left, right, found := strings.Cut(token, "=")
		if !found {
			continue
		}
		words := strings.FieldsFunc(left, func(r rune) bool {
			return r == ' ' || r == ':' || r == '\t'
		})
		if len(words) == 0 {
			continue
		}
		key := words[len(words)-1]
		if !wanted[key] {
			continue
		}
		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = strings.TrimSpace(right)
	}
	return fields
}

func parseOccupancy(s string) *gate.Occupancy {
	var occ gate.Occupancy
	switch strings.TrimSpace(s) {
	case "0":
		occ = gate.Vacant
	case "1":
		occ = gate.Occupied
	default:
		return nil
	}
	return &occ
}

// parseProbability is parseFloat restricted to [0, 1]
func parseProbability(s string) *float64 {
	p := parseFloat(s)
	if p == nil || *p < 0 || *p > 1 {
		return nil
	}
	return p
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseCount accepts integers and integral floats ("1000", "1000.0")
func parseCount(s string) *uint64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(uint64(f)) {
		return nil
	}
	v := uint64(f)
	return &v
}
