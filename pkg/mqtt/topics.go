package mqtt

import (
	"fmt"
	"strings"

	"github.com/saaga0h/parking-edge/pkg/slotid"
)

// Topic layout under a namespace (default "smartparking"):
//
//	{ns}/slot{n}/state
//	{ns}/slot{n}/event
//	{ns}/metrics/transmissions
const (
	stateSuffix         = "state"
	eventSuffix         = "event"
	metricsTransmission = "metrics/transmissions"
)

// StateTopic returns the raw occupancy snapshot topic for a slot
// Pattern: {ns}/{slot}/state
func StateTopic(namespace, slotID string) string {
	return fmt.Sprintf("%s/%s/%s", namespace, slotID, stateSuffix)
}

// EventTopic returns the gate event topic for a slot
// Pattern: {ns}/{slot}/event
func EventTopic(namespace, slotID string) string {
	return fmt.Sprintf("%s/%s/%s", namespace, slotID, eventSuffix)
}

// MetricsTopic returns the end-of-run transmission metrics topic
func MetricsTopic(namespace string) string {
	return namespace + "/" + metricsTransmission
}

// WildcardTopic returns the subscription filter covering the whole namespace
func WildcardTopic(namespace string) string {
	return namespace + "/#"
}

// IsMetricsTopic reports whether the topic carries transmission metrics
func IsMetricsTopic(topic string) bool {
	return strings.HasSuffix(topic, metricsTransmission)
}

// IsStateTopic reports whether the topic is a per-slot state snapshot
func IsStateTopic(topic string) bool {
	return strings.HasSuffix(topic, "/"+stateSuffix)
}

// IsEventTopic reports whether the topic is a per-slot event topic
func IsEventTopic(topic string) bool {
	return strings.HasSuffix(topic, "/"+eventSuffix)
}

// SlotFromTopic extracts the slot id ("slot3") from the first topic segment
// of the form slot{digits}. ok is false when no segment matches.
func SlotFromTopic(topic string) (slotID string, ok bool) {
	for _, part := range strings.Split(topic, "/") {
		if slotid.Valid(part) {
			return part, true
		}
	}
	return "", false
}

// ValidSlotID reports whether id can be published and read back from a
// slot topic
func ValidSlotID(id string) bool {
	return slotid.Valid(id)
}
