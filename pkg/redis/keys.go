package redis

import "fmt"

// SlotEventsKey returns the key for a slot's recent decoded events (list, newest first)
// Pattern: parking:events:{slot}
func SlotEventsKey(slotID string) string {
	return fmt.Sprintf("parking:events:%s", slotID)
}

// SlotStateKey returns the key for a slot's latest known state (hash)
// Pattern: parking:slot:{slot}
func SlotStateKey(slotID string) string {
	return fmt.Sprintf("parking:slot:%s", slotID)
}

// MetricsKey returns the key for the latest transmission summary (hash)
const MetricsKey = "parking:metrics"
