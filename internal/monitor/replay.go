package monitor

import (
	"github.com/saaga0h/parking-edge/internal/journal"
	"github.com/saaga0h/parking-edge/internal/protocol"
)

// Replay feeds journaled gate events through the wire encoding and the
// decoder into store, exactly as if they had arrived over MQTT. Entries
// that cannot be encoded are not applied and are counted in skipped.
func Replay(store *Store, namespace string, entries []journal.Entry) (applied, skipped int) {
	for _, e := range entries {
		out, err := protocol.EncodeEvent(namespace, e.Event)
		if err != nil {
			skipped++
			continue
		}
		store.Apply(protocol.Decode(out.Topic, string(out.Payload)))
		applied++
	}
	return applied, skipped
}
