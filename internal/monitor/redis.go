package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/saaga0h/parking-edge/internal/protocol"
	"github.com/saaga0h/parking-edge/pkg/redis"
)

// mirroredEvent is the JSON document pushed to a slot's event list
type mirroredEvent struct {
	Kind        string   `json:"kind"`
	Topic       string   `json:"topic"`
	Payload     string   `json:"payload"`
	Received    int64    `json:"received_ms"`
	Timestamp   string   `json:"ts,omitempty"`
	State       *int     `json:"state,omitempty"`
	Probability *float64 `json:"prob,omitempty"`
}

// RedisMirror copies decoded messages into Redis for external readers:
// capped per-slot event lists, the latest state per slot and the latest
// transmission summary.
type RedisMirror struct {
	redis  redis.Client
	size   int64
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRedisMirror creates a mirror keeping size events per slot. A zero ttl
// leaves keys without expiry.
func NewRedisMirror(client redis.Client, size int, ttl time.Duration, logger *slog.Logger) *RedisMirror {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &RedisMirror{
		redis:  client,
		size:   int64(size),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Apply mirrors one message
func (m *RedisMirror) Apply(ctx context.Context, msg protocol.Message) error {
	if msg.Kind == protocol.KindMetrics {
		return m.storeMetrics(ctx, msg.Metrics)
	}

	doc := mirroredEvent{
		Kind:        msg.Kind.String(),
		Topic:       msg.Topic,
		Payload:     msg.Payload,
		Received:    m.now().UnixMilli(),
		Timestamp:   msg.TimestampText,
		Probability: msg.Probability,
	}
	if msg.State != nil {
		st := int(*msg.State)
		doc.State = &st
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal mirrored event: %w", err)
	}

	key := redis.SlotEventsKey(msg.SlotID)
	if err := m.redis.LPush(ctx, key, data); err != nil {
		return err
	}
	if err := m.redis.LTrim(ctx, key, 0, m.size-1); err != nil {
		return err
	}
	if err := m.expire(ctx, key); err != nil {
		return err
	}

	if doc.State != nil {
		stateKey := redis.SlotStateKey(msg.SlotID)
		if err := m.redis.HSet(ctx, stateKey,
			"state", *doc.State,
			"kind", doc.Kind,
			"ts", doc.Timestamp,
			"updated_ms", doc.Received,
		); err != nil {
			return err
		}
		if err := m.expire(ctx, stateKey); err != nil {
			return err
		}
	}

	m.logger.Debug("Mirrored event to Redis", "slot", msg.SlotID, "kind", doc.Kind, "key", key)
	return nil
}

func (m *RedisMirror) storeMetrics(ctx context.Context, metrics *protocol.Metrics) error {
	if metrics == nil {
		return nil
	}

	var fields []interface{}
	if metrics.Traditional != nil {
		fields = append(fields, "traditional", strconv.FormatUint(*metrics.Traditional, 10))
	}
	if metrics.EdgeAI != nil {
		fields = append(fields, "edge_ai", strconv.FormatUint(*metrics.EdgeAI, 10))
	}
	if metrics.ReductionPct != nil {
		fields = append(fields, "reduction_pct", strconv.FormatFloat(*metrics.ReductionPct, 'f', 2, 64))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_ms", m.now().UnixMilli())

	if err := m.redis.HSet(ctx, redis.MetricsKey, fields...); err != nil {
		return err
	}
	return m.expire(ctx, redis.MetricsKey)
}

func (m *RedisMirror) expire(ctx context.Context, key string) error {
	if m.ttl <= 0 {
		return nil
	}
	return m.redis.Expire(ctx, key, m.ttl)
}

// RecentEvents reads back up to limit mirrored events for a slot, newest first
func (m *RedisMirror) RecentEvents(ctx context.Context, slotID string, limit int64) ([]string, error) {
	if limit <= 0 || limit > m.size {
		limit = m.size
	}
	return m.redis.LRange(ctx, redis.SlotEventsKey(slotID), 0, limit-1)
}

// Metrics reads back the mirrored transmission summary
func (m *RedisMirror) Metrics(ctx context.Context) (map[string]string, error) {
	return m.redis.HGetAll(ctx, redis.MetricsKey)
}
