// Package monitor consumes the gated event stream and keeps a bounded,
// per-slot picture of what the edge node reported.
package monitor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/saaga0h/parking-edge/internal/gate"
	"github.com/saaga0h/parking-edge/internal/protocol"
)

// DefaultHistorySize is the per-slot ring capacity
const DefaultHistorySize = 2000

// EventRecord is one entry in a slot's event history
type EventRecord struct {
	Received  time.Time     `json:"received"`
	Kind      protocol.Kind `json:"kind"`
	Info      string        `json:"info"`
	Timestamp *time.Time    `json:"timestamp,omitempty"`
}

// ProbabilityPoint is a predicted-change probability as reported
type ProbabilityPoint struct {
	Received    time.Time  `json:"received"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Probability *float64   `json:"probability"`
}

// OccupancyPoint is a reported occupancy, from a change or a state snapshot
type OccupancyPoint struct {
	Received  time.Time       `json:"received"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	State     *gate.Occupancy `json:"state"`
}

// RawRecord is any inbound message as received
type RawRecord struct {
	Received time.Time `json:"received"`
	Topic    string    `json:"topic"`
	Payload  string    `json:"payload"`
}

type slotHistory struct {
	latest        *gate.Occupancy
	lastReceived  time.Time
	events        *Ring[EventRecord]
	probabilities *Ring[ProbabilityPoint]
	occupancy     *Ring[OccupancyPoint]
}

// SlotView is a point-in-time copy of one slot. Histories are newest first.
type SlotView struct {
	ID            string             `json:"id"`
	State         *gate.Occupancy    `json:"state"`
	LastReceived  time.Time          `json:"last_received"`
	Events        []EventRecord      `json:"events"`
	Probabilities []ProbabilityPoint `json:"probabilities"`
	Occupancy     []OccupancyPoint   `json:"occupancy"`
}

// SlotSummary is the compact per-slot listing
type SlotSummary struct {
	ID           string          `json:"id"`
	State        *gate.Occupancy `json:"state"`
	LastReceived time.Time       `json:"last_received"`
	Events       int             `json:"events"`
	Predictions  int             `json:"predictions"`
}

// Store is the consumer-side aggregation state. Writes go through Apply
// from a single goroutine; readers get copies.
type Store struct {
	mu      sync.RWMutex
	size    int
	now     func() time.Time
	slots   map[string]*slotHistory
	raw     *Ring[RawRecord]
	metrics *protocol.Metrics
	applied uint64
}

// NewStore creates a store keeping size entries per history
func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Store{
		size:  size,
		now:   time.Now,
		slots: make(map[string]*slotHistory),
		raw:   NewRing[RawRecord](size),
	}
}

// Apply records one decoded message in arrival order
func (s *Store) Apply(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	received := s.now()
	s.applied++
	s.raw.Push(RawRecord{Received: received, Topic: msg.Topic, Payload: msg.Payload})

	if msg.Kind == protocol.KindMetrics {
		s.mergeMetrics(msg.Metrics)
		return
	}

	slot := s.slot(msg.SlotID)
	slot.lastReceived = received

	record := EventRecord{Received: received, Kind: msg.Kind, Timestamp: msg.Timestamp}

	switch msg.Kind {
	case protocol.KindPredictedChange:
		record.Info = "prob=" + formatProbability(msg.Probability)
		slot.probabilities.Push(ProbabilityPoint{Received: received, Timestamp: msg.Timestamp, Probability: msg.Probability})
	case protocol.KindChange, protocol.KindState:
		record.Info = "state=" + formatOccupancy(msg.State)
		slot.occupancy.Push(OccupancyPoint{Received: received, Timestamp: msg.Timestamp, State: msg.State})
		if msg.State != nil {
			st := *msg.State
			slot.latest = &st
		}
	default:
		record.Info = msg.Payload
	}

	slot.events.Push(record)
}

func (s *Store) slot(id string) *slotHistory {
	h, ok := s.slots[id]
	if !ok {
		h = &slotHistory{
			events:        NewRing[EventRecord](s.size),
			probabilities: NewRing[ProbabilityPoint](s.size),
			occupancy:     NewRing[OccupancyPoint](s.size),
		}
		s.slots[id] = h
	}
	return h
}

// mergeMetrics keeps previously known values for fields the new summary
// could not supply
func (s *Store) mergeMetrics(m *protocol.Metrics) {
	if m == nil {
		return
	}
	if s.metrics == nil {
		s.metrics = &protocol.Metrics{}
	}
	if m.Traditional != nil {
		v := *m.Traditional
		s.metrics.Traditional = &v
	}
	if m.EdgeAI != nil {
		v := *m.EdgeAI
		s.metrics.EdgeAI = &v
	}
	if m.ReductionPct != nil {
		v := *m.ReductionPct
		s.metrics.ReductionPct = &v
	}
}

// Slots lists every known slot ordered by id
func (s *Store) Slots() []SlotSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SlotSummary, 0, len(s.slots))
	for id, h := range s.slots {
		out = append(out, SlotSummary{
			ID:           id,
			State:        copyOccupancy(h.latest),
			LastReceived: h.lastReceived,
			Events:       h.events.Len(),
			Predictions:  h.probabilities.Len(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Slot returns a copy of one slot's history, at most limit entries per
// history (limit <= 0 means all)
func (s *Store) Slot(id string, limit int) (SlotView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.slots[id]
	if !ok {
		return SlotView{}, false
	}
	return SlotView{
		ID:            id,
		State:         copyOccupancy(h.latest),
		LastReceived:  h.lastReceived,
		Events:        h.events.Newest(limit),
		Probabilities: h.probabilities.Newest(limit),
		Occupancy:     h.occupancy.Newest(limit),
	}, true
}

// Metrics returns the latest transmission summary, if any was received
func (s *Store) Metrics() (protocol.Metrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.metrics == nil {
		return protocol.Metrics{}, false
	}
	m := protocol.Metrics{}
	if s.metrics.Traditional != nil {
		v := *s.metrics.Traditional
		m.Traditional = &v
	}
	if s.metrics.EdgeAI != nil {
		v := *s.metrics.EdgeAI
		m.EdgeAI = &v
	}
	if s.metrics.ReductionPct != nil {
		v := *s.metrics.ReductionPct
		m.ReductionPct = &v
	}
	return m, true
}

// Raw returns recent inbound messages, newest first
func (s *Store) Raw(limit int) []RawRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw.Newest(limit)
}

// Applied returns how many messages have been applied
func (s *Store) Applied() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied
}

func copyOccupancy(o *gate.Occupancy) *gate.Occupancy {
	if o == nil {
		return nil
	}
	v := *o
	return &v
}

func formatProbability(p *float64) string {
	if p == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.3f", *p)
}

func formatOccupancy(o *gate.Occupancy) string {
	if o == nil {
		return "unknown"
	}
	return o.String()
}
