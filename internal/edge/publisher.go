package edge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/saaga0h/parking-edge/internal/gate"
	"github.com/saaga0h/parking-edge/internal/protocol"
	"github.com/saaga0h/parking-edge/pkg/mqtt"
)

var (
	// ErrTransportUnavailable covers broker send failures
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrSerialization covers events that cannot be encoded
	ErrSerialization = errors.New("serialization failed")
	// ErrQueueFull is returned when the async queue has no room
	ErrQueueFull = errors.New("publish queue full")
)

// PublishError reports a failed publish. errors.Is matches both the
// category sentinel and the underlying cause.
type PublishError struct {
	Kind  error
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("publish %s: %v", e.Topic, e.Kind)
	}
	return fmt.Sprintf("publish %s: %v: %v", e.Topic, e.Kind, e.Err)
}

func (e *PublishError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Publisher hands gate events to the transport
type Publisher interface {
	Publish(ev gate.Event) error
}

// MQTTPublisher encodes events with the wire protocol and publishes them
// at QoS 0. Delivery is best effort; there is no retry.
type MQTTPublisher struct {
	client       mqtt.Client
	namespace    string
	publishState bool
	logger       *slog.Logger
}

// NewMQTTPublisher creates a publisher. With publishState set, every
// confirmed change is followed by a raw snapshot on the slot's state topic.
func NewMQTTPublisher(client mqtt.Client, namespace string, publishState bool, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:       client,
		namespace:    namespace,
		publishState: publishState,
		logger:       logger,
	}
}

// Publish sends one event
func (p *MQTTPublisher) Publish(ev gate.Event) error {
	out, err := protocol.EncodeEvent(p.namespace, ev)
	if err != nil {
		return &PublishError{Kind: ErrSerialization, Topic: ev.SlotID, Err: err}
	}

	if err := p.send(out); err != nil {
		return err
	}

	if ev.Kind == gate.EventChange && p.publishState {
		if err := p.send(protocol.EncodeState(p.namespace, ev.SlotID, ev.State)); err != nil {
			return err
		}
	}

	p.logger.Debug("Published gate event", "slot", ev.SlotID, "kind", ev.Kind.String(), "topic", out.Topic)
	return nil
}

// PublishMetrics sends the transmission summary
func (p *MQTTPublisher) PublishMetrics(m gate.Metrics) error {
	return p.send(protocol.EncodeMetrics(p.namespace, m))
}

func (p *MQTTPublisher) send(out protocol.Outbound) error {
	if err := p.client.Publish(out.Topic, 0, false, out.Payload); err != nil {
		return &PublishError{Kind: ErrTransportUnavailable, Topic: out.Topic, Err: err}
	}
	return nil
}

// PublishStats counts AsyncPublisher outcomes
type PublishStats struct {
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

// AsyncPublisher decouples gates from the transport: Publish only enqueues,
// and a single goroutine drains the bounded queue into the wrapped
// publisher. When the queue is full the new event is dropped and
// ErrQueueFull returned.
type AsyncPublisher struct {
	next   Publisher
	queue  chan gate.Event
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewAsyncPublisher starts the sender goroutine
func NewAsyncPublisher(next Publisher, size int, logger *slog.Logger) *AsyncPublisher {
	if size <= 0 {
		size = 1
	}
	a := &AsyncPublisher{
		next:   next,
		queue:  make(chan gate.Event, size),
		done:   make(chan struct{}),
		logger: logger,
	}
	go a.loop()
	return a
}

// Publish enqueues ev without waiting for the transport
func (a *AsyncPublisher) Publish(ev gate.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return &PublishError{Kind: ErrTransportUnavailable, Topic: ev.SlotID, Err: errors.New("publisher closed")}
	}

	select {
	case a.queue <- ev:
		return nil
	default:
		a.dropped.Add(1)
		return &PublishError{Kind: ErrQueueFull, Topic: ev.SlotID}
	}
}

// Close stops accepting events and waits until queued ones are sent
func (a *AsyncPublisher) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	<-a.done
}

// Stats returns counters so far
func (a *AsyncPublisher) Stats() PublishStats {
	return PublishStats{
		Sent:    a.sent.Load(),
		Failed:  a.failed.Load(),
		Dropped: a.dropped.Load(),
	}
}

func (a *AsyncPublisher) loop() {
	defer close(a.done)

	for ev := range a.queue {
		if err := a.next.Publish(ev); err != nil {
			a.failed.Add(1)
			a.logger.Warn("Failed to publish gate event",
				"slot", ev.SlotID,
				"kind", ev.Kind.String(),
				"error", err)
			continue
		}
		a.sent.Add(1)
	}
}
