package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/saaga0h/parking-edge/internal/protocol"
	"github.com/saaga0h/parking-edge/pkg/mqtt"
)

// DefaultQueueSize is the inbound queue capacity
const DefaultQueueSize = 1024

// Sink receives every decoded message after it has been applied to the store
type Sink interface {
	Apply(ctx context.Context, msg protocol.Message) error
}

type inbound struct {
	topic   string
	payload string
}

// Listener subscribes to the namespace and feeds a single consumer
// goroutine through a bounded queue. When the queue is full the oldest
// queued message is dropped to make room.
type Listener struct {
	client mqtt.Client
	topic  string
	store  *Store
	sinks  []Sink
	logger *slog.Logger

	queue chan inbound
	done  chan struct{}

	mu       sync.RWMutex
	started  bool
	closed   bool
	stopOnce sync.Once

	received atomic.Uint64
	dropped  atomic.Uint64
}

// NewListener creates a listener for every topic under namespace
func NewListener(client mqtt.Client, namespace string, store *Store, queueSize int, logger *slog.Logger, sinks ...Sink) *Listener {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Listener{
		client: client,
		topic:  mqtt.WildcardTopic(namespace),
		store:  store,
		sinks:  sinks,
		logger: logger,
		queue:  make(chan inbound, queueSize),
		done:   make(chan struct{}),
	}
}

// Start subscribes and launches the consumer. Sinks see ctx's values but
// not its cancellation, so queued messages still reach them during Stop.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return fmt.Errorf("listener already started")
	}
	l.started = true
	l.mu.Unlock()

	go l.consume(context.WithoutCancel(ctx))

	if err := l.client.Subscribe(l.topic, 0, l.handleMessage); err != nil {
		l.shutdown()
		return fmt.Errorf("failed to subscribe to %s: %w", l.topic, err)
	}

	l.logger.Info("Listening for parking events", "topic", l.topic, "queue_size", cap(l.queue))
	return nil
}

// Stop unsubscribes, stops accepting messages and waits until every queued
// message has been applied. Safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		if err := l.client.Unsubscribe(l.topic); err != nil {
			l.logger.Warn("Failed to unsubscribe", "topic", l.topic, "error", err)
		}
		l.shutdown()

		l.logger.Info("Listener stopped",
			"received", l.received.Load(),
			"dropped", l.dropped.Load(),
			"applied", l.store.Applied())
	})
	<-l.doneIfStarted()
}

func (l *Listener) doneIfStarted() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.started {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.done
}

func (l *Listener) shutdown() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	started := l.started
	l.mu.Unlock()

	if started {
		<-l.done
	}
}

// Dropped returns how many messages were evicted from a full queue
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *Listener) handleMessage(msg mqtt.Message) {
	l.enqueue(inbound{topic: msg.Topic(), payload: string(msg.Payload())})
}

func (l *Listener) enqueue(in inbound) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return
	}
	l.received.Add(1)

	for {
		select {
		case l.queue <- in:
			return
		default:
		}

		select {
		case old := <-l.queue:
			l.dropped.Add(1)
			l.logger.Warn("Listener queue full, dropping oldest message", "topic", old.topic)
		default:
		}
	}
}

func (l *Listener) consume(ctx context.Context) {
	defer close(l.done)

	for in := range l.queue {
		msg := protocol.Decode(in.topic, in.payload)
		if msg.Kind == protocol.KindRaw {
			l.logger.Debug("Unrecognised message", "topic", in.topic, "payload", in.payload)
		} else if msg.Lenient {
			l.logger.Debug("Decoded message leniently", "topic", in.topic, "kind", msg.Kind.String())
		}

		l.store.Apply(msg)

		for _, sink := range l.sinks {
			if err := sink.Apply(ctx, msg); err != nil {
				l.logger.Warn("Sink failed", "slot", msg.SlotID, "kind", msg.Kind.String(), "error", err)
			}
		}
	}
}
