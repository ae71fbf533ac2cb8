package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saaga0h/parking-edge/internal/journal"
	"github.com/saaga0h/parking-edge/pkg/config"
	"github.com/saaga0h/parking-edge/pkg/mqtt"
	"github.com/saaga0h/parking-edge/pkg/redis"
)

// Agent consumes the parking event stream into a Store and optionally
// mirrors it to Redis
type Agent struct {
	mqtt   mqtt.Client
	redis  redis.Client
	cfg    *config.Config
	logger *slog.Logger
	store  *Store
	mirror *RedisMirror

	mu       sync.Mutex
	listener *Listener
}

// NewAgent creates a monitor agent. redisClient may be nil to disable the mirror.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, cfg *config.Config, logger *slog.Logger) *Agent {
	a := &Agent{
		mqtt:   mqttClient,
		redis:  redisClient,
		cfg:    cfg,
		logger: logger,
		store:  NewStore(cfg.HistorySize),
	}
	if redisClient != nil {
		a.mirror = NewRedisMirror(redisClient, cfg.HistorySize, cfg.RedisTTL, logger)
	}
	return a
}

// Store returns the agent's aggregation state
func (a *Agent) Store() *Store {
	return a.store
}

// Mirror returns the Redis mirror, or nil when Redis is disabled
func (a *Agent) Mirror() *RedisMirror {
	return a.mirror
}

// Start connects, subscribes and processes messages until ctx is cancelled,
// then drains the queue before returning
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting monitor agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress(),
		"namespace", a.cfg.TopicNamespace,
		"redis_mirror", a.redis != nil)

	if a.cfg.ReplayJournal != "" {
		entries, err := journal.ReadFile(a.cfg.ReplayJournal)
		if err != nil && len(entries) == 0 {
			return fmt.Errorf("failed to replay journal: %w", err)
		}
		if err != nil {
			a.logger.Warn("Journal truncated, replaying readable entries", "error", err)
		}
		applied, skipped := Replay(a.store, a.cfg.TopicNamespace, entries)
		if skipped > 0 {
			a.logger.Warn("Skipped journal entries that cannot be encoded",
				"path", a.cfg.ReplayJournal, "skipped", skipped)
		}
		a.logger.Info("Replayed journal", "path", a.cfg.ReplayJournal, "events", applied)
	}

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	var sinks []Sink
	if a.mirror != nil {
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		sinks = append(sinks, a.mirror)
	}

	listener := NewListener(a.mqtt, a.cfg.TopicNamespace, a.store, a.cfg.ListenerQueueSize, a.logger, sinks...)
	a.mu.Lock()
	a.listener = listener
	a.mu.Unlock()

	if err := listener.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("Monitor agent started successfully")

	<-ctx.Done()
	listener.Stop()
	return nil
}

// Stop drains the listener and disconnects from MQTT and Redis
func (a *Agent) Stop() error {
	a.logger.Info("Stopping monitor agent")

	a.mu.Lock()
	listener := a.listener
	a.mu.Unlock()
	if listener != nil {
		listener.Stop()
	}

	a.mqtt.Disconnect()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	return nil
}
