package edge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/saaga0h/parking-edge/internal/features"
	"github.com/saaga0h/parking-edge/internal/gate"
	"github.com/saaga0h/parking-edge/internal/journal"
	"github.com/saaga0h/parking-edge/internal/predictor"
	"github.com/saaga0h/parking-edge/pkg/config"
	"github.com/saaga0h/parking-edge/pkg/mqtt"
)

// Agent runs one gating pass over a feature source and publishes the
// resulting event stream and transmission metrics.
type Agent struct {
	mqtt      mqtt.Client
	source    features.Source
	predictor predictor.Predictor
	cfg       *config.Config
	logger    *slog.Logger
	runID     string
}

// NewAgent creates a new edge agent with the given dependencies
func NewAgent(mqttClient mqtt.Client, source features.Source, p predictor.Predictor, cfg *config.Config, logger *slog.Logger) *Agent {
	runID := uuid.NewString()
	return &Agent{
		mqtt:      mqttClient,
		source:    source,
		predictor: p,
		cfg:       cfg,
		logger:    logger.With("run_id", runID),
		runID:     runID,
	}
}

// RunID identifies this agent's run in logs and the journal
func (a *Agent) RunID() string {
	return a.runID
}

// Run connects to the broker, gates every sample and publishes the final
// metrics. A broker connection failure is returned before any sample is
// processed.
func (a *Agent) Run(ctx context.Context) (gate.Metrics, error) {
	a.logger.Info("Starting edge agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress(),
		"namespace", a.cfg.TopicNamespace)

	if err := a.mqtt.Connect(ctx); err != nil {
		return gate.Metrics{}, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	samples, err := a.source.Load(ctx)
	if err != nil {
		return gate.Metrics{}, fmt.Errorf("failed to load samples: %w", err)
	}

	var recorder Recorder
	if a.cfg.JournalPath != "" {
		w, err := journal.Create(a.cfg.JournalPath, a.runID)
		if err != nil {
			return gate.Metrics{}, err
		}
		defer w.Close()
		recorder = w
	}

	mqttPub := NewMQTTPublisher(a.mqtt, a.cfg.TopicNamespace, a.cfg.PublishStateOnChange, a.logger)
	async := NewAsyncPublisher(mqttPub, a.cfg.PublishQueueSize, a.logger)

	runner := NewRunner(RunConfig{
		OccupancyThresholdMM: a.cfg.OccupancyThresholdMM,
		DecisionThreshold:    a.cfg.DecisionThreshold,
		SendInterval:         a.cfg.SendInterval(),
	}, a.predictor, async, recorder, a.logger)

	states, runErr := runner.Run(ctx, samples)

	// Drain queued events before the summary so it arrives last
	async.Close()
	stats := async.Stats()

	metrics := gate.Finalize(states)
	a.logSlotMetrics(states)
	a.logger.Info("Simulation complete",
		"traditional", metrics.Traditional,
		"edge", metrics.EdgeAI,
		"reduction_pct", fmt.Sprintf("%.2f", metrics.ReductionPct),
		"sent", stats.Sent,
		"failed", stats.Failed,
		"dropped", stats.Dropped)

	if runErr != nil {
		return metrics, fmt.Errorf("gating interrupted: %w", runErr)
	}

	if err := mqttPub.PublishMetrics(metrics); err != nil {
		a.logger.Error("Failed to publish metrics", "error", err)
	}

	return metrics, nil
}

// Stop disconnects from the broker
func (a *Agent) Stop() {
	a.logger.Info("Stopping edge agent")
	a.mqtt.Disconnect()
}

func (a *Agent) logSlotMetrics(states map[string]gate.SlotState) {
	perSlot := gate.FinalizePerSlot(states)

	ids := make([]string, 0, len(perSlot))
	for id := range perSlot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := perSlot[id]
		a.logger.Info("Slot metrics",
			"slot", id,
			"traditional", m.Traditional,
			"edge", m.EdgeAI,
			"reduction_pct", fmt.Sprintf("%.2f", m.ReductionPct))
	}
}
