package edge

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/saaga0h/parking-edge/internal/features"
	"github.com/saaga0h/parking-edge/internal/gate"
	"github.com/saaga0h/parking-edge/internal/predictor"
	"golang.org/x/sync/errgroup"
)

// Recorder receives every transmitted event, e.g. the CBOR journal
type Recorder interface {
	Append(ev gate.Event) error
}

// RunConfig holds the gating parameters for a run
type RunConfig struct {
	OccupancyThresholdMM float64
	DecisionThreshold    float64
	// SendInterval paces consecutive samples of a slot; zero disables pacing
	SendInterval time.Duration
}

// Runner feeds samples through one gate per slot. Each slot is processed
// by its own goroutine in timestamp order; slots run concurrently.
type Runner struct {
	cfg       RunConfig
	predictor predictor.Predictor
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
}

// NewRunner creates a runner. recorder may be nil.
func NewRunner(cfg RunConfig, p predictor.Predictor, pub Publisher, recorder Recorder, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		predictor: p,
		publisher: pub,
		recorder:  recorder,
		logger:    logger,
	}
}

// Run processes all samples and returns the final state of every slot.
// It returns only after every slot worker has finished, so the result is
// safe to hand to gate.Finalize.
func (r *Runner) Run(ctx context.Context, samples []features.Sample) (map[string]gate.SlotState, error) {
	groups := features.GroupBySlot(samples)

	var mu sync.Mutex
	states := make(map[string]gate.SlotState, len(groups))

	g, ctx := errgroup.WithContext(ctx)
	for slotID, slotSamples := range groups {
		g.Go(func() error {
			state, err := r.runSlot(ctx, slotID, slotSamples)

			mu.Lock()
			states[slotID] = state
			mu.Unlock()

			return err
		})
	}

	err := g.Wait()
	return states, err
}

func (r *Runner) runSlot(ctx context.Context, slotID string, samples []features.Sample) (gate.SlotState, error) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	g := gate.New(slotID, r.cfg.DecisionThreshold)
	logger := r.logger.With("slot", slotID)
	logger.Info("Starting slot gating", "samples", len(samples))

	var ticker *time.Ticker
	if r.cfg.SendInterval > 0 {
		ticker = time.NewTicker(r.cfg.SendInterval)
		defer ticker.Stop()
	}

	for i, sample := range samples {
		if i > 0 && ticker != nil {
			select {
			case <-ctx.Done():
				return g.State(), ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return g.State(), err
		}

		occ := r.occupancy(g, sample, logger)
		prob := r.predictor.Predict(sample.Vector)

		ev, ok, err := g.Process(occ, prob, sample.Timestamp)
		if err != nil {
			if errors.Is(err, gate.ErrOutOfOrder) {
				logger.Warn("Skipping out-of-order sample", "error", err)
				continue
			}
			return g.State(), err
		}
		if !ok {
			continue
		}

		r.emit(ev, logger)
	}

	state := g.State()
	logger.Info("Slot gating complete",
		"traditional", state.TradTxCount,
		"edge", state.EdgeTxCount)
	return state, nil
}

// occupancy derives the flag for a sample. A NaN distance on a seeded
// slot holds the previous occupancy.
func (r *Runner) occupancy(g *gate.Gate, sample features.Sample, logger *slog.Logger) gate.Occupancy {
	if !gate.ValidDistance(sample.RawDistance) {
		if last, seeded := g.LastOccupancy(); seeded {
			logger.Debug("Invalid distance, holding occupancy", "timestamp", sample.Timestamp, "occupancy", last.String())
			return last
		}
	}
	return gate.DetermineOccupancy(sample.RawDistance, r.cfg.OccupancyThresholdMM)
}

// emit hands an event to the publisher and recorder. Failures are logged
// and never stop the gate.
func (r *Runner) emit(ev gate.Event, logger *slog.Logger) {
	switch ev.Kind {
	case gate.EventChange:
		logger.Info("TX change", "state", ev.State.String(), "timestamp", ev.Timestamp)
	case gate.EventPredictedChange:
		logger.Info("TX predicted change", "probability", ev.Probability, "timestamp", ev.Timestamp)
	}

	if err := r.publisher.Publish(ev); err != nil {
		logger.Warn("Publish failed, gate state advanced", "kind", ev.Kind.String(), "error", err)
	}

	if r.recorder != nil {
		if err := r.recorder.Append(ev); err != nil {
			logger.Warn("Failed to journal event", "error", err)
		}
	}
}
