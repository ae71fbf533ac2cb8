package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaga0h/parking-edge/internal/edge"
	"github.com/saaga0h/parking-edge/internal/features"
	"github.com/saaga0h/parking-edge/internal/predictor"
	"github.com/saaga0h/parking-edge/pkg/config"
	"github.com/saaga0h/parking-edge/pkg/health"
	"github.com/saaga0h/parking-edge/pkg/mqtt"
)

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.ServiceName = "edge-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting parking edge agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"features", cfg.FeaturesPath,
		"model", cfg.ModelPath,
		"occupancy_threshold_mm", cfg.OccupancyThresholdMM,
		"decision_threshold", cfg.DecisionThreshold,
		"log_level", cfg.LogLevel)

	schema := features.DefaultSchema()
	if err := schema.Require(cfg.DistanceFeature); err != nil {
		logger.Error("Invalid distance feature", "error", err)
		os.Exit(1)
	}

	model, err := predictor.LoadLogistic(cfg.ModelPath, schema)
	if err != nil {
		logger.Error("Failed to load classifier", "path", cfg.ModelPath, "error", err)
		os.Exit(1)
	}
	logger.Info("Classifier loaded", "name", model.Name())

	source := features.NewCSVSource(cfg.FeaturesPath, schema, cfg.DistanceFeature, cfg.DefaultSlot, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
			cancel()
		case <-ctx.Done():
		}
	}()

	mqttClient := mqtt.NewClient(cfg, logger)
	agent := edge.NewAgent(mqttClient, source, model, cfg, logger)

	healthChecker := health.NewChecker(mqttClient, nil, logger)
	httpServer := startHealthServer(cfg.HealthPort, healthChecker, logger)

	exitCode := 0
	if _, err := agent.Run(ctx); err != nil {
		logger.Error("Edge agent failed", "error", err)
		exitCode = 1
	}

	agent.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("Edge agent shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	checker.Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
