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

	"github.com/saaga0h/parking-edge/internal/monitor"
	"github.com/saaga0h/parking-edge/pkg/config"
	"github.com/saaga0h/parking-edge/pkg/health"
	"github.com/saaga0h/parking-edge/pkg/mqtt"
	"github.com/saaga0h/parking-edge/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.ServiceName = "monitor-agent"
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

	logger.Info("Starting parking monitor agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"namespace", cfg.TopicNamespace,
		"redis_enabled", cfg.EnableRedis,
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)

	var redisClient redis.Client
	if cfg.EnableRedis {
		redisClient = redis.NewClient(cfg, logger)
	}

	agent := monitor.NewAgent(mqttClient, redisClient, cfg, logger)

	healthChecker := health.NewChecker(mqttClient, redisClient, logger)
	healthServer := startHealthServer(cfg.HealthPort, healthChecker, logger)
	apiServer := startAPIServer(cfg.APIPort, monitor.NewAPI(agent.Store(), agent.Mirror(), logger), logger)

	agentErr := make(chan error, 1)
	agentDone := make(chan struct{})
	go func() {
		defer close(agentDone)
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
		exitCode = 1
	}

	// Graceful shutdown: the agent drains queued messages before returning
	logger.Info("Initiating graceful shutdown")
	cancel()
	<-agentDone

	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("Monitor agent shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	checker.Register(mux)
	return serve("health check", port, mux, logger)
}

func startAPIServer(port int, api *monitor.API, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	api.Register(mux)
	return serve("snapshot API", port, mux, logger)
}

func serve(name string, port int, handler http.Handler, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting "+name+" server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "server", name, "error", err)
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
