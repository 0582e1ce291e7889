package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signbridge/signbridge/internal/api"
	"github.com/signbridge/signbridge/internal/bridge"
	"github.com/signbridge/signbridge/internal/calendar"
	"github.com/signbridge/signbridge/internal/config"
	"github.com/signbridge/signbridge/internal/notify"
	"github.com/signbridge/signbridge/internal/state"
	"github.com/signbridge/signbridge/internal/stream"
	"github.com/signbridge/signbridge/internal/transport"
)

func main() {
	startedAt := time.Now()

	configPath := os.Getenv("SIGN_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := initLogger(cfg.Logging)
	logger.Info("Starting sign bridge",
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"broker", cfg.MQTT.BrokerURL(),
		"state_topic", cfg.MQTT.StateTopic,
	)

	validator, err := state.NewValidator()
	if err != nil {
		log.Fatalf("Failed to build state validator: %v", err)
	}

	store := state.NewStore()
	normalizer := state.NewNormalizer(cfg.Display.Timezone)

	// Transport and the shared accept path
	mqttClient := transport.NewClient(cfg.MQTT, logger)
	pipeline := bridge.NewPipeline(mqttClient, store, normalizer, logger)

	fanout := notify.NewFanout(cfg.Notify, logger)
	ring := bridge.NewRingAdapter(fanout, logger)
	mqttClient.SetRingHandler(ring.Handle)
	mqttClient.SetConnectHook(pipeline.AnnounceOnline)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initial connect retries inside paho; don't hold up the adapters.
	go func() {
		if err := mqttClient.Connect(); err != nil {
			logger.Error("MQTT connect failed", "error", err)
		}
	}()
	defer mqttClient.Close()

	// Streaming subscription adapter
	subscriber := stream.NewSubscriber(cfg.Stream, pipeline, validator, logger)
	go func() {
		if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Stream subscriber error", "error", err)
		}
	}()

	// Synthetic ticker adapter
	ticker := bridge.NewTicker(pipeline, cfg.Ticker.GetInterval(), logger)
	go func() {
		if err := ticker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Ticker error", "error", err)
		}
	}()

	// HTTP surface
	router := api.NewRouter(api.RouterDeps{
		SharedSecret: cfg.Server.SharedSecret,
		Validator:    validator,
		Pipeline:     pipeline,
		Store:        store,
		Transport:    mqttClient,
		Calendar:     calendar.NewClient(cfg.Calendar, logger),
		Logger:       logger,
		StartedAt:    startedAt,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down bridge...")

	// Cancel the main context to signal all adapters to stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Bridge stopped gracefully")
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
