package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"argus-worker-go/docs"
	"argus-worker-go/internal/api"
	"argus-worker-go/internal/config"
	"argus-worker-go/internal/logging"
	"argus-worker-go/internal/services"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Optional Logdy web UI tee
	if cfg.LogdyEnabled {
		if writer, url, lerr := logging.StartLogdy(cfg); lerr == nil {
			log.Logger = log.Output(zerolog.MultiLevelWriter(
				zerolog.ConsoleWriter{Out: os.Stderr},
				writer,
			))
			log.Info().Str("url", url).Msg("Log tee to Logdy enabled")
		} else {
			log.Warn().Err(lerr).Msg("Failed to start Logdy, console logging only")
		}
	}

	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%d", cfg.SwaggerHost, cfg.SwaggerPort)

	log.Info().
		Str("worker_id", cfg.WorkerID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Str("stream_url", cfg.StreamURL).
		Str("detector", cfg.DetectorBackend).
		Bool("inference_enabled", cfg.InferenceEnabled).
		Int("port", cfg.Port).
		Msg("Starting Argus worker")

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}

	ctx, cancel := context.WithCancel(context.Background())
	container.Start(ctx)

	server := api.NewServer(cfg, container.Pipeline, container.Broadcaster, container.Gateway, container.Messaging)
	if err := server.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up API server")
	}
	go func() {
		if serr := server.Start(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Fatal().Err(serr).Msg("API server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// Stop intake first, then let downstream stages finish what they hold
		cancel()

		if err := server.Stop(); err != nil {
			log.Error().Err(err).Msg("API server forced to shutdown")
		}

		shCtx, shCancel := context.WithTimeout(context.Background(), cfg.NatsDrainTimeout)
		defer shCancel()
		if err := container.Shutdown(shCtx); err != nil {
			log.Error().Err(err).Msg("Service shutdown failed")
		}
	}()

	select {
	case <-shutdownDone:
		log.Info().Msg("Worker shutdown complete")
	case <-time.After(cfg.ShutdownTimeout):
		log.Error().Msg("Shutdown timeout exceeded, exiting")
	}
}
