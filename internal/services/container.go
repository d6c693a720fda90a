package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/services/broadcast"
	"argus-worker-go/internal/services/detector"
	"argus-worker-go/internal/services/inference"
	"argus-worker-go/internal/services/messaging"
	"argus-worker-go/internal/services/pipeline"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config      *config.Config
	Detector    detector.Detector
	Gateway     *inference.Gateway
	Messaging   *messaging.Service
	Broadcaster *broadcast.Service
	Pipeline    *pipeline.Service
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	det, err := detector.New(cfg)
	if err != nil {
		return nil, err
	}

	var gateway *inference.Gateway
	if cfg.InferenceEnabled {
		gateway = inference.NewGateway(cfg, inference.NewHTTPBackend(cfg))
	}

	// The worker is useful without NATS; publishing just stays off
	msg, err := messaging.NewService(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, continuing without event publishing")
		msg = nil
	}

	broadcaster := broadcast.NewService(cfg)
	pipe := pipeline.NewService(cfg, det, gateway, msg, broadcaster)

	return &ServiceContainer{
		Config:      cfg,
		Detector:    det,
		Gateway:     gateway,
		Messaging:   msg,
		Broadcaster: broadcaster,
		Pipeline:    pipe,
	}, nil
}

// Start launches the background loops. They stop when ctx is cancelled.
func (sc *ServiceContainer) Start(ctx context.Context) {
	if sc.Gateway != nil {
		sc.Gateway.Start(ctx)
	}
	go func() {
		if err := sc.Broadcaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Broadcaster exited")
		}
	}()
	go func() {
		if err := sc.Pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Pipeline exited")
		}
	}()
}

// Shutdown gracefully shuts down all services. The capture contexts must be
// cancelled before calling this so no new work arrives while draining.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	if sc.Gateway != nil {
		sc.Gateway.Drain(sc.Config.InferenceDrainGrace)
	}

	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			return err
		}
	}

	if sc.Detector != nil {
		if err := sc.Detector.Close(); err != nil {
			log.Warn().Err(err).Msg("Detector close failed")
		}
	}

	return nil
}
