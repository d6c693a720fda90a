package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"argus-worker-go/internal/api/handlers"
	"argus-worker-go/internal/config"
	"argus-worker-go/internal/services/broadcast"
	"argus-worker-go/internal/services/inference"
	"argus-worker-go/internal/services/messaging"
	"argus-worker-go/internal/services/pipeline"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	healthHandler *handlers.HealthHandler
	tracksHandler *handlers.TracksHandler
	statsHandler  *handlers.StatsHandler
	streamHandler *handlers.StreamHandler
}

func NewServer(cfg *config.Config, pipe *pipeline.Service, broadcaster *broadcast.Service, gateway *inference.Gateway, msg *messaging.Service) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		config:        cfg,
		router:        router,
		healthHandler: handlers.NewHealthHandler(cfg, pipe, msg),
		tracksHandler: handlers.NewTracksHandler(pipe),
		statsHandler:  handlers.NewStatsHandler(cfg, pipe, broadcaster, gateway, msg),
		streamHandler: handlers.NewStreamHandler(cfg, pipe, broadcaster),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting Argus worker API")
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	log.Info().Msg("Stopping Argus worker API")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) GetServer() *http.Server {
	return s.server
}
