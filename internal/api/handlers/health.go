package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/services/messaging"
	"argus-worker-go/internal/services/pipeline"
)

type HealthHandler struct {
	cfg  *config.Config
	pipe *pipeline.Service
	msg  *messaging.Service
}

func NewHealthHandler(cfg *config.Config, pipe *pipeline.Service, msg *messaging.Service) *HealthHandler {
	return &HealthHandler{cfg: cfg, pipe: pipe, msg: msg}
}

type HealthResponse struct {
	Status           string `json:"status" example:"healthy"`
	WorkerID         string `json:"worker_id" example:"worker-1"`
	CaptureConnected bool   `json:"capture_connected"`
	LastFrameAgeMs   int64  `json:"last_frame_age_ms"`
	NatsConnected    bool   `json:"nats_connected"`
}

type WorkerInfoResponse struct {
	WorkerID     string   `json:"worker_id" example:"worker-1"`
	Status       string   `json:"status" example:"running"`
	Version      string   `json:"version" example:"1.0.0"`
	Capabilities []string `json:"capabilities"`
}

// @Summary Health check
// @Description Check capture liveness and downstream connectivity
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		WorkerID: h.cfg.WorkerID,
	}

	source := h.pipe.Source()
	resp.CaptureConnected = source.Connected()

	last := source.LastFrameTime()
	if !last.IsZero() {
		resp.LastFrameAgeMs = time.Since(last).Milliseconds()
	}

	if h.msg != nil {
		resp.NatsConnected = h.msg.IsConnected()
	}

	// Stale frames mean the worker is up but the stream is not
	status := http.StatusOK
	if !resp.CaptureConnected || last.IsZero() || time.Since(last) > h.cfg.FrameStaleThreshold {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

// @Summary Worker information
// @Description Get basic worker information and capabilities
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} WorkerInfoResponse
// @Router / [get]
func (h *HealthHandler) WorkerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, WorkerInfoResponse{
		WorkerID: h.cfg.WorkerID,
		Status:   "running",
		Version:  h.cfg.Version,
		Capabilities: []string{
			"motion_analysis",
			"object_tracking",
			"scene_description",
			"live_streaming",
		},
	})
}
