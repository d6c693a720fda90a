package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/services/broadcast"
	"argus-worker-go/internal/services/inference"
	"argus-worker-go/internal/services/messaging"
	"argus-worker-go/internal/services/pipeline"
)

// StatsHandler aggregates counters from every pipeline stage
type StatsHandler struct {
	cfg         *config.Config
	pipe        *pipeline.Service
	broadcaster *broadcast.Service
	gateway     *inference.Gateway
	msg         *messaging.Service
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(cfg *config.Config, pipe *pipeline.Service, broadcaster *broadcast.Service, gateway *inference.Gateway, msg *messaging.Service) *StatsHandler {
	return &StatsHandler{
		cfg:         cfg,
		pipe:        pipe,
		broadcaster: broadcaster,
		gateway:     gateway,
		msg:         msg,
	}
}

// @Summary Get system stats
// @Description Get pipeline, gateway and runtime statistics
// @Tags system
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	source := h.pipe.Source()
	tracker := h.pipe.Tracker()

	stats := gin.H{
		"worker_id": h.cfg.WorkerID,
		"capture": gin.H{
			"connected":   source.Connected(),
			"frames":      source.FrameCount(),
			"read_errors": source.ErrorCount(),
			"ring":        source.Buffer().Stats(),
		},
		"pipeline": gin.H{
			"frames_analyzed": h.pipe.FramesAnalyzed(),
			"detector_errors": h.pipe.DetectorErrors(),
			"gate":            h.pipe.GateStats(),
		},
		"tracking": gin.H{
			"total_count": tracker.TotalCount(),
			"active":      tracker.ActiveCount(),
		},
		"runtime": gin.H{
			"memory_mb":  m.Alloc / 1024 / 1024,
			"cpu_cores":  runtime.NumCPU(),
			"goroutines": runtime.NumGoroutine(),
			"go_version": runtime.Version(),
		},
	}

	if h.gateway != nil {
		stats["inference"] = h.gateway.Stats()
	}
	if h.broadcaster != nil {
		stats["broadcast"] = gin.H{
			"frames_out":  h.broadcaster.FramesOut(),
			"subscribers": h.broadcaster.Hub().SubscriberCount(),
			"published":   h.broadcaster.Hub().TotalPublished(),
		}
	}
	if h.msg != nil {
		stats["nats_connected"] = h.msg.IsConnected()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"stats":     stats,
		"timestamp": time.Now().Unix(),
	})
}

// @Summary Get debug info
// @Description Get debug information for troubleshooting
// @Tags system
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/debug [get]
func (h *StatsHandler) GetDebugInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"debug": gin.H{
			"worker_id":  h.cfg.WorkerID,
			"stream_url": h.cfg.StreamURL,
			"detector":   h.cfg.DetectorBackend,
			"endpoints":  []string{"/health", "/tracks", "/motion", "/stream", "/system"},
			"components": []string{"capture", "motion", "gate", "tracker", "inference", "broadcast"},
		},
		"timestamp": time.Now().Unix(),
	})
}
