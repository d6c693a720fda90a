package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"argus-worker-go/internal/services/pipeline"
)

// TracksHandler exposes the live track set and motion state
type TracksHandler struct {
	pipe *pipeline.Service
}

// NewTracksHandler creates a new tracks handler
func NewTracksHandler(pipe *pipeline.Service) *TracksHandler {
	return &TracksHandler{pipe: pipe}
}

// @Summary List live tracks
// @Description Get every track the worker currently follows
// @Tags tracks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /tracks [get]
func (h *TracksHandler) ListTracks(c *gin.Context) {
	tracks := h.pipe.Tracker().Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"tracks":    tracks,
		"count":     len(tracks),
		"timestamp": time.Now().Unix(),
	})
}

// @Summary Track counters
// @Description Get the monotonic entry total and the active track count
// @Tags tracks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /tracks/count [get]
func (h *TracksHandler) GetCounts(c *gin.Context) {
	tracker := h.pipe.Tracker()

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"total_count": tracker.TotalCount(),
		"active":      tracker.ActiveCount(),
		"timestamp":   time.Now().Unix(),
	})
}

// @Summary Latest motion delta
// @Description Get the most recent motion analysis result
// @Tags motion
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Success 204 "no frames analyzed yet"
// @Router /motion [get]
func (h *TracksHandler) GetMotion(c *gin.Context) {
	delta := h.pipe.LastDelta()
	if delta == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"motion":  delta,
		"gate":    h.pipe.GateStats(),
	})
}
