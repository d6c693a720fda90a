package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/helpers"
	"argus-worker-go/internal/services/broadcast"
	"argus-worker-go/internal/services/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// StreamHandler serves the live stream over WebSocket plus frame snapshots
type StreamHandler struct {
	cfg         *config.Config
	pipe        *pipeline.Service
	broadcaster *broadcast.Service
	upgrader    websocket.Upgrader
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(cfg *config.Config, pipe *pipeline.Service, broadcaster *broadcast.Service) *StreamHandler {
	return &StreamHandler{
		cfg:         cfg,
		pipe:        pipe,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// @Summary Subscribe to the live stream over WebSocket
// @Description Upgrade to WebSocket and receive frame and track records as JSON text messages
// @Tags stream
// @Success 101 "switching protocols"
// @Router /stream/ws [get]
func (h *StreamHandler) Subscribe(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "broadcaster disabled"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sub, err := h.broadcaster.Hub().Subscribe()
	if err != nil {
		conn.Close()
		return
	}

	log.Info().Str("subscriber", sub.ID).Msg("Stream subscriber connected")

	done := make(chan struct{})
	go h.readPump(conn, done)
	go h.writePump(conn, sub, done)
}

// readPump discards client messages and detects disconnects
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes hub records and pings until the client goes away
func (h *StreamHandler) writePump(conn *websocket.Conn, sub *broadcast.Subscriber, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.broadcaster.Hub().Unsubscribe(sub.ID)
		conn.Close()
		sent, dropped := sub.Stats()
		log.Info().
			Str("subscriber", sub.ID).
			Uint64("sent", sent).
			Uint64("dropped", dropped).
			Msg("Stream subscriber disconnected")
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C():
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// @Summary Latest frame as JPEG
// @Description Get the most recent captured frame as a JPEG snapshot
// @Tags stream
// @Produce jpeg
// @Success 200 {string} binary "JPEG image"
// @Failure 404 {object} map[string]interface{}
// @Router /stream/frame [get]
func (h *StreamHandler) GetLatestFrame(c *gin.Context) {
	frame := h.pipe.Source().Buffer().Latest()
	if frame == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no frame captured yet"})
		return
	}

	jpeg, err := helpers.EncodeJPEG(frame, h.cfg.BroadcastJPEGQuality)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", jpeg)
}

// @Summary Per-subscriber delivery stats
// @Description Get sent and dropped counts for every stream subscriber
// @Tags stream
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /stream/stats [get]
func (h *StreamHandler) GetStreamStats(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "subscribers": []any{}})
		return
	}

	hub := h.broadcaster.Hub()
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"subscribers": hub.Stats(),
		"published":   hub.TotalPublished(),
		"frames_out":  h.broadcaster.FramesOut(),
		"timestamp":   time.Now().Unix(),
	})
}
