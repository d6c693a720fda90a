package broadcast

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/helpers"
	"argus-worker-go/internal/models"
	"argus-worker-go/internal/services/capture"
	"argus-worker-go/internal/services/motion"
)

// Motion above this percentage forces a fresh JPEG for subscribers
const encodeMotionPct = 1.0

// Service is the live stream broadcaster. It runs its own capture and
// motion analysis, fully separate from the analysis pipeline, so stream
// cadence survives any amount of detector or inference latency. The only
// pipeline input is PublishTrackUpdate, which is non-blocking.
type Service struct {
	cfg      *config.Config
	hub      *Hub
	source   *capture.Service
	analyzer *motion.Analyzer

	quietFrames int
	framesOut   atomic.Int64
}

// NewService creates a broadcaster with its own capture loop
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:      cfg,
		hub:      NewHub(cfg.SubscriberBuffer),
		source:   capture.NewService(cfg, "broadcast", cfg.BroadcastFPS),
		analyzer: motion.NewAnalyzer(cfg),
	}
}

// Hub returns the subscriber hub for the WebSocket endpoint
func (s *Service) Hub() *Hub {
	return s.hub
}

// FramesOut returns how many frame records have been published
func (s *Service) FramesOut() int64 {
	return s.framesOut.Load()
}

// Run captures, analyzes and publishes until the context is cancelled
func (s *Service) Run(ctx context.Context) error {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Broadcast capture loop panicked")
			}
		}()
		if err := s.source.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Broadcast capture loop exited")
		}
	}()

	log.Info().
		Int("target_fps", s.cfg.BroadcastFPS).
		Int("jpeg_quality", s.cfg.BroadcastJPEGQuality).
		Msg("Broadcaster started")

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case frame := <-s.source.Frames():
			s.publishFrame(frame)
		}
	}
}

// publishFrame analyzes one frame and pushes its wire record
func (s *Service) publishFrame(frame *models.Frame) {
	delta := s.analyzer.Analyze(frame)
	rec := models.NewFrameRecord(delta)

	// Delta-mode encoding: spend JPEG cycles on moving frames, and on
	// every Nth quiet frame so late joiners still get a picture
	encode := false
	if delta.MotionPct >= encodeMotionPct {
		s.quietFrames = 0
		encode = true
	} else {
		s.quietFrames++
		if s.quietFrames%s.cfg.BroadcastQuietInterval == 0 {
			encode = true
		}
	}

	if encode {
		jpeg, err := helpers.EncodeJPEG(frame, s.cfg.BroadcastJPEGQuality)
		if err != nil {
			log.Warn().Err(err).Int64("seq", frame.Seq).Msg("Failed to encode broadcast frame")
		} else {
			rec.Image = base64.StdEncoding.EncodeToString(jpeg)
		}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal frame record")
		return
	}

	s.hub.Publish(payload)
	s.framesOut.Add(1)
}

// PublishTrackUpdate mirrors a pipeline track update to stream subscribers
func (s *Service) PublishTrackUpdate(update *models.TrackUpdate) {
	payload, err := json.Marshal(models.NewTrackUpdateRecord(update))
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal track update record")
		return
	}
	s.hub.Publish(payload)
}

func (s *Service) shutdown() {
	s.hub.Close()
	s.analyzer.Close()
	log.Info().Int64("frames_out", s.framesOut.Load()).Msg("Broadcaster stopped")
}
