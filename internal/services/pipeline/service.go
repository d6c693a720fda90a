package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/helpers"
	"argus-worker-go/internal/logging"
	"argus-worker-go/internal/models"
	"argus-worker-go/internal/services/broadcast"
	"argus-worker-go/internal/services/capture"
	"argus-worker-go/internal/services/detector"
	"argus-worker-go/internal/services/inference"
	"argus-worker-go/internal/services/messaging"
	"argus-worker-go/internal/services/motion"
	"argus-worker-go/internal/services/tracking"
)

// Service is the analysis pipeline: capture -> motion -> gate -> detector
// -> tracker, with track updates fanned to NATS and the broadcaster and
// interesting frames handed to the inference gateway. The loop never waits
// on the detector longer than its timeout and never waits on inference at
// all, so frame cadence is bounded by capture alone.
type Service struct {
	cfg      *config.Config
	log      zerolog.Logger
	source   *capture.Service
	analyzer *motion.Analyzer
	gate     *motion.Gate
	tracker  *tracking.SemanticTracker
	det      detector.Detector

	gateway     *inference.Gateway
	msg         *messaging.Service
	broadcaster *broadcast.Service

	framesAnalyzed atomic.Int64
	detectorErrors atomic.Int64
	wasConnected   bool

	mu        sync.Mutex
	lastDelta *models.FrameDelta
}

// NewService wires the pipeline. gateway, msg and broadcaster may be nil
// when the corresponding feature is disabled.
func NewService(cfg *config.Config, det detector.Detector, gateway *inference.Gateway, msg *messaging.Service, broadcaster *broadcast.Service) *Service {
	return &Service{
		cfg:         cfg,
		log:         logging.WithCamera(logging.NewServiceLogger(cfg, "pipeline"), cfg.CameraID),
		source:      capture.NewService(cfg, "pipeline", cfg.TargetFPS),
		analyzer:    motion.NewAnalyzer(cfg),
		gate:        motion.NewGate(cfg.GateMotionThresholdPct, cfg.GatePeriodicInterval),
		tracker:     tracking.NewSemanticTracker(cfg),
		det:         det,
		gateway:     gateway,
		msg:         msg,
		broadcaster: broadcaster,
	}
}

// Source returns the pipeline's capture service
func (s *Service) Source() *capture.Service {
	return s.source
}

// Tracker returns the semantic tracker
func (s *Service) Tracker() *tracking.SemanticTracker {
	return s.tracker
}

// GateStats returns the detection gate counters
func (s *Service) GateStats() models.GateStats {
	return s.gate.Stats()
}

// FramesAnalyzed returns how many frames went through motion analysis
func (s *Service) FramesAnalyzed() int64 {
	return s.framesAnalyzed.Load()
}

// DetectorErrors returns how many detector passes failed
func (s *Service) DetectorErrors() int64 {
	return s.detectorErrors.Load()
}

// LastDelta returns the most recent frame delta
func (s *Service) LastDelta() *models.FrameDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDelta
}

// Run processes frames until the context is cancelled
func (s *Service) Run(ctx context.Context) error {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Pipeline capture loop panicked")
			}
		}()
		if err := s.source.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Pipeline capture loop exited")
		}
	}()

	if s.gateway != nil {
		go s.consumeInferenceResults(ctx)
	}

	s.log.Info().
		Str("detector", s.det.Name()).
		Bool("inference", s.gateway != nil).
		Bool("nats", s.msg != nil).
		Msg("Analysis pipeline started")

	for {
		select {
		case <-ctx.Done():
			s.analyzer.Close()
			s.log.Info().
				Int64("frames_analyzed", s.framesAnalyzed.Load()).
				Int64("tracks_total", s.tracker.TotalCount()).
				Msg("Analysis pipeline stopped")
			return ctx.Err()
		case frame := <-s.source.Frames():
			s.processFrame(ctx, frame)
		}
	}
}

// processFrame runs one frame through the full tier-1 and tier-2 path
func (s *Service) processFrame(ctx context.Context, frame *models.Frame) {
	// After a capture reconnect the previous-frame diff and the blob state
	// describe a stream that no longer exists
	connected := s.source.Connected()
	if connected && !s.wasConnected && s.framesAnalyzed.Load() > 0 {
		log.Info().Msg("Capture reconnected, resetting motion state")
		s.analyzer.Reset()
	}
	s.wasConnected = connected

	delta := s.analyzer.Analyze(frame)
	s.framesAnalyzed.Add(1)

	s.mu.Lock()
	s.lastDelta = delta
	s.mu.Unlock()

	if s.msg != nil && (delta.HasMotion(s.cfg.GateMotionThresholdPct) || len(delta.Events) > 0) {
		if err := s.msg.PublishMotion(delta); err != nil {
			log.Warn().Err(err).Msg("Failed to publish motion delta")
		}
	}

	decision := s.gate.Evaluate(delta.MotionPct, s.tracker.Uncorroborated())
	if !decision.Forward {
		return
	}
	log.Debug().
		Int64("frame_num", delta.FrameNum).
		Float64("motion_pct", delta.MotionPct).
		Str("reason", decision.Reason).
		Msg("Frame forwarded to detector")

	detCtx, cancel := context.WithTimeout(ctx, s.cfg.DetectorTimeout)
	detections, err := s.det.Detect(detCtx, frame)
	cancel()
	if err != nil {
		// A failed pass says nothing about the scene; leave track state
		// untouched rather than aging everything toward lost
		s.detectorErrors.Add(1)
		log.Warn().
			Int64("frame_num", delta.FrameNum).
			Err(err).
			Msg("Detector pass failed, keeping track state")
		return
	}

	update := s.tracker.Update(frame.CameraID, delta.FrameNum, detections, frame.Timestamp)
	s.publishUpdate(update)
	s.maybeSubmitInference(frame, delta, update)
}

// publishUpdate fans a track update to NATS and stream subscribers
func (s *Service) publishUpdate(update *models.TrackUpdate) {
	if s.msg != nil {
		if err := s.msg.PublishTrackUpdate(update); err != nil {
			log.Warn().Err(err).Msg("Failed to publish track update")
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.PublishTrackUpdate(update)
	}
}

// maybeSubmitInference hands a frame to the description gateway when the
// scene is worth describing. Rejections are expected under load.
func (s *Service) maybeSubmitInference(frame *models.Frame, delta *models.FrameDelta, update *models.TrackUpdate) {
	if s.gateway == nil {
		return
	}
	if len(update.Entries) == 0 && !delta.HasMotion(s.cfg.GateMotionThresholdPct) {
		return
	}

	jpeg, err := helpers.EncodeJPEG(frame, s.cfg.InferenceJPEGQuality)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode frame for inference")
		return
	}
	hash, err := helpers.DHash(frame)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to hash frame for inference")
		return
	}

	req := &models.InferenceRequest{
		CameraID:  frame.CameraID,
		FrameNum:  delta.FrameNum,
		Timestamp: frame.Timestamp,
		JPEG:      jpeg,
		Hash:      hash,
		Context:   s.sceneContext(delta, update),
	}
	if err := s.gateway.Submit(req); err != nil {
		if errors.Is(err, models.ErrQueueFull) {
			log.Debug().Int64("frame_num", delta.FrameNum).Msg("Inference queue full, frame skipped")
		} else {
			log.Warn().Err(err).Msg("Failed to submit inference request")
		}
	}
}

// sceneContext summarizes the scene for the vision-language prompt
func (s *Service) sceneContext(delta *models.FrameDelta, update *models.TrackUpdate) string {
	parts := []string{
		fmt.Sprintf("motion %.1f%%", delta.MotionPct),
		fmt.Sprintf("%d active tracks", update.ActiveCount),
	}
	for _, t := range update.Entries {
		parts = append(parts, "new "+t.Summary())
	}
	return strings.Join(parts, "; ")
}

// consumeInferenceResults attaches descriptions to live tracks as the
// gateway produces them
func (s *Service) consumeInferenceResults(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Inference result consumer panicked")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-s.gateway.Results():
			if !ok {
				return
			}
			s.applyDescription(result)
		}
	}
}

// applyDescription pins a description to the most confident live track
func (s *Service) applyDescription(result *models.InferenceResult) {
	log.Debug().
		Int64("frame_num", result.FrameNum).
		Bool("cached", result.Cached).
		Bool("timed_out", result.TimedOut).
		Bool("arrived_late", result.ArrivedLate).
		Dur("elapsed", result.Elapsed).
		Msg("Inference result received")

	best := -1
	bestConf := 0.0
	for _, t := range s.tracker.Snapshot() {
		if t.State != models.TrackStateTracked {
			continue
		}
		if best == -1 || t.Confidence > bestConf {
			best = t.ID
			bestConf = t.Confidence
		}
	}
	if best == -1 {
		return
	}
	s.tracker.SetDescription(best, result.Description)
}
