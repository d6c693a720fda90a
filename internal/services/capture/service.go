package capture

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

// Service pulls frames from one video source into a ring buffer and a
// bounded channel. Each Service owns its own OpenCV capture; independent
// consumers (analysis pipeline, broadcaster) each run their own Service
// so one slow consumer can never stall another.
type Service struct {
	cfg      *config.Config
	name     string
	buffer   *FrameBuffer
	frames   chan *models.Frame
	targetNS int64

	frameCount atomic.Int64
	errorCount atomic.Int64
	lastFrame  atomic.Int64 // unix nano of the last good frame
	connected  atomic.Bool
}

// NewService creates a capture service for the configured stream source.
// The name tags log lines so parallel capture loops stay distinguishable.
func NewService(cfg *config.Config, name string, targetFPS int) *Service {
	if targetFPS <= 0 {
		targetFPS = cfg.TargetFPS
	}
	return &Service{
		cfg:      cfg,
		name:     name,
		buffer:   NewFrameBuffer(cfg.FrameBufferSize),
		frames:   make(chan *models.Frame, cfg.FrameBufferSize),
		targetNS: int64(time.Second) / int64(targetFPS),
	}
}

// Frames returns the channel of captured frames. The channel never blocks
// the capture loop: when full, the oldest waiting frame is dropped.
func (s *Service) Frames() <-chan *models.Frame {
	return s.frames
}

// Buffer returns the ring of most recent frames
func (s *Service) Buffer() *FrameBuffer {
	return s.buffer
}

// Connected reports whether the capture session is currently open
func (s *Service) Connected() bool {
	return s.connected.Load()
}

// LastFrameTime returns when the last good frame arrived
func (s *Service) LastFrameTime() time.Time {
	ns := s.lastFrame.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// FrameCount returns the total number of frames captured
func (s *Service) FrameCount() int64 {
	return s.frameCount.Load()
}

// ErrorCount returns the total number of read failures
func (s *Service) ErrorCount() int64 {
	return s.errorCount.Load()
}

// Run captures frames until the context is cancelled, reconnecting with
// jittered exponential backoff when the source drops.
func (s *Service) Run(ctx context.Context) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := s.captureSession(ctx)
		s.connected.Store(false)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		delay := s.backoffDelay(attempt)
		log.Warn().
			Str("capture", s.name).
			Str("url", s.cfg.StreamURL).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Err(err).
			Msg("Capture session ended, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// captureSession opens the source and reads frames until cancellation or
// an unrecoverable error. Returns nil only on context cancellation.
func (s *Service) captureSession(ctx context.Context) error {
	configureFFmpegOptions()

	cap, err := s.openCapture()
	if err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("%w: %v", models.ErrCaptureFailed, err)
	}
	defer cap.Close()

	s.configureCaptureProperties(cap)

	if !cap.IsOpened() {
		s.errorCount.Add(1)
		return fmt.Errorf("%w: source %s not opened", models.ErrCaptureFailed, s.cfg.StreamURL)
	}

	log.Info().
		Str("capture", s.name).
		Str("url", s.cfg.StreamURL).
		Float64("source_fps", cap.Get(gocv.VideoCaptureFPS)).
		Float64("source_width", cap.Get(gocv.VideoCaptureFrameWidth)).
		Float64("source_height", cap.Get(gocv.VideoCaptureFrameHeight)).
		Msg("Capture session opened")
	s.connected.Store(true)

	img := gocv.NewMat()
	defer img.Close()

	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("capture", s.name).Msg("Stopping capture reader due to context cancel")
			return nil
		default:
		}

		if ok := cap.Read(&img); !ok || img.Empty() {
			consecutiveErrors++
			s.errorCount.Add(1)
			log.Warn().
				Str("capture", s.name).
				Int("consecutive_errors", consecutiveErrors).
				Msg("Failed to read frame from capture")

			if consecutiveErrors >= s.cfg.MaxConsecutiveErrors {
				if s.resetCapture(&cap) {
					consecutiveErrors = 0
					continue
				}
				return fmt.Errorf("%w: decoder reset failed after %d consecutive errors",
					models.ErrCaptureFailed, consecutiveErrors)
			}

			// Progressive delay based on error count
			delay := time.Duration(consecutiveErrors*50) * time.Millisecond
			if delay > 2*time.Second {
				delay = 2 * time.Second
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		consecutiveErrors = 0
		s.publishFrame(&img)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.targetNS)):
		}
	}
}

// publishFrame resizes, copies out and fans the frame to the ring and channel
func (s *Service) publishFrame(img *gocv.Mat) {
	processed := gocv.NewMat()
	if img.Cols() != s.cfg.OutputWidth || img.Rows() != s.cfg.OutputHeight {
		gocv.Resize(*img, &processed, image.Pt(s.cfg.OutputWidth, s.cfg.OutputHeight), 0, 0, gocv.InterpolationLinear)
	} else {
		processed = img.Clone()
	}
	data := processed.ToBytes()
	processed.Close()

	frame := &models.Frame{
		CameraID:  s.cfg.CameraID,
		Data:      data,
		Timestamp: time.Now(),
		Width:     s.cfg.OutputWidth,
		Height:    s.cfg.OutputHeight,
		Format:    "BGR24",
	}

	s.buffer.Push(frame)
	s.frameCount.Add(1)
	s.lastFrame.Store(frame.Timestamp.UnixNano())

	select {
	case s.frames <- frame:
	default:
		// Channel full: drop one waiting frame, then send current
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- frame:
		default:
			log.Debug().Str("capture", s.name).Int64("seq", frame.Seq).Msg("Skipped frame - buffer full")
		}
	}
}

// openCapture handles webcam indexes and RTSP/file URLs
func (s *Service) openCapture() (*gocv.VideoCapture, error) {
	if idx, err := strconv.Atoi(s.cfg.StreamURL); err == nil {
		return gocv.OpenVideoCapture(idx)
	}
	return gocv.OpenVideoCaptureWithAPI(s.cfg.StreamURL, gocv.VideoCaptureFFmpeg)
}

func (s *Service) configureCaptureProperties(cap *gocv.VideoCapture) {
	cap.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.OutputWidth))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.OutputHeight))

	// Minimal internal buffering keeps latency low; the ring handles history
	cap.Set(gocv.VideoCaptureBufferSize, 1)
}

// resetCapture recreates the VideoCapture when the decoder wedges
func (s *Service) resetCapture(cap **gocv.VideoCapture) bool {
	log.Info().
		Str("capture", s.name).
		Str("url", s.cfg.StreamURL).
		Msg("Resetting capture due to consecutive errors")

	if *cap != nil {
		(*cap).Close()
		*cap = nil
	}

	time.Sleep(500 * time.Millisecond)
	configureRecoveryFFmpegOptions()

	newCap, err := s.openCapture()
	if err != nil {
		log.Error().Str("capture", s.name).Err(err).Msg("Failed to reset capture")
		return false
	}

	s.configureCaptureProperties(newCap)
	if !newCap.IsOpened() {
		newCap.Close()
		log.Error().Str("capture", s.name).Msg("Reset capture is not opened")
		return false
	}

	// Test read a few frames to ensure the decoder recovered
	testImg := gocv.NewMat()
	defer testImg.Close()

	ok := false
	for i := 0; i < 3; i++ {
		if newCap.Read(&testImg) && !testImg.Empty() {
			ok = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !ok {
		newCap.Close()
		log.Error().Str("capture", s.name).Msg("Reset capture failed test reads")
		return false
	}

	*cap = newCap
	log.Info().Str("capture", s.name).Msg("Capture reset successful")
	return true
}

// backoffDelay calculates jittered exponential backoff delay
func (s *Service) backoffDelay(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt))) * time.Second

	if baseDelay < s.cfg.ReconnectBackoffMin {
		baseDelay = s.cfg.ReconnectBackoffMin
	}
	if baseDelay > s.cfg.ReconnectBackoffMax {
		baseDelay = s.cfg.ReconnectBackoffMax
	}

	jitterPct := float64(s.cfg.ReconnectJitterPct) / 100.0
	jitter := time.Duration(float64(baseDelay) * jitterPct * (rand.Float64()*2 - 1))

	return baseDelay + jitter
}

// configureFFmpegOptions sets FFmpeg options for the OpenCV capture backend
func configureFFmpegOptions() {
	ffmpegOptions := map[string]string{
		"rtsp_transport":        "tcp",     // TCP for more reliable connection
		"buffer_size":           "2097152", // 2MB buffer - smaller for real-time
		"max_delay":             "500000",  // 0.5s max delay
		"stimeout":              "5000000", // 5s timeout
		"rw_timeout":            "5000000", // 5s read/write timeout
		"threads":               "1",
		"thread_type":           "slice",
		"flags":                 "low_delay",
		"fflags":                "nobuffer+flush_packets",
		"sync":                  "ext",
		"drop_pkts_on_overflow": "1",
		"max_error_rate":        "0.1",
		"skip_frame":            "default",
		"skip_loop_filter":      "none",
		"analyzeduration":       "500000",
		"probesize":             "2000000",
		"err_detect":            "careful",
		"allowed_media_types":   "video",
		"reconnect":             "1",
		"reconnect_at_eof":      "1",
		"reconnect_streamed":    "1",
		"reconnect_delay_max":   "2",
	}
	setFFmpegEnv(ffmpegOptions)
}

// configureRecoveryFFmpegOptions sets more conservative options for recovery
func configureRecoveryFFmpegOptions() {
	recoveryOptions := map[string]string{
		"rtsp_transport":      "tcp",
		"buffer_size":         "5000000",
		"probesize":           "5000000",
		"stimeout":            "5000000",
		"fflags":              "nobuffer",
		"flags":               "low_delay",
		"max_delay":           "3000000",
		"analyzeduration":     "500000",
		"err_detect":          "careful",
		"reconnect":           "1",
		"reconnect_streamed":  "1",
		"reconnect_delay_max": "1",
		"threads":             "1",
		"thread_type":         "slice",
	}
	setFFmpegEnv(recoveryOptions)
}

func setFFmpegEnv(options map[string]string) {
	parts := make([]string, 0, len(options))
	for key, value := range options {
		parts = append(parts, key+";"+value)
	}
	os.Setenv("OPENCV_FFMPEG_CAPTURE_OPTIONS", strings.Join(parts, "|"))
}
