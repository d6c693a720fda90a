package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Stream source
	// Default: camera index 0; RTSP URLs work as-is through FFmpeg
	StreamURL    string
	CameraID     string
	RTSPTimeout  time.Duration
	TargetFPS    int
	OutputWidth  int
	OutputHeight int

	// Capture recovery
	MaxConsecutiveErrors int
	ReconnectBackoffMin  time.Duration
	ReconnectBackoffMax  time.Duration
	ReconnectJitterPct   int

	// Frame ring buffer (most recent frames kept for analysis)
	FrameBufferSize int

	// Motion analysis
	MotionBlurKernel     int     // gaussian kernel size, odd
	MotionDiffThreshold  int     // 0-255 absdiff binarization threshold
	MotionMinContourArea float64 // px^2, contours below are noise
	MotionDilateIter     int
	MotionMergeGap       int     // px, contour rects closer than this merge into one blob
	MotionMaxBlobs       int     // keep N largest blobs
	MotionFirstFramePct  float64 // reported motion for the very first frame
	MotionErrorPct       float64 // reported motion for an undecodable frame
	CameraMotionPct      float64 // above this, treat as camera movement and suppress blobs
	EdgeMargin           float64 // normalized border band for enter/exit classification
	UseBackgroundSub     bool    // MOG2 background model instead of previous-frame diff

	// Blob tracking
	BlobMatchMaxCost    float64 // normalized displacement above which blobs never match
	BlobGraceFrames     int     // frames a missing blob survives before exit/disappear
	BlobMinVelocity     float64 // normalized units/sec below which a blob counts as static
	BlobVelocityHistory int     // samples in the per-blob speed window

	// Detection gate
	GateMotionThresholdPct float64
	GatePeriodicInterval   int // force a forward at least every N frames

	// Semantic tracking
	TrackActivationConfidence float64
	TrackMatchingIoU          float64
	TrackMinStableFrames      int
	TrackMaxLostFrames        int
	TrackPositionHistory      int
	TrackExitOnLost           bool // report exit when a track enters lost, not only on gone

	// Detector backend: "hog" (in-process) or "grpc" (remote)
	DetectorBackend       string
	DetectorGRPCURL       string
	DetectorTimeout       time.Duration
	DetectorMinConfidence float64

	// Inference gateway (vision-language descriptions)
	InferenceEnabled      bool
	InferenceURL          string
	InferenceModel        string
	InferenceWorkers      int
	InferenceQueueSize    int
	InferenceTimeout      time.Duration
	InferenceDrainGrace   time.Duration
	InferenceCacheSize    int
	InferenceHashDistance int // max hamming distance for a perceptual-hash cache hit
	InferenceJPEGQuality  int

	// Broadcast stream
	BroadcastFPS           int
	BroadcastJPEGQuality   int
	BroadcastQuietInterval int // re-encode every Nth frame even without motion
	SubscriberBuffer       int // per-subscriber send queue depth

	// NATS (for messaging and events)
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	NatsDrainTimeout   time.Duration
	TrackSubject       string
	MotionSubject      string

	// Swagger Configuration
	SwaggerHost string
	SwaggerPort int

	// Health Check
	HealthCheckInterval time.Duration
	FrameStaleThreshold time.Duration

	// Graceful Shutdown
	ShutdownTimeout   time.Duration
	PanicRestartDelay time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "worker-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy (lightweight web log viewer)
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Stream source
		StreamURL:    getEnv("STREAM_URL", "0"),
		CameraID:     getEnv("CAMERA_ID", "cam-0"),
		RTSPTimeout:  getEnvDuration("RTSP_TIMEOUT", 10*time.Second),
		TargetFPS:    getEnvInt("TARGET_FPS", 15),
		OutputWidth:  getEnvInt("OUTPUT_WIDTH", 1280),
		OutputHeight: getEnvInt("OUTPUT_HEIGHT", 720),

		// Capture recovery
		MaxConsecutiveErrors: getEnvInt("MAX_CONSECUTIVE_ERRORS", 10),
		ReconnectBackoffMin:  getEnvDuration("RECONNECT_BACKOFF_MIN", 1*time.Second),
		ReconnectBackoffMax:  getEnvDuration("RECONNECT_BACKOFF_MAX", 30*time.Second),
		ReconnectJitterPct:   getEnvInt("RECONNECT_JITTER_PCT", 20),

		// Frame ring buffer
		FrameBufferSize: getEnvInt("FRAME_BUFFER_SIZE", 30),

		// Motion analysis
		MotionBlurKernel:     getEnvInt("MOTION_BLUR_KERNEL", 5),
		MotionDiffThreshold:  getEnvInt("MOTION_DIFF_THRESHOLD", 20),
		MotionMinContourArea: getEnvFloat("MOTION_MIN_CONTOUR_AREA", 500),
		MotionDilateIter:     getEnvInt("MOTION_DILATE_ITER", 2),
		MotionMergeGap:       getEnvInt("MOTION_MERGE_GAP", 10),
		MotionMaxBlobs:       getEnvInt("MOTION_MAX_BLOBS", 20),
		MotionFirstFramePct:  getEnvFloat("MOTION_FIRST_FRAME_PCT", 100.0),
		MotionErrorPct:       getEnvFloat("MOTION_ERROR_PCT", 50.0),
		CameraMotionPct:      getEnvFloat("CAMERA_MOTION_PCT", 40.0),
		EdgeMargin:           getEnvFloat("EDGE_MARGIN", 0.1),
		UseBackgroundSub:     getEnvBool("USE_BACKGROUND_SUB", false),

		// Blob tracking
		BlobMatchMaxCost:    getEnvFloat("BLOB_MATCH_MAX_COST", 0.8),
		BlobGraceFrames:     getEnvInt("BLOB_GRACE_FRAMES", 3),
		BlobMinVelocity:     getEnvFloat("BLOB_MIN_VELOCITY", 0.008),
		BlobVelocityHistory: getEnvInt("BLOB_VELOCITY_HISTORY", 5),

		// Detection gate
		GateMotionThresholdPct: getEnvFloat("GATE_MOTION_THRESHOLD_PCT", 0.5),
		GatePeriodicInterval:   getEnvInt("GATE_PERIODIC_INTERVAL", 30),

		// Semantic tracking
		TrackActivationConfidence: getEnvFloat("TRACK_ACTIVATION_CONFIDENCE", 0.25),
		TrackMatchingIoU:          getEnvFloat("TRACK_MATCHING_IOU", 0.2),
		TrackMinStableFrames:      getEnvInt("TRACK_MIN_STABLE_FRAMES", 3),
		TrackMaxLostFrames:        getEnvInt("TRACK_MAX_LOST_FRAMES", 90),
		TrackPositionHistory:      getEnvInt("TRACK_POSITION_HISTORY", 30),
		TrackExitOnLost:           getEnvBool("TRACK_EXIT_ON_LOST", false),

		// Detector backend
		DetectorBackend:       getEnv("DETECTOR_BACKEND", "hog"),
		DetectorGRPCURL:       getEnv("DETECTOR_GRPC_URL", "localhost:50052"),
		DetectorTimeout:       getEnvDuration("DETECTOR_TIMEOUT", 2*time.Second),
		DetectorMinConfidence: getEnvFloat("DETECTOR_MIN_CONFIDENCE", 0.3),

		// Inference gateway
		InferenceEnabled:      getEnvBool("INFERENCE_ENABLED", false),
		InferenceURL:          getEnv("INFERENCE_URL", "http://localhost:11434"),
		InferenceModel:        getEnv("INFERENCE_MODEL", "moondream"),
		InferenceWorkers:      getEnvInt("INFERENCE_WORKERS", 2),
		InferenceQueueSize:    getEnvInt("INFERENCE_QUEUE_SIZE", 8),
		InferenceTimeout:      getEnvDuration("INFERENCE_TIMEOUT", 10*time.Second),
		InferenceDrainGrace:   getEnvDuration("INFERENCE_DRAIN_GRACE", 5*time.Second),
		InferenceCacheSize:    getEnvInt("INFERENCE_CACHE_SIZE", 128),
		InferenceHashDistance: getEnvInt("INFERENCE_HASH_DISTANCE", 8),
		InferenceJPEGQuality:  getEnvInt("INFERENCE_JPEG_QUALITY", 85),

		// Broadcast stream
		BroadcastFPS:           getEnvInt("BROADCAST_FPS", 15),
		BroadcastJPEGQuality:   getEnvInt("BROADCAST_JPEG_QUALITY", 60),
		BroadcastQuietInterval: getEnvInt("BROADCAST_QUIET_INTERVAL", 5),
		SubscriberBuffer:       getEnvInt("SUBSCRIBER_BUFFER", 8),

		// NATS (configured for Docker Compose setup)
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsDrainTimeout:   getEnvDuration("NATS_DRAIN_TIMEOUT", 5*time.Second),
		TrackSubject:       getEnv("TRACK_SUBJECT", "argus.tracks"),
		MotionSubject:      getEnv("MOTION_SUBJECT", "argus.motion"),

		// Swagger Configuration
		SwaggerHost: getEnv("SWAGGER_HOST", "localhost"),
		SwaggerPort: getEnvInt("SWAGGER_PORT", 8000),

		// Health Check
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		FrameStaleThreshold: getEnvDuration("FRAME_STALE_THRESHOLD", 10*time.Second),

		// Graceful Shutdown
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		PanicRestartDelay: getEnvDuration("PANIC_RESTART_DELAY", 2*time.Second),
	}
}

// Validate rejects threshold combinations that would silently break the
// pipeline. Called once at startup; failures are fatal.
func (c *Config) Validate() error {
	if c.MotionBlurKernel < 1 || c.MotionBlurKernel%2 == 0 {
		return fmt.Errorf("MOTION_BLUR_KERNEL must be a positive odd number, got %d", c.MotionBlurKernel)
	}
	if c.MotionDiffThreshold < 0 || c.MotionDiffThreshold > 255 {
		return fmt.Errorf("MOTION_DIFF_THRESHOLD must be in [0,255], got %d", c.MotionDiffThreshold)
	}
	if c.EdgeMargin < 0 || c.EdgeMargin >= 0.5 {
		return fmt.Errorf("EDGE_MARGIN must be in [0,0.5), got %v", c.EdgeMargin)
	}
	if c.CameraMotionPct <= 0 || c.CameraMotionPct > 100 {
		return fmt.Errorf("CAMERA_MOTION_PCT must be in (0,100], got %v", c.CameraMotionPct)
	}
	if c.GateMotionThresholdPct < 0 || c.GateMotionThresholdPct > 100 {
		return fmt.Errorf("GATE_MOTION_THRESHOLD_PCT must be in [0,100], got %v", c.GateMotionThresholdPct)
	}
	if c.GatePeriodicInterval < 1 {
		return fmt.Errorf("GATE_PERIODIC_INTERVAL must be >= 1, got %d", c.GatePeriodicInterval)
	}
	if c.TrackMatchingIoU <= 0 || c.TrackMatchingIoU >= 1 {
		return fmt.Errorf("TRACK_MATCHING_IOU must be in (0,1), got %v", c.TrackMatchingIoU)
	}
	if c.TrackActivationConfidence < 0 || c.TrackActivationConfidence > 1 {
		return fmt.Errorf("TRACK_ACTIVATION_CONFIDENCE must be in [0,1], got %v", c.TrackActivationConfidence)
	}
	if c.TrackMinStableFrames < 1 {
		return fmt.Errorf("TRACK_MIN_STABLE_FRAMES must be >= 1, got %d", c.TrackMinStableFrames)
	}
	if c.TrackMaxLostFrames < 1 {
		return fmt.Errorf("TRACK_MAX_LOST_FRAMES must be >= 1, got %d", c.TrackMaxLostFrames)
	}
	if c.FrameBufferSize < 1 {
		return fmt.Errorf("FRAME_BUFFER_SIZE must be >= 1, got %d", c.FrameBufferSize)
	}
	if c.TargetFPS < 1 {
		return fmt.Errorf("TARGET_FPS must be >= 1, got %d", c.TargetFPS)
	}
	if c.InferenceWorkers < 1 {
		return fmt.Errorf("INFERENCE_WORKERS must be >= 1, got %d", c.InferenceWorkers)
	}
	if c.InferenceQueueSize < 1 {
		return fmt.Errorf("INFERENCE_QUEUE_SIZE must be >= 1, got %d", c.InferenceQueueSize)
	}
	if c.InferenceCacheSize < 0 {
		return fmt.Errorf("INFERENCE_CACHE_SIZE must be >= 0, got %d", c.InferenceCacheSize)
	}
	switch c.DetectorBackend {
	case "hog", "grpc", "none":
	default:
		return fmt.Errorf("DETECTOR_BACKEND must be one of hog, grpc, none, got %q", c.DetectorBackend)
	}
	if c.BroadcastFPS < 1 {
		return fmt.Errorf("BROADCAST_FPS must be >= 1, got %d", c.BroadcastFPS)
	}
	if c.BroadcastJPEGQuality < 1 || c.BroadcastJPEGQuality > 100 {
		return fmt.Errorf("BROADCAST_JPEG_QUALITY must be in [1,100], got %d", c.BroadcastJPEGQuality)
	}
	if c.BroadcastQuietInterval < 1 {
		return fmt.Errorf("BROADCAST_QUIET_INTERVAL must be >= 1, got %d", c.BroadcastQuietInterval)
	}
	if c.ReconnectBackoffMin > c.ReconnectBackoffMax {
		return fmt.Errorf("RECONNECT_BACKOFF_MIN %v exceeds RECONNECT_BACKOFF_MAX %v", c.ReconnectBackoffMin, c.ReconnectBackoffMax)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	// Check for Docker-specific environment indicators
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
