package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Load()
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"even blur kernel", func(c *Config) { c.MotionBlurKernel = 4 }},
		{"negative diff threshold", func(c *Config) { c.MotionDiffThreshold = -1 }},
		{"diff threshold above 255", func(c *Config) { c.MotionDiffThreshold = 300 }},
		{"edge margin half frame", func(c *Config) { c.EdgeMargin = 0.5 }},
		{"negative edge margin", func(c *Config) { c.EdgeMargin = -0.1 }},
		{"camera motion pct zero", func(c *Config) { c.CameraMotionPct = 0 }},
		{"gate threshold above 100", func(c *Config) { c.GateMotionThresholdPct = 101 }},
		{"gate interval zero", func(c *Config) { c.GatePeriodicInterval = 0 }},
		{"matching iou zero", func(c *Config) { c.TrackMatchingIoU = 0 }},
		{"matching iou one", func(c *Config) { c.TrackMatchingIoU = 1 }},
		{"activation confidence above one", func(c *Config) { c.TrackActivationConfidence = 1.5 }},
		{"min stable frames zero", func(c *Config) { c.TrackMinStableFrames = 0 }},
		{"max lost frames zero", func(c *Config) { c.TrackMaxLostFrames = 0 }},
		{"frame buffer zero", func(c *Config) { c.FrameBufferSize = 0 }},
		{"target fps zero", func(c *Config) { c.TargetFPS = 0 }},
		{"no inference workers", func(c *Config) { c.InferenceWorkers = 0 }},
		{"zero inference queue", func(c *Config) { c.InferenceQueueSize = 0 }},
		{"unknown detector backend", func(c *Config) { c.DetectorBackend = "yolo" }},
		{"broadcast fps zero", func(c *Config) { c.BroadcastFPS = 0 }},
		{"jpeg quality above 100", func(c *Config) { c.BroadcastJPEGQuality = 101 }},
		{"broadcast quiet interval zero", func(c *Config) { c.BroadcastQuietInterval = 0 }},
		{"inverted backoff window", func(c *Config) { c.ReconnectBackoffMin = c.ReconnectBackoffMax * 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAllowsDetectorNone(t *testing.T) {
	cfg := validConfig()
	cfg.DetectorBackend = "none"
	assert.NoError(t, cfg.Validate())
}
