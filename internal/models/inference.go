package models

import (
	"time"
)

// Detection is a single labelled box from a detector backend,
// bbox in normalized coordinates
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       Rect    `json:"bbox"`
}

// InferenceRequest is one frame submitted to the inference gateway
type InferenceRequest struct {
	CameraID   string
	FrameNum   int64
	Timestamp  time.Time
	JPEG       []byte
	Hash       uint64 // perceptual hash for the description cache
	Context    string // track/motion summary given to the backend as extra context
	EnqueuedAt time.Time
}

// InferenceResult is the gateway's answer for a submitted frame.
// TimedOut results carry a neutral description so downstream consumers
// never have to special-case a missing answer.
type InferenceResult struct {
	CameraID    string        `json:"camera_id"`
	FrameNum    int64         `json:"frame_num"`
	Description string        `json:"description"`
	TimedOut    bool          `json:"timed_out"`
	ArrivedLate bool          `json:"arrived_late"`
	Cached      bool          `json:"cached"`
	Elapsed     time.Duration `json:"-"`
}

// GatewayStats exposes inference gateway counters through the stats API
type GatewayStats struct {
	Submitted   int64 `json:"submitted"`
	Completed   int64 `json:"completed"`
	TimedOut    int64 `json:"timed_out"`
	ArrivedLate int64 `json:"arrived_late"`
	CacheHits   int64 `json:"cache_hits"`
	Rejected    int64 `json:"rejected"`
	InFlight    int64 `json:"in_flight"`
}

// GateStats exposes detection gate counters through the stats API
type GateStats struct {
	Skipped   int64 `json:"skipped"`
	Forwarded int64 `json:"forwarded"`
	Forced    int64 `json:"forced"`
}
