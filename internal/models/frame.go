package models

import (
	"time"
)

// Frame represents a decoded video frame from OpenCV
type Frame struct {
	CameraID  string
	Seq       int64
	Data      []byte // BGR24 pixel data
	Timestamp time.Time
	Width     int
	Height    int
	Format    string
}

// EventType represents the kind of blob-level motion event
type EventType string

const (
	EventEnter     EventType = "enter"
	EventExit      EventType = "exit"
	EventMove      EventType = "move"
	EventStop      EventType = "stop"
	EventAppear    EventType = "appear"
	EventDisappear EventType = "disappear"
)

// String returns the string representation of EventType
func (e EventType) String() string {
	return string(e)
}

// Direction represents coarse movement direction in the frame
type Direction string

const (
	DirectionLeft    Direction = "left"
	DirectionRight   Direction = "right"
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionToward  Direction = "toward"
	DirectionAway    Direction = "away"
	DirectionStatic  Direction = "static"
	DirectionUnknown Direction = "unknown"
)

// MotionBlob is a connected region of motion in normalized coordinates.
// Coordinates and velocity are fractions of frame width/height so downstream
// consumers never need the pixel resolution.
type MotionBlob struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	AreaPx float64 `json:"area_px"`
	AtEdge bool    `json:"at_edge"`
}

// Bounds returns the blob bounding box as a Rect
func (b MotionBlob) Bounds() Rect {
	return Rect{X: b.X, Y: b.Y, W: b.W, H: b.H}
}

// Center returns the normalized center of the blob
func (b MotionBlob) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Speed returns the velocity magnitude in normalized units per second
func (b MotionBlob) Speed() float64 {
	return hypot(b.VX, b.VY)
}

// BlobEvent is a lifecycle event synthesized by the blob tracker
type BlobEvent struct {
	Type      EventType `json:"type"`
	BlobID    int       `json:"blob_id"`
	Direction Direction `json:"direction,omitempty"`
	Zone      string    `json:"zone,omitempty"`
}

// FrameDelta is the complete motion analysis result for one frame
type FrameDelta struct {
	CameraID     string       `json:"camera_id"`
	FrameNum     int64        `json:"frame_num"`
	Timestamp    time.Time    `json:"timestamp"`
	MotionPct    float64      `json:"motion_pct"`
	CameraMotion bool         `json:"camera_motion"`
	Blobs        []MotionBlob `json:"blobs"`
	Events       []BlobEvent  `json:"events"`
}

// HasMotion reports whether the frame shows motion above the given percentage
func (d *FrameDelta) HasMotion(thresholdPct float64) bool {
	return d.MotionPct >= thresholdPct
}
