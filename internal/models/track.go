package models

import (
	"fmt"
	"time"
)

// TrackState represents the lifecycle state of a semantic track
type TrackState string

const (
	TrackStateNew     TrackState = "new"
	TrackStateTracked TrackState = "tracked"
	TrackStateLost    TrackState = "lost"
	TrackStateGone    TrackState = "gone"
)

// String returns the string representation of TrackState
func (ts TrackState) String() string {
	return string(ts)
}

// Position is one sample of a track's center history
type Position struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"ts"`
}

// Track is a semantically identified object followed across frames
type Track struct {
	ID         int        `json:"id"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	BBox       Rect       `json:"bbox"`
	State      TrackState `json:"state"`

	FramesTracked int `json:"frames_tracked"`
	FramesLost    int `json:"frames_lost"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// Center history, newest last, bounded by the tracker
	Positions []Position `json:"-"`

	Direction Direction `json:"direction"`
	Zone      string    `json:"zone"`

	// Description from the vision-language backend, empty until filled
	Description string `json:"description,omitempty"`
}

// Summary returns a short human-readable line for logs and messaging payloads
func (t *Track) Summary() string {
	return fmt.Sprintf("%s #%d (%.0f%%) %s in %s", t.Label, t.ID, t.Confidence*100, t.Direction, t.Zone)
}

// ZoneFor names the 3x3 frame zone containing a normalized point
func ZoneFor(cx, cy float64) string {
	col := "center"
	if cx < 1.0/3 {
		col = "left"
	} else if cx > 2.0/3 {
		col = "right"
	}

	row := "middle"
	if cy < 1.0/3 {
		row = "top"
	} else if cy > 2.0/3 {
		row = "bottom"
	}

	return row + "-" + col
}

// TrackUpdate is the per-frame output of the semantic tracker
type TrackUpdate struct {
	CameraID    string    `json:"camera_id"`
	FrameNum    int64     `json:"frame_num"`
	Timestamp   time.Time `json:"timestamp"`
	Tracks      []*Track  `json:"tracks"`
	Entries     []*Track  `json:"entries"`
	Exits       []*Track  `json:"exits"`
	TotalCount  int64     `json:"total_count"`
	ActiveCount int       `json:"active_count"`
}
