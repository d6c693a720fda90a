package models

// Wire records pushed to WebSocket subscribers and mirrored to NATS.
// One JSON record per message, discriminated by the "type" field.

// WireBlob is the compact blob representation on the wire
type WireBlob struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// WireEvent is the compact blob event representation on the wire
type WireEvent struct {
	Type      string `json:"type"`
	BlobID    int    `json:"blob_id"`
	Direction string `json:"direction,omitempty"`
}

// FrameRecord is the per-frame motion record for stream subscribers.
// Image carries a base64 JPEG only when the broadcaster re-encoded the
// frame; quiet frames omit it and clients keep showing the previous one.
type FrameRecord struct {
	Type      string      `json:"type"` // always "frame"
	CameraID  string      `json:"camera_id"`
	FrameNum  int64       `json:"frame_num"`
	Timestamp int64       `json:"timestamp"` // unix milliseconds
	MotionPct float64     `json:"motion_pct"`
	Blobs     []WireBlob  `json:"blobs"`
	Events    []WireEvent `json:"events,omitempty"`
	Image     string      `json:"image,omitempty"`
}

// WireTrack is the compact track representation on the wire
type WireTrack struct {
	ID          int     `json:"id"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	BBox        Rect    `json:"bbox"`
	State       string  `json:"state"`
	Direction   string  `json:"direction"`
	Zone        string  `json:"zone"`
	Description string  `json:"description,omitempty"`
}

// TrackUpdateRecord is the per-update track record for stream subscribers
type TrackUpdateRecord struct {
	Type        string      `json:"type"` // always "track_update"
	CameraID    string      `json:"camera_id"`
	FrameNum    int64       `json:"frame_num"`
	Timestamp   int64       `json:"timestamp"` // unix milliseconds
	Tracks      []WireTrack `json:"tracks"`
	Entries     []WireTrack `json:"entries,omitempty"`
	Exits       []WireTrack `json:"exits,omitempty"`
	TotalCount  int64       `json:"total_count"`
	ActiveCount int         `json:"active_count"`
}

// NewFrameRecord converts a FrameDelta to its wire form
func NewFrameRecord(d *FrameDelta) *FrameRecord {
	rec := &FrameRecord{
		Type:      "frame",
		CameraID:  d.CameraID,
		FrameNum:  d.FrameNum,
		Timestamp: d.Timestamp.UnixMilli(),
		MotionPct: d.MotionPct,
		Blobs:     make([]WireBlob, 0, len(d.Blobs)),
	}
	for _, b := range d.Blobs {
		rec.Blobs = append(rec.Blobs, WireBlob{ID: b.ID, X: b.X, Y: b.Y, W: b.W, H: b.H, VX: b.VX, VY: b.VY})
	}
	for _, e := range d.Events {
		rec.Events = append(rec.Events, WireEvent{Type: e.Type.String(), BlobID: e.BlobID, Direction: string(e.Direction)})
	}
	return rec
}

// NewTrackUpdateRecord converts a TrackUpdate to its wire form
func NewTrackUpdateRecord(u *TrackUpdate) *TrackUpdateRecord {
	rec := &TrackUpdateRecord{
		Type:        "track_update",
		CameraID:    u.CameraID,
		FrameNum:    u.FrameNum,
		Timestamp:   u.Timestamp.UnixMilli(),
		Tracks:      wireTracks(u.Tracks),
		Entries:     wireTracks(u.Entries),
		Exits:       wireTracks(u.Exits),
		TotalCount:  u.TotalCount,
		ActiveCount: u.ActiveCount,
	}
	return rec
}

func wireTracks(tracks []*Track) []WireTrack {
	if len(tracks) == 0 {
		return nil
	}
	out := make([]WireTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, WireTrack{
			ID:          t.ID,
			Label:       t.Label,
			Confidence:  t.Confidence,
			BBox:        t.BBox,
			State:       t.State.String(),
			Direction:   string(t.Direction),
			Zone:        t.Zone,
			Description: t.Description,
		})
	}
	return out
}
