package tracking

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

// SemanticTracker follows detector output across frames through the
// new -> tracked -> lost -> gone lifecycle. Association is IoU above the
// matching threshold, ties broken by center distance. Entries are counted
// exactly once, on the new -> tracked promotion, so flicker never inflates
// the total.
type SemanticTracker struct {
	activation float64
	matchIoU   float64
	minStable  int
	maxLost    int
	posHistory int
	exitOnLost bool

	mu         sync.Mutex
	nextID     int
	totalCount int64
	tracks     map[int]*trackEntry
}

type trackEntry struct {
	track    *models.Track
	areaHist []float64
	exited   bool
}

// NewSemanticTracker creates a tracker from the configured thresholds
func NewSemanticTracker(cfg *config.Config) *SemanticTracker {
	return &SemanticTracker{
		activation: cfg.TrackActivationConfidence,
		matchIoU:   cfg.TrackMatchingIoU,
		minStable:  cfg.TrackMinStableFrames,
		maxLost:    cfg.TrackMaxLostFrames,
		posHistory: cfg.TrackPositionHistory,
		exitOnLost: cfg.TrackExitOnLost,
		nextID:     1,
		tracks:     make(map[int]*trackEntry),
	}
}

type pair struct {
	id     int
	det    int
	iou    float64
	center float64
}

// Update associates one detector pass with the live track set and returns
// the resulting update. cameraID and frameNum tag the update for the wire.
func (st *SemanticTracker) Update(cameraID string, frameNum int64, detections []models.Detection, ts time.Time) *models.TrackUpdate {
	st.mu.Lock()
	defer st.mu.Unlock()

	update := &models.TrackUpdate{
		CameraID:  cameraID,
		FrameNum:  frameNum,
		Timestamp: ts,
	}

	pairs := make([]pair, 0, len(st.tracks)*len(detections))
	for id, te := range st.tracks {
		for i := range detections {
			iou := te.track.BBox.IoU(detections[i].BBox)
			if iou >= st.matchIoU {
				pairs = append(pairs, pair{
					id:     id,
					det:    i,
					iou:    iou,
					center: te.track.BBox.CenterDistance(detections[i].BBox),
				})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].iou != pairs[j].iou {
			return pairs[i].iou > pairs[j].iou
		}
		return pairs[i].center < pairs[j].center
	})

	matchedID := make(map[int]bool, len(st.tracks))
	matchedDet := make(map[int]bool, len(detections))

	for _, p := range pairs {
		if matchedID[p.id] || matchedDet[p.det] {
			continue
		}
		matchedID[p.id] = true
		matchedDet[p.det] = true
		st.applyMatch(st.tracks[p.id], detections[p.det], ts, update)
	}

	// Unmatched detections above the activation bar spawn new tracks
	for i := range detections {
		if matchedDet[i] {
			continue
		}
		det := detections[i]
		if det.Confidence < st.activation {
			continue
		}
		st.spawn(det, ts)
	}

	// Unmatched tracks age through lost toward gone
	for id, te := range st.tracks {
		if matchedID[id] || te.track.LastSeen.Equal(ts) {
			continue
		}
		st.age(id, te, update)
	}

	update.TotalCount = st.totalCount
	for _, te := range st.tracks {
		update.Tracks = append(update.Tracks, te.track)
		if te.track.State == models.TrackStateTracked {
			update.ActiveCount++
		}
	}
	return update
}

// applyMatch folds a detection into an existing track
func (st *SemanticTracker) applyMatch(te *trackEntry, det models.Detection, ts time.Time, update *models.TrackUpdate) {
	t := te.track
	wasLost := t.State == models.TrackStateLost

	t.BBox = det.BBox
	t.Label = det.Label
	t.Confidence = det.Confidence
	t.LastSeen = ts
	t.FramesTracked++
	t.FramesLost = 0

	cx, cy := det.BBox.Center()
	t.Positions = append(t.Positions, models.Position{X: cx, Y: cy, Timestamp: ts})
	if len(t.Positions) > st.posHistory {
		t.Positions = t.Positions[1:]
	}
	te.areaHist = append(te.areaHist, det.BBox.Area())
	if len(te.areaHist) > st.posHistory {
		te.areaHist = te.areaHist[1:]
	}

	t.Zone = models.ZoneFor(cx, cy)
	t.Direction = classifyDirection(t.Positions, te.areaHist)

	switch {
	case t.State == models.TrackStateNew && t.FramesTracked >= st.minStable:
		t.State = models.TrackStateTracked
		st.totalCount++
		te.exited = false
		update.Entries = append(update.Entries, t)
		log.Info().
			Int("track_id", t.ID).
			Str("label", t.Label).
			Str("zone", t.Zone).
			Msg("Track confirmed")
	case wasLost:
		// Re-acquired within the lost window: same identity, no new entry
		t.State = models.TrackStateTracked
		log.Debug().Int("track_id", t.ID).Msg("Track re-acquired")
	}
}

// spawn creates a tentative track from an unmatched detection
func (st *SemanticTracker) spawn(det models.Detection, ts time.Time) {
	cx, cy := det.BBox.Center()
	t := &models.Track{
		ID:            st.nextID,
		Label:         det.Label,
		Confidence:    det.Confidence,
		BBox:          det.BBox,
		State:         models.TrackStateNew,
		FramesTracked: 1,
		FirstSeen:     ts,
		LastSeen:      ts,
		Positions:     []models.Position{{X: cx, Y: cy, Timestamp: ts}},
		Zone:          models.ZoneFor(cx, cy),
		Direction:     models.DirectionUnknown,
	}
	st.nextID++
	st.tracks[t.ID] = &trackEntry{track: t, areaHist: []float64{det.BBox.Area()}}
}

// age advances an unmatched track toward gone
func (st *SemanticTracker) age(id int, te *trackEntry, update *models.TrackUpdate) {
	t := te.track

	switch t.State {
	case models.TrackStateNew:
		// Never confirmed: drop silently, it was never counted
		delete(st.tracks, id)
		return
	case models.TrackStateTracked:
		t.State = models.TrackStateLost
		t.FramesLost = 1
		if st.exitOnLost && !te.exited {
			te.exited = true
			update.Exits = append(update.Exits, t)
		}
		return
	case models.TrackStateLost:
		t.FramesLost++
		if t.FramesLost > st.maxLost {
			t.State = models.TrackStateGone
			if !te.exited {
				te.exited = true
				update.Exits = append(update.Exits, t)
			}
			log.Info().
				Int("track_id", t.ID).
				Str("label", t.Label).
				Int("frames_lost", t.FramesLost).
				Msg("Track gone")
			delete(st.tracks, id)
		}
	}
}

// Uncorroborated reports whether any confirmed track is currently lost,
// i.e. waiting for the detector to confirm it again
func (st *SemanticTracker) Uncorroborated() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, te := range st.tracks {
		if te.track.State == models.TrackStateLost {
			return true
		}
	}
	return false
}

// SetDescription attaches an inference description to a live track
func (st *SemanticTracker) SetDescription(trackID int, description string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	te, ok := st.tracks[trackID]
	if !ok {
		return false
	}
	te.track.Description = description
	return true
}

// Snapshot returns copies of the live tracks for the API
func (st *SemanticTracker) Snapshot() []models.Track {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]models.Track, 0, len(st.tracks))
	for _, te := range st.tracks {
		out = append(out, *te.track)
	}
	return out
}

// TotalCount returns the monotonic count of confirmed tracks
func (st *SemanticTracker) TotalCount() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.totalCount
}

// ActiveCount returns the number of currently confirmed tracks
func (st *SemanticTracker) ActiveCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for _, te := range st.tracks {
		if te.track.State == models.TrackStateTracked {
			n++
		}
	}
	return n
}
