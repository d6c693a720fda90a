package motion

import (
	"math"
	"sort"
	"time"

	"argus-worker-go/internal/models"
)

// BlobTracker follows motion blobs across frames by center displacement and
// synthesizes lifecycle events. Pure bookkeeping, no OpenCV involved.
type BlobTracker struct {
	maxCost     float64 // normalized displacement above which blobs never match
	graceFrames int     // missed frames a blob survives before exit
	edgeMargin  float64
	minVelocity float64 // below this average speed a blob counts as static
	historySize int

	nextID int
	blobs  map[int]*trackedBlob
}

type trackedBlob struct {
	blob      models.MotionBlob
	lastSeen  time.Time
	missing   int
	moving    bool
	speedHist []float64
}

// NewBlobTracker creates a blob tracker
func NewBlobTracker(maxCost float64, graceFrames int, edgeMargin, minVelocity float64, historySize int) *BlobTracker {
	if historySize < 1 {
		historySize = 5
	}
	return &BlobTracker{
		maxCost:     maxCost,
		graceFrames: graceFrames,
		edgeMargin:  edgeMargin,
		minVelocity: minVelocity,
		historySize: historySize,
		nextID:      1,
		blobs:       make(map[int]*trackedBlob),
	}
}

// candidate is one possible existing-to-detected pairing
type candidate struct {
	id   int
	det  int
	cost float64
}

// Update matches detected blobs against tracked ones and returns the blobs
// with stable IDs and velocities plus the events of this frame. Matching is
// greedy over all candidate pairs sorted by displacement, smallest first,
// so the globally closest pairs win regardless of detection order.
func (bt *BlobTracker) Update(detected []models.MotionBlob, ts time.Time) ([]models.MotionBlob, []models.BlobEvent) {
	var events []models.BlobEvent

	candidates := make([]candidate, 0, len(bt.blobs)*len(detected))
	for id, tb := range bt.blobs {
		tcx, tcy := tb.blob.Center()
		for i := range detected {
			cx, cy := detected[i].Center()
			cost := math.Hypot(cx-tcx, cy-tcy)
			if cost <= bt.maxCost {
				candidates = append(candidates, candidate{id: id, det: i, cost: cost})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].cost < candidates[j].cost })

	matchedID := make(map[int]bool, len(bt.blobs))
	matchedDet := make(map[int]bool, len(detected))
	out := make([]models.MotionBlob, 0, len(detected))

	for _, c := range candidates {
		if matchedID[c.id] || matchedDet[c.det] {
			continue
		}
		matchedID[c.id] = true
		matchedDet[c.det] = true

		tb := bt.blobs[c.id]
		blob := detected[c.det]
		blob.ID = c.id
		blob.AtEdge = bt.atEdge(blob)

		dt := ts.Sub(tb.lastSeen).Seconds()
		if dt > 0 {
			pcx, pcy := tb.blob.Center()
			ccx, ccy := blob.Center()
			blob.VX = (ccx - pcx) / dt
			blob.VY = (ccy - pcy) / dt
		}

		tb.speedHist = append(tb.speedHist, blob.Speed())
		if len(tb.speedHist) > bt.historySize {
			tb.speedHist = tb.speedHist[1:]
		}

		wasMoving := tb.moving
		tb.moving = bt.avgSpeed(tb.speedHist) >= bt.minVelocity
		if tb.moving {
			events = append(events, models.BlobEvent{
				Type:      models.EventMove,
				BlobID:    c.id,
				Direction: headingOf(blob.VX, blob.VY),
			})
		} else if wasMoving {
			events = append(events, models.BlobEvent{Type: models.EventStop, BlobID: c.id})
		}

		tb.blob = blob
		tb.lastSeen = ts
		tb.missing = 0
		out = append(out, blob)
	}

	// Unmatched detections become new blobs
	for i := range detected {
		if matchedDet[i] {
			continue
		}
		blob := detected[i]
		blob.ID = bt.nextID
		bt.nextID++
		blob.AtEdge = bt.atEdge(blob)

		bt.blobs[blob.ID] = &trackedBlob{blob: blob, lastSeen: ts}

		if blob.AtEdge {
			events = append(events, models.BlobEvent{
				Type:      models.EventEnter,
				BlobID:    blob.ID,
				Direction: bt.edgeSide(blob),
				Zone:      zoneOf(blob),
			})
		} else {
			events = append(events, models.BlobEvent{
				Type:   models.EventAppear,
				BlobID: blob.ID,
				Zone:   zoneOf(blob),
			})
		}
		out = append(out, blob)
	}

	// Unmatched tracked blobs age out after the grace window
	for id, tb := range bt.blobs {
		if matchedID[id] {
			continue
		}
		if tb.lastSeen.Equal(ts) {
			continue // created this frame
		}
		tb.missing++
		if tb.missing <= bt.graceFrames {
			continue
		}

		if bt.atEdge(tb.blob) {
			events = append(events, models.BlobEvent{
				Type:      models.EventExit,
				BlobID:    id,
				Direction: bt.edgeSide(tb.blob),
				Zone:      zoneOf(tb.blob),
			})
		} else {
			events = append(events, models.BlobEvent{
				Type:   models.EventDisappear,
				BlobID: id,
				Zone:   zoneOf(tb.blob),
			})
		}
		delete(bt.blobs, id)
	}

	return out, events
}

// ActiveCount returns the number of blobs currently tracked
func (bt *BlobTracker) ActiveCount() int {
	return len(bt.blobs)
}

// Reset drops all tracked state, used after a capture reconnect
func (bt *BlobTracker) Reset() {
	bt.blobs = make(map[int]*trackedBlob)
}

func (bt *BlobTracker) atEdge(b models.MotionBlob) bool {
	cx, cy := b.Center()
	return cx < bt.edgeMargin || cx > 1-bt.edgeMargin || cy < bt.edgeMargin || cy > 1-bt.edgeMargin
}

// edgeSide names the frame border a blob center sits closest to
func (bt *BlobTracker) edgeSide(b models.MotionBlob) models.Direction {
	cx, cy := b.Center()
	switch {
	case cx < bt.edgeMargin:
		return models.DirectionLeft
	case cx > 1-bt.edgeMargin:
		return models.DirectionRight
	case cy < bt.edgeMargin:
		return models.DirectionUp
	default:
		return models.DirectionDown
	}
}

func (bt *BlobTracker) avgSpeed(hist []float64) float64 {
	if len(hist) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range hist {
		sum += s
	}
	return sum / float64(len(hist))
}

// headingOf classifies a velocity vector into a coarse direction
func headingOf(vx, vy float64) models.Direction {
	if vx == 0 && vy == 0 {
		return models.DirectionStatic
	}
	if math.Abs(vx) >= math.Abs(vy) {
		if vx > 0 {
			return models.DirectionRight
		}
		return models.DirectionLeft
	}
	if vy > 0 {
		return models.DirectionDown
	}
	return models.DirectionUp
}

func zoneOf(b models.MotionBlob) string {
	cx, cy := b.Center()
	return models.ZoneFor(cx, cy)
}
