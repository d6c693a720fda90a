package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus-worker-go/internal/models"
)

func newTestTracker() *BlobTracker {
	return NewBlobTracker(0.8, 2, 0.1, 0.008, 5)
}

func blobAt(cx, cy float64) models.MotionBlob {
	return models.MotionBlob{X: cx - 0.05, Y: cy - 0.05, W: 0.1, H: 0.1, AreaPx: 5000}
}

func eventsOfType(events []models.BlobEvent, et models.EventType) []models.BlobEvent {
	var out []models.BlobEvent
	for _, e := range events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

func TestBlobTrackerAppearInInterior(t *testing.T) {
	bt := newTestTracker()
	ts := time.Now()

	blobs, events := bt.Update([]models.MotionBlob{blobAt(0.5, 0.5)}, ts)

	require.Len(t, blobs, 1)
	assert.Equal(t, 1, blobs[0].ID)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventAppear, events[0].Type)
	assert.Equal(t, "middle-center", events[0].Zone)
}

func TestBlobTrackerEnterAtEdge(t *testing.T) {
	bt := newTestTracker()

	_, events := bt.Update([]models.MotionBlob{blobAt(0.05, 0.5)}, time.Now())

	require.Len(t, events, 1)
	assert.Equal(t, models.EventEnter, events[0].Type)
	assert.Equal(t, models.DirectionLeft, events[0].Direction)
}

func TestBlobTrackerKeepsIDAcrossMovement(t *testing.T) {
	bt := newTestTracker()
	ts := time.Now()

	blobs, _ := bt.Update([]models.MotionBlob{blobAt(0.4, 0.5)}, ts)
	id := blobs[0].ID

	ts = ts.Add(100 * time.Millisecond)
	blobs, events := bt.Update([]models.MotionBlob{blobAt(0.45, 0.5)}, ts)

	require.Len(t, blobs, 1)
	assert.Equal(t, id, blobs[0].ID)
	assert.InDelta(t, 0.5, blobs[0].VX, 0.01) // 0.05 in 0.1s
	assert.InDelta(t, 0.0, blobs[0].VY, 0.01)

	moves := eventsOfType(events, models.EventMove)
	require.Len(t, moves, 1)
	assert.Equal(t, models.DirectionRight, moves[0].Direction)
}

func TestBlobTrackerClosestPairsWin(t *testing.T) {
	bt := newTestTracker()
	ts := time.Now()

	bt.Update([]models.MotionBlob{blobAt(0.2, 0.5), blobAt(0.6, 0.5)}, ts)

	// Both move slightly right; greedy-by-cost must keep assignments stable
	ts = ts.Add(100 * time.Millisecond)
	blobs, events := bt.Update([]models.MotionBlob{blobAt(0.23, 0.5), blobAt(0.63, 0.5)}, ts)

	require.Len(t, blobs, 2)
	ids := map[int]bool{blobs[0].ID: true, blobs[1].ID: true}
	assert.True(t, ids[1] && ids[2], "expected ids 1 and 2, got %v", ids)
	assert.Empty(t, eventsOfType(events, models.EventAppear))
	assert.Empty(t, eventsOfType(events, models.EventEnter))
}

func TestBlobTrackerStaticBlobEmitsNoMove(t *testing.T) {
	bt := newTestTracker()
	ts := time.Now()

	bt.Update([]models.MotionBlob{blobAt(0.5, 0.5)}, ts)

	for i := 0; i < 3; i++ {
		ts = ts.Add(100 * time.Millisecond)
		_, events := bt.Update([]models.MotionBlob{blobAt(0.5, 0.5)}, ts)
		assert.Empty(t, eventsOfType(events, models.EventMove))
	}
}

func TestBlobTrackerGraceWindowBeforeDisappear(t *testing.T) {
	bt := newTestTracker()
	ts := time.Now()

	bt.Update([]models.MotionBlob{blobAt(0.5, 0.5)}, ts)

	// Within the grace window the blob survives with no events
	for i := 0; i < 2; i++ {
		ts = ts.Add(100 * time.Millisecond)
		_, events := bt.Update(nil, ts)
		assert.Empty(t, events, "frame %d", i)
		assert.Equal(t, 1, bt.ActiveCount())
	}

	// One past the grace window it disappears
	ts = ts.Add(100 * time.Millisecond)
	_, events := bt.Update(nil, ts)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventDisappear, events[0].Type)
	assert.Equal(t, 0, bt.ActiveCount())
}

func TestBlobTrackerLeftToRightCrossing(t *testing.T) {
	bt := newTestTracker()
	ts := time.Now()

	var all []models.BlobEvent
	// Enter at the left edge, cross to the right edge
	for cx := 0.05; cx <= 0.96; cx += 0.1 {
		blobs, events := bt.Update([]models.MotionBlob{blobAt(cx, 0.5)}, ts)
		all = append(all, events...)
		require.Len(t, blobs, 1)
		assert.Equal(t, 1, blobs[0].ID, "id must be stable across the crossing")
		if cx > 0.05 {
			assert.Positive(t, blobs[0].VX)
		}
		ts = ts.Add(100 * time.Millisecond)
	}

	// Gone past the right edge
	for i := 0; i <= 3; i++ {
		_, events := bt.Update(nil, ts)
		all = append(all, events...)
		ts = ts.Add(100 * time.Millisecond)
	}

	enters := eventsOfType(all, models.EventEnter)
	require.Len(t, enters, 1)
	assert.Equal(t, models.DirectionLeft, enters[0].Direction)

	assert.NotEmpty(t, eventsOfType(all, models.EventMove))

	exits := eventsOfType(all, models.EventExit)
	require.Len(t, exits, 1)
	assert.Equal(t, models.DirectionRight, exits[0].Direction)
	assert.Empty(t, eventsOfType(all, models.EventAppear))
	assert.Empty(t, eventsOfType(all, models.EventDisappear))
}

func TestBlobTrackerFarBlobNeverMatches(t *testing.T) {
	bt := NewBlobTracker(0.2, 2, 0.1, 0.008, 5)
	ts := time.Now()

	bt.Update([]models.MotionBlob{blobAt(0.2, 0.2)}, ts)

	// Displacement 0.6 exceeds the 0.2 match budget: this is a new blob
	ts = ts.Add(100 * time.Millisecond)
	blobs, events := bt.Update([]models.MotionBlob{blobAt(0.8, 0.2)}, ts)

	require.Len(t, blobs, 1)
	assert.Equal(t, 2, blobs[0].ID)
	require.Len(t, eventsOfType(events, models.EventAppear), 1)
}
