package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.TrackActivationConfidence = 0.25
	cfg.TrackMatchingIoU = 0.2
	cfg.TrackMinStableFrames = 3
	cfg.TrackMaxLostFrames = 5
	cfg.TrackPositionHistory = 30
	cfg.TrackExitOnLost = false
	return cfg
}

func det(label string, conf, x, y float64) models.Detection {
	return models.Detection{
		Label:      label,
		Confidence: conf,
		BBox:       models.Rect{X: x, Y: y, W: 0.2, H: 0.3},
	}
}

func TestTrackerPromotesAfterMinStableFrames(t *testing.T) {
	st := NewSemanticTracker(testConfig())
	ts := time.Now()

	// Frame 1: detection spawns a tentative track
	u := st.Update("cam-0", 1, []models.Detection{det("person", 0.9, 0.4, 0.4)}, ts)
	require.Len(t, u.Tracks, 1)
	assert.Equal(t, models.TrackStateNew, u.Tracks[0].State)
	assert.Empty(t, u.Entries)
	assert.Equal(t, int64(0), u.TotalCount)

	// Frame 2: second sighting, still tentative
	ts = ts.Add(time.Second / 10)
	u = st.Update("cam-0", 2, []models.Detection{det("person", 0.9, 0.41, 0.4)}, ts)
	assert.Equal(t, models.TrackStateNew, u.Tracks[0].State)
	assert.Empty(t, u.Entries)

	// Frame 3: third sighting confirms the track and counts the entry
	ts = ts.Add(time.Second / 10)
	u = st.Update("cam-0", 3, []models.Detection{det("person", 0.9, 0.42, 0.4)}, ts)
	require.Len(t, u.Entries, 1)
	assert.Equal(t, models.TrackStateTracked, u.Entries[0].State)
	assert.Equal(t, int64(1), u.TotalCount)
	assert.Equal(t, 1, u.ActiveCount)
}

func TestTrackerLowConfidenceNeverSpawns(t *testing.T) {
	st := NewSemanticTracker(testConfig())

	u := st.Update("cam-0", 1, []models.Detection{det("person", 0.1, 0.4, 0.4)}, time.Now())
	assert.Empty(t, u.Tracks)
}

func TestTrackerLostReacquireKeepsIdentity(t *testing.T) {
	st := NewSemanticTracker(testConfig())
	ts := time.Now()

	for i := int64(1); i <= 3; i++ {
		st.Update("cam-0", i, []models.Detection{det("person", 0.9, 0.4, 0.4)}, ts)
		ts = ts.Add(time.Second / 10)
	}
	id := st.Snapshot()[0].ID

	// Two missed frames put the track into lost
	u := st.Update("cam-0", 4, nil, ts)
	ts = ts.Add(time.Second / 10)
	assert.Equal(t, models.TrackStateLost, u.Tracks[0].State)
	assert.True(t, st.Uncorroborated())

	u = st.Update("cam-0", 5, nil, ts)
	ts = ts.Add(time.Second / 10)

	// Re-match within the lost window: same id, no new entry, no exit
	u = st.Update("cam-0", 6, []models.Detection{det("person", 0.9, 0.42, 0.4)}, ts)
	require.Len(t, u.Tracks, 1)
	assert.Equal(t, id, u.Tracks[0].ID)
	assert.Equal(t, models.TrackStateTracked, u.Tracks[0].State)
	assert.Empty(t, u.Entries)
	assert.Empty(t, u.Exits)
	assert.Equal(t, int64(1), u.TotalCount)
	assert.False(t, st.Uncorroborated())
}

func TestTrackerExpiryThenNewIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.TrackMaxLostFrames = 2
	st := NewSemanticTracker(cfg)
	ts := time.Now()

	for i := int64(1); i <= 3; i++ {
		st.Update("cam-0", i, []models.Detection{det("person", 0.9, 0.4, 0.4)}, ts)
		ts = ts.Add(time.Second / 10)
	}
	oldID := st.Snapshot()[0].ID

	// Miss until gone: lost for 3 > maxLost 2
	var exits []*models.Track
	for i := int64(4); i <= 7; i++ {
		u := st.Update("cam-0", i, nil, ts)
		exits = append(exits, u.Exits...)
		ts = ts.Add(time.Second / 10)
	}
	require.Len(t, exits, 1)
	assert.Equal(t, oldID, exits[0].ID)
	assert.Empty(t, st.Snapshot())

	// Same region again: new identity, new entry once confirmed
	for i := int64(8); i <= 10; i++ {
		st.Update("cam-0", i, []models.Detection{det("person", 0.9, 0.4, 0.4)}, ts)
		ts = ts.Add(time.Second / 10)
	}
	tracks := st.Snapshot()
	require.Len(t, tracks, 1)
	assert.NotEqual(t, oldID, tracks[0].ID)
	assert.Equal(t, int64(2), st.TotalCount())
}

func TestTrackerTentativeTrackDropsSilently(t *testing.T) {
	st := NewSemanticTracker(testConfig())
	ts := time.Now()

	st.Update("cam-0", 1, []models.Detection{det("person", 0.9, 0.4, 0.4)}, ts)
	ts = ts.Add(time.Second / 10)

	// One missed frame kills the unconfirmed track without an exit
	u := st.Update("cam-0", 2, nil, ts)
	assert.Empty(t, u.Tracks)
	assert.Empty(t, u.Exits)
	assert.Equal(t, int64(0), u.TotalCount)
}

func TestTrackerIoUAssociationStability(t *testing.T) {
	st := NewSemanticTracker(testConfig())
	ts := time.Now()

	left := det("person", 0.9, 0.1, 0.4)
	right := det("person", 0.9, 0.6, 0.4)

	for i := int64(1); i <= 3; i++ {
		st.Update("cam-0", i, []models.Detection{left, right}, ts)
		ts = ts.Add(time.Second / 10)
	}

	tracks := st.Snapshot()
	require.Len(t, tracks, 2)
	idByX := map[float64]int{}
	for _, tr := range tracks {
		idByX[tr.BBox.X] = tr.ID
	}

	// Both shift slightly: heavy overlap with their own previous boxes
	left.BBox.X += 0.02
	right.BBox.X += 0.02
	u := st.Update("cam-0", 4, []models.Detection{right, left}, ts)

	require.Len(t, u.Tracks, 2)
	for _, tr := range u.Tracks {
		if tr.BBox.X < 0.5 {
			assert.Equal(t, idByX[0.1], tr.ID)
		} else {
			assert.Equal(t, idByX[0.6], tr.ID)
		}
	}
	assert.Empty(t, u.Entries)
}

func TestTrackerExitOnLostPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.TrackExitOnLost = true
	st := NewSemanticTracker(cfg)
	ts := time.Now()

	for i := int64(1); i <= 3; i++ {
		st.Update("cam-0", i, []models.Detection{det("person", 0.9, 0.4, 0.4)}, ts)
		ts = ts.Add(time.Second / 10)
	}

	u := st.Update("cam-0", 4, nil, ts)
	require.Len(t, u.Exits, 1)
	assert.Equal(t, models.TrackStateLost, u.Exits[0].State)

	// Aging to gone must not report the exit a second time
	ts = ts.Add(time.Second / 10)
	for i := int64(5); i <= 12; i++ {
		u = st.Update("cam-0", i, nil, ts)
		assert.Empty(t, u.Exits)
		ts = ts.Add(time.Second / 10)
	}
}

func TestTrackerSetDescription(t *testing.T) {
	st := NewSemanticTracker(testConfig())
	ts := time.Now()

	st.Update("cam-0", 1, []models.Detection{det("person", 0.9, 0.4, 0.4)}, ts)
	id := st.Snapshot()[0].ID

	assert.True(t, st.SetDescription(id, "a person in a red jacket"))
	assert.Equal(t, "a person in a red jacket", st.Snapshot()[0].Description)
	assert.False(t, st.SetDescription(999, "nope"))
}

func TestTrackerPositionHistoryBounded(t *testing.T) {
	cfg := testConfig()
	cfg.TrackPositionHistory = 5
	st := NewSemanticTracker(cfg)
	ts := time.Now()

	x := 0.1
	for i := int64(1); i <= 20; i++ {
		st.Update("cam-0", i, []models.Detection{det("person", 0.9, x, 0.4)}, ts)
		x += 0.005
		ts = ts.Add(time.Second / 10)
	}

	tracks := st.Snapshot()
	require.Len(t, tracks, 1)
	assert.Len(t, tracks[0].Positions, 5)
}
