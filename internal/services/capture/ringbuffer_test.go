package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus-worker-go/internal/models"
)

func pushN(b *FrameBuffer, n int) {
	for i := 0; i < n; i++ {
		b.Push(&models.Frame{CameraID: "cam-0"})
	}
}

func TestFrameBufferSequencesAreMonotonic(t *testing.T) {
	b := NewFrameBuffer(4)

	for i := 1; i <= 10; i++ {
		seq := b.Push(&models.Frame{})
		assert.Equal(t, int64(i), seq)
	}
	assert.Equal(t, int64(10), b.LastSeq())
}

func TestFrameBufferOverwritesOldest(t *testing.T) {
	b := NewFrameBuffer(3)
	pushN(b, 5)

	// Frames 1 and 2 were overwritten by 4 and 5
	assert.Nil(t, b.Get(1))
	assert.Nil(t, b.Get(2))
	require.NotNil(t, b.Get(3))
	assert.Equal(t, int64(3), b.Get(3).Seq)
	assert.Equal(t, int64(5), b.Latest().Seq)

	stats := b.Stats()
	assert.Equal(t, int64(5), stats.TotalReceived)
	assert.Equal(t, int64(2), stats.TotalDropped)
}

func TestFrameBufferSinceReportsGap(t *testing.T) {
	b := NewFrameBuffer(3)
	pushN(b, 2)

	// Reader caught up, no gap
	frames, gap := b.Since(0)
	require.Len(t, frames, 2)
	assert.False(t, gap)
	assert.Equal(t, int64(1), frames[0].Seq)

	// Writer laps the reader
	pushN(b, 4)
	frames, gap = b.Since(2)
	require.Len(t, frames, 3)
	assert.True(t, gap)
	assert.Equal(t, int64(4), frames[0].Seq)
	assert.Equal(t, int64(6), frames[2].Seq)
}

func TestFrameBufferSinceUpToDate(t *testing.T) {
	b := NewFrameBuffer(3)
	pushN(b, 3)

	frames, gap := b.Since(3)
	assert.Nil(t, frames)
	assert.False(t, gap)
}

func TestFrameBufferEmpty(t *testing.T) {
	b := NewFrameBuffer(3)

	assert.Nil(t, b.Latest())
	assert.Nil(t, b.Get(1))

	frames, gap := b.Since(0)
	assert.Nil(t, frames)
	assert.False(t, gap)
}
