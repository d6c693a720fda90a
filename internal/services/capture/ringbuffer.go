package capture

import (
	"sync"
	"sync/atomic"

	"argus-worker-go/internal/models"
)

// FrameBuffer is a single-writer multi-reader ring of the most recent frames.
// When full, the oldest frame is silently overwritten; readers that fall
// behind observe a sequence gap rather than blocking the capture loop.
type FrameBuffer struct {
	mu       sync.RWMutex
	frames   []*models.Frame
	capacity int
	seq      atomic.Int64 // last published sequence, 0 = nothing yet

	totalFrames   atomic.Int64
	droppedFrames atomic.Int64
}

// FrameBufferStats contains buffer statistics
type FrameBufferStats struct {
	Capacity      int     `json:"capacity"`
	LastSeq       int64   `json:"last_seq"`
	TotalReceived int64   `json:"total_received"`
	TotalDropped  int64   `json:"total_dropped"`
	DropRate      float64 `json:"drop_rate"` // percentage
}

// NewFrameBuffer creates a ring buffer holding the given number of frames
func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = 30
	}
	return &FrameBuffer{
		frames:   make([]*models.Frame, capacity),
		capacity: capacity,
	}
}

// Push stores a frame, assigns its sequence number and returns it.
// The overwritten frame, if any, is simply dropped.
func (b *FrameBuffer) Push(frame *models.Frame) int64 {
	b.mu.Lock()
	seq := b.seq.Load() + 1
	frame.Seq = seq
	if old := b.frames[seqIndex(seq, b.capacity)]; old != nil {
		b.droppedFrames.Add(1)
	}
	b.frames[seqIndex(seq, b.capacity)] = frame
	// Publish the sequence only after the slot is written so readers
	// never observe a sequence without its frame.
	b.seq.Store(seq)
	b.mu.Unlock()

	b.totalFrames.Add(1)
	return seq
}

// Latest returns the newest frame, or nil when nothing has been pushed
func (b *FrameBuffer) Latest() *models.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seq := b.seq.Load()
	if seq == 0 {
		return nil
	}
	return b.frames[seqIndex(seq, b.capacity)]
}

// LastSeq returns the last published sequence number
func (b *FrameBuffer) LastSeq() int64 {
	return b.seq.Load()
}

// Get returns the frame with the given sequence if it is still buffered
func (b *FrameBuffer) Get(seq int64) *models.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	last := b.seq.Load()
	if seq <= 0 || seq > last || seq <= last-int64(b.capacity) {
		return nil
	}
	return b.frames[seqIndex(seq, b.capacity)]
}

// Since returns the frames newer than afterSeq in order, and whether the
// reader missed frames that were already overwritten.
func (b *FrameBuffer) Since(afterSeq int64) ([]*models.Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	last := b.seq.Load()
	if last == 0 || afterSeq >= last {
		return nil, false
	}

	oldest := last - int64(b.capacity) + 1
	if oldest < 1 {
		oldest = 1
	}

	gap := false
	start := afterSeq + 1
	if start < oldest {
		start = oldest
		gap = true
	}

	out := make([]*models.Frame, 0, last-start+1)
	for seq := start; seq <= last; seq++ {
		out = append(out, b.frames[seqIndex(seq, b.capacity)])
	}
	return out, gap
}

// Stats returns buffer statistics
func (b *FrameBuffer) Stats() FrameBufferStats {
	totalReceived := b.totalFrames.Load()
	totalDropped := b.droppedFrames.Load()

	var dropRate float64
	if totalReceived > 0 {
		dropRate = float64(totalDropped) / float64(totalReceived) * 100
	}

	return FrameBufferStats{
		Capacity:      b.capacity,
		LastSeq:       b.seq.Load(),
		TotalReceived: totalReceived,
		TotalDropped:  totalDropped,
		DropRate:      dropRate,
	}
}

func seqIndex(seq int64, capacity int) int {
	return int((seq - 1) % int64(capacity))
}
