package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToAllSubscribers(t *testing.T) {
	h := NewHub(4)
	a, err := h.Subscribe()
	require.NoError(t, err)
	b, err := h.Subscribe()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	h.Publish([]byte("rec1"))

	assert.Equal(t, []byte("rec1"), <-a.C())
	assert.Equal(t, []byte("rec1"), <-b.C())
	assert.Equal(t, uint64(1), h.TotalPublished())
}

func TestHubSlowSubscriberDropsAlone(t *testing.T) {
	h := NewHub(2)
	slow, err := h.Subscribe()
	require.NoError(t, err)
	fast, err := h.Subscribe()
	require.NoError(t, err)

	// Fill both queues, then keep publishing; nobody reads slow
	for i := 0; i < 5; i++ {
		h.Publish([]byte{byte(i)})
		// fast keeps up
		<-fast.C()
	}

	sent, dropped := slow.Stats()
	assert.Equal(t, uint64(2), sent)
	assert.Equal(t, uint64(3), dropped)

	fsent, fdropped := fast.Stats()
	assert.Equal(t, uint64(5), fsent)
	assert.Equal(t, uint64(0), fdropped)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(2)
	sub, err := h.Subscribe()
	require.NoError(t, err)

	h.Unsubscribe(sub.ID)
	_, open := <-sub.C()
	assert.False(t, open)
	assert.Equal(t, 0, h.SubscriberCount())

	// Publishing to an empty hub is a no-op
	h.Publish([]byte("rec"))
}

func TestHubCloseRejectsNewSubscribers(t *testing.T) {
	h := NewHub(2)
	sub, err := h.Subscribe()
	require.NoError(t, err)

	h.Close()

	_, open := <-sub.C()
	assert.False(t, open)

	_, err = h.Subscribe()
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHubStats(t *testing.T) {
	h := NewHub(1)
	sub, err := h.Subscribe()
	require.NoError(t, err)

	h.Publish([]byte("a"))
	h.Publish([]byte("b"))

	stats := h.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, sub.ID, stats[0].ID)
	assert.Equal(t, uint64(1), stats[0].Sent)
	assert.Equal(t, uint64(1), stats[0].Dropped)
	assert.Equal(t, 50.0, stats[0].Drop)
}
