package inference

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExactHit(t *testing.T) {
	c := NewDescriptionCache(4, 0)
	c.Add(0xABCD, "a person walking")

	desc, ok := c.Lookup(0xABCD)
	require.True(t, ok)
	assert.Equal(t, "a person walking", desc)
}

func TestCacheNearHitWithinTolerance(t *testing.T) {
	c := NewDescriptionCache(4, 3)
	c.Add(0b1111_0000, "an empty hallway")

	// Two bits flipped: within tolerance
	desc, ok := c.Lookup(0b1111_0011)
	require.True(t, ok)
	assert.Equal(t, "an empty hallway", desc)

	// Four bits flipped: beyond tolerance
	_, ok = c.Lookup(0b0000_1111)
	assert.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewDescriptionCache(3, 0)
	for i := 0; i < 3; i++ {
		c.Add(uint64(i)<<32, fmt.Sprintf("scene %d", i))
	}

	// Touch entry 0 so entry 1 is the oldest
	_, ok := c.Lookup(0)
	require.True(t, ok)

	c.Add(99<<32, "scene 99")
	assert.Equal(t, 3, c.Len())

	_, ok = c.Lookup(uint64(1) << 32)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Lookup(0)
	assert.True(t, ok)
}

func TestCacheZeroCapacityDisabled(t *testing.T) {
	c := NewDescriptionCache(0, 0)
	c.Add(1, "never stored")

	_, ok := c.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
