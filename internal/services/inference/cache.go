package inference

import (
	"container/list"
	"sync"

	"argus-worker-go/internal/helpers"
)

// DescriptionCache is an LRU of scene descriptions keyed by perceptual
// hash. A lookup hits when a cached hash is within the hamming tolerance,
// so a static scene stops burning inference calls.
type DescriptionCache struct {
	mu        sync.Mutex
	capacity  int
	tolerance int
	order     *list.List // front = most recent
	entries   map[uint64]*list.Element
}

type cacheEntry struct {
	hash        uint64
	description string
}

// NewDescriptionCache creates a cache. Zero capacity disables caching.
func NewDescriptionCache(capacity, tolerance int) *DescriptionCache {
	return &DescriptionCache{
		capacity:  capacity,
		tolerance: tolerance,
		order:     list.New(),
		entries:   make(map[uint64]*list.Element),
	}
}

// Lookup returns a cached description for a visually similar frame
func (c *DescriptionCache) Lookup(hash uint64) (string, bool) {
	if c.capacity == 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Exact hit first
	if el, ok := c.entries[hash]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).description, true
	}

	// Near hit: bounded scan, the cache is small
	for el := c.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*cacheEntry)
		if helpers.HammingDistance(entry.hash, hash) <= c.tolerance {
			c.order.MoveToFront(el)
			return entry.description, true
		}
	}
	return "", false
}

// Add stores a description, evicting the least recently used entry at capacity
func (c *DescriptionCache) Add(hash uint64, description string) {
	if c.capacity == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[hash]; ok {
		el.Value.(*cacheEntry).description = description
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{hash: hash, description: description})
	c.entries[hash] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).hash)
	}
}

// Len returns the number of cached descriptions
func (c *DescriptionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
