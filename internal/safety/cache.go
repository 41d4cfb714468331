package safety

import "sync"

// verdictCache is a fixed-capacity verdict store keyed by the exact
// candidate text. When the cap is reached, the oldest evictBatch entries
// are removed in bulk. Not strict LRU: reads do not reorder.
type verdictCache struct {
	mu       sync.Mutex
	verdicts map[string]bool
	order    []string
	capacity int
	batch    int
}

const (
	defaultCacheCapacity = 50
	defaultEvictBatch    = 10
)

func newVerdictCache(capacity, batch int) *verdictCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	if batch <= 0 || batch > capacity {
		batch = defaultEvictBatch
	}
	return &verdictCache{
		verdicts: make(map[string]bool, capacity),
		capacity: capacity,
		batch:    batch,
	}
}

// get returns the cached verdict for the key, if present.
func (c *verdictCache) get(key string) (verdict, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.verdicts[key]
	return v, ok
}

// put inserts a verdict, evicting the oldest batch when at capacity.
// Existing keys are updated in place without reordering.
func (c *verdictCache) put(key string, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.verdicts[key]; exists {
		c.verdicts[key] = v
		return
	}

	if len(c.order) >= c.capacity {
		evicted := c.order[:c.batch]
		for _, k := range evicted {
			delete(c.verdicts, k)
		}
		c.order = append(c.order[:0], c.order[c.batch:]...)
	}

	c.verdicts[key] = v
	c.order = append(c.order, key)
}

// len returns the number of cached verdicts.
func (c *verdictCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
