package anomaly

import (
	"sync"
	"time"

	"github.com/sentineledge/predictive-core/observability"
)

// cacheEntry tracks access time for LRU eviction.
type cacheEntry struct {
	model      ScoringModel
	lastAccess time.Time
}

// modelCache is a bounded warm cache of loaded scoring models keyed by
// "model_name@version". A lookup miss builds the entry outside the lock and
// double-checks before inserting, so two concurrent misses for the same key
// never both pay the load cost twice into the map.
type modelCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	maxSize int
}

func newModelCache(maxSize int) *modelCache {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &modelCache{entries: make(map[string]*cacheEntry), maxSize: maxSize}
}

func (c *modelCache) get(key string) (ScoringModel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry.lastAccess = time.Now()
	return entry.model, true
}

// getOrLoad returns the cached model for key, or calls load to build one and
// inserts it, evicting the least-recently-used entry first if the cache is
// full.
func (c *modelCache) getOrLoad(key string, load func() (ScoringModel, error)) (ScoringModel, error) {
	if model, ok := c.get(key); ok {
		return model, nil
	}

	model, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.lastAccess = time.Now()
		return existing.model, nil
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = &cacheEntry{model: model, lastAccess: time.Now()}
	observability.ModelCacheSize.Set(float64(len(c.entries)))
	return model, nil
}

func (c *modelCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, entry := range c.entries {
		if first || entry.lastAccess.Before(oldestTime) {
			oldestKey = k
			oldestTime = entry.lastAccess
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		observability.ModelCacheEvictionsTotal.Inc()
	}
}
