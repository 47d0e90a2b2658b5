package notify

import (
	"hash/fnv"
	"sync"
	"time"
)

const dedupShardCount = 16

type dedupShard struct {
	mu      sync.Mutex
	lastSeen map[string]time.Time
}

// dedupSet tracks the last time each (sensor_id, evidence hash) pair was
// seen, striped the same way the idempotency store shards its keys, so one
// busy sensor never serializes lookups for every other sensor.
type dedupSet struct {
	shards [dedupShardCount]*dedupShard
	window time.Duration
}

func newDedupSet(window time.Duration) *dedupSet {
	d := &dedupSet{window: window}
	for i := range d.shards {
		d.shards[i] = &dedupShard{lastSeen: make(map[string]time.Time)}
	}
	return d
}

func (d *dedupSet) shardFor(key string) *dedupShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return d.shards[h.Sum32()%dedupShardCount]
}

// seen reports whether key was already recorded within window of now, and
// records the current sighting either way.
func (d *dedupSet) seen(key string, now time.Time) bool {
	shard := d.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	last, ok := shard.lastSeen[key]
	shard.lastSeen[key] = now
	return ok && now.Sub(last) < d.window
}
