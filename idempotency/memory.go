package idempotency

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryBackend is a single-replica, 16-shard striped map implementation of
// Backend. Each shard is guarded by its own mutex so reservations on
// unrelated keys never contend.
type MemoryBackend struct {
	shards [shardCount]*shard
	done   chan struct{}
}

// NewMemoryBackend constructs a striped in-memory backend and starts its
// background sweep goroutine. Reserve's correctness never depends on the
// sweep running — it only reclaims space held by expired entries.
func NewMemoryBackend(sweepInterval time.Duration) *MemoryBackend {
	m := &MemoryBackend{done: make(chan struct{})}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]memEntry)}
	}
	if sweepInterval > 0 {
		go m.sweepLoop(sweepInterval)
	}
	return m
}

func (m *MemoryBackend) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// ReserveIfAbsent implements Backend.
func (m *MemoryBackend) ReserveIfAbsent(_ context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	s := m.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok && now.Before(existing.expiresAt) {
		return existing.value, false, nil
	}

	s.entries[key] = memEntry{value: value, expiresAt: now.Add(ttl)}
	return value, true, nil
}

func (m *MemoryBackend) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *MemoryBackend) sweepOnce() {
	now := time.Now()
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if now.After(e.expiresAt) {
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
}

// Close stops the background sweep.
func (m *MemoryBackend) Close() {
	close(m.done)
}
