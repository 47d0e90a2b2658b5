// Package idempotency implements a keyed TTL reservation: given a
// client-supplied key and a candidate event ID, atomically decide whether
// this is a first-time submission or a replay within the TTL window. The
// decision is a true atomic set-if-absent against a pluggable Backend, never
// a separate Get followed by a Set.
package idempotency

import (
	"context"
	"time"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/observability"
)

// Outcome is the result of a Reserve call.
type Outcome struct {
	FirstTime       bool
	OriginalEventID string
}

// Backend is the pluggable set-if-absent-with-expiry contract. Two
// reference implementations are provided: MemoryBackend (single replica)
// and RedisBackend (shared, multi-replica).
type Backend interface {
	// ReserveIfAbsent atomically stores value under key with the given ttl
	// if and only if key is currently absent (or expired). It returns the
	// value actually stored under key (the caller's value on first-time
	// success, the existing value on a race loser) and whether this call
	// was the one that created the entry.
	ReserveIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (stored string, created bool, err error)
}

// Store is the idempotency contract consumers depend on.
type Store struct {
	backend Backend
}

// NewStore wraps a Backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Reserve attempts to claim key for eventID. Backend errors are wrapped as
// apperr.StoreUnavailable (Transient) rather than ever being treated as a
// duplicate — the system never silently guesses on an unknown key.
func (s *Store) Reserve(ctx context.Context, key, eventID string, ttl time.Duration) (Outcome, error) {
	stored, created, err := s.backend.ReserveIfAbsent(ctx, key, eventID, ttl)
	if err != nil {
		return Outcome{}, apperr.StoreUnavailable(err)
	}
	if created {
		observability.IdempotencyLockAcquiredTotal.Inc()
		return Outcome{FirstTime: true, OriginalEventID: eventID}, nil
	}
	observability.IdempotencyDuplicatesTotal.Inc()
	return Outcome{FirstTime: false, OriginalEventID: stored}, nil
}
