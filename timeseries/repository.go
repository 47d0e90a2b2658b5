// Package timeseries persists and queries SensorReading rows keyed by the
// natural key (sensor_id, timestamp).
package timeseries

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/domain"
)

// Repository is the persistence contract the ingestion endpoint, the
// scheduled drift agent and the drift HTTP handler depend on. Implementations must reject a second Insert for an
// already-seen (sensor_id, timestamp) pair with apperr.ErrDuplicateKey
// rather than silently overwriting it.
type Repository interface {
	Insert(ctx context.Context, reading domain.SensorReading) error
	// Range returns readings for sensorID with timestamp in [from, to], ordered
	// ascending by timestamp, capped at limit rows (limit<=0 means no cap).
	Range(ctx context.Context, sensorID string, from, to time.Time, limit int) ([]domain.SensorReading, error)
	// Recent returns the most recent n readings for sensorID, ordered
	// ascending by timestamp (oldest first).
	Recent(ctx context.Context, sensorID string, n int) ([]domain.SensorReading, error)
}

// MemoryRepository is an in-process Repository, used in tests and as the
// degraded-mode fallback when Postgres is unreachable.
type MemoryRepository struct {
	mu       sync.RWMutex
	bySensor map[string][]domain.SensorReading
	seen     map[string]struct{}
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bySensor: make(map[string][]domain.SensorReading),
		seen:     make(map[string]struct{}),
	}
}

func naturalKey(sensorID string, ts time.Time) string {
	return sensorID + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (m *MemoryRepository) Insert(_ context.Context, reading domain.SensorReading) error {
	key := naturalKey(reading.SensorID, reading.Timestamp)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return apperr.ErrDuplicateKey
	}
	m.seen[key] = struct{}{}

	rows := m.bySensor[reading.SensorID]
	idx := sort.Search(len(rows), func(i int) bool {
		return !rows[i].Timestamp.Before(reading.Timestamp)
	})
	rows = append(rows, domain.SensorReading{})
	copy(rows[idx+1:], rows[idx:])
	rows[idx] = reading
	m.bySensor[reading.SensorID] = rows
	return nil
}

func (m *MemoryRepository) Range(_ context.Context, sensorID string, from, to time.Time, limit int) ([]domain.SensorReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.bySensor[sensorID]
	out := make([]domain.SensorReading, 0, len(rows))
	for _, r := range rows {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryRepository) Recent(_ context.Context, sensorID string, n int) ([]domain.SensorReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.bySensor[sensorID]
	if n <= 0 || len(rows) == 0 {
		return nil, nil
	}
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]domain.SensorReading, n)
	copy(out, rows[len(rows)-n:])
	return out, nil
}

// ErrNotConfigured is returned by NewPostgresRepository when called without
// a connection string.
var ErrNotConfigured = errors.New("timeseries: no postgres connection string configured")
