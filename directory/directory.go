// Package directory is a minimal in-process sensor master-record store,
// satisfying both ingestion.SensorRegistrar (auto-register on first sight)
// and agent/acquisition.SensorDirectory (enrichment lookup) — the two
// narrow ports spec.md §3 and §4.6 describe over the sensors table.
package directory

import (
	"context"
	"sync"

	"github.com/sentineledge/predictive-core/domain"
)

// Memory is an in-process Sensor master-record store.
type Memory struct {
	mu      sync.RWMutex
	sensors map[string]domain.Sensor
}

// NewMemory constructs an empty directory.
func NewMemory() *Memory {
	return &Memory{sensors: make(map[string]domain.Sensor)}
}

// Put registers or overwrites a sensor's master record directly — used to
// seed known sensors ahead of ingestion.
func (m *Memory) Put(sensor domain.Sensor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensors[sensor.SensorID] = sensor
}

// Lookup implements agent/acquisition.SensorDirectory.
func (m *Memory) Lookup(_ context.Context, sensorID string) (domain.Sensor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sensor, ok := m.sensors[sensorID]
	return sensor, ok, nil
}

// EnsureSensor implements ingestion.SensorRegistrar: an insert-ignore
// bootstrap that registers sensorID as active on first sight and leaves an
// already-known sensor untouched.
func (m *Memory) EnsureSensor(_ context.Context, sensorID string, sensorType domain.SensorType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sensors[sensorID]; ok {
		return nil
	}
	m.sensors[sensorID] = domain.Sensor{SensorID: sensorID, Type: sensorType, Status: domain.SensorActive}
	return nil
}
