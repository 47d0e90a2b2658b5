package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/directory"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
	"github.com/sentineledge/predictive-core/idempotency"
	"github.com/sentineledge/predictive-core/timeseries"
)

func sequentialIDs() func() string {
	var n int
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "evt-" + string(rune('a'+n))
	}
}

func newEndpoint() (*Endpoint, *timeseries.MemoryRepository, *eventbus.Bus) {
	repo := timeseries.NewMemoryRepository()
	bus := eventbus.New(eventbus.Config{QueueCapacity: 10, PublishTimeout: time.Second}, nil)
	store := idempotency.NewStore(idempotency.NewMemoryBackend(0))
	dir := directory.NewMemory()
	dir.Put(domain.Sensor{SensorID: "s1", Type: domain.SensorTemperature, Status: domain.SensorActive})
	ep := New(store, repo, bus, dir, Config{IdempotencyTTL: 10 * time.Minute, AutoRegisterSensors: true}, sequentialIDs(), time.Now)
	return ep, repo, bus
}

func TestIngestPublishesSensorReadingIngestedOnce(t *testing.T) {
	ep, repo, bus := newEndpoint()
	ctx := correlation.Enter(context.Background(), "")

	var count int
	var mu sync.Mutex
	bus.Subscribe(domain.EventSensorReadingIngested, "observer", func(ctx context.Context, event domain.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	reading := domain.SensorReading{SensorID: "s1", SensorType: domain.SensorTemperature, Value: 22.5, Timestamp: time.Now()}
	result, err := ep.Ingest(ctx, Request{Reading: reading})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("expected non-duplicate result")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly one SensorReadingIngested event, got %d", count)
	}

	rows, err := repo.Range(ctx, "s1", reading.Timestamp, reading.Timestamp.Add(time.Second), 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected exactly one persisted row, got %d rows, err=%v", len(rows), err)
	}
}

func TestReplayWithSameIdempotencyKeyReturnsOriginalEventID(t *testing.T) {
	ep, repo, _ := newEndpoint()
	ctx := correlation.Enter(context.Background(), "")

	reading := domain.SensorReading{SensorID: "s1", SensorType: domain.SensorTemperature, Value: 22.5, Timestamp: time.Now()}

	first, err := ep.Ingest(ctx, Request{Reading: reading, IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	second, err := ep.Ingest(ctx, Request{Reading: reading, IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected second request to be recognized as duplicate")
	}
	if second.EventID != first.EventID {
		t.Fatalf("expected same event_id on replay, got %s vs %s", second.EventID, first.EventID)
	}

	rows, err := repo.Range(ctx, "s1", reading.Timestamp, reading.Timestamp.Add(time.Second), 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected exactly one persisted row despite replay, got %d rows, err=%v", len(rows), err)
	}
}

func TestValidationFailureRejectsBeforePersisting(t *testing.T) {
	ep, repo, _ := newEndpoint()
	ctx := correlation.Enter(context.Background(), "")

	reading := domain.SensorReading{SensorID: "", SensorType: domain.SensorTemperature, Value: 1, Timestamp: time.Now()}
	_, err := ep.Ingest(ctx, Request{Reading: reading})
	if err == nil {
		t.Fatal("expected validation error for missing sensor_id")
	}

	rows, _ := repo.Range(ctx, "", time.Time{}, time.Now().Add(time.Hour), 0)
	if len(rows) != 0 {
		t.Fatalf("expected no rows persisted on validation failure, got %d", len(rows))
	}
}
