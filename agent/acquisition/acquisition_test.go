package acquisition

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
)

type fakeDirectory struct {
	sensors map[string]domain.Sensor
}

func (f *fakeDirectory) Lookup(_ context.Context, sensorID string) (domain.Sensor, bool, error) {
	sensor, ok := f.sensors[sensorID]
	return sensor, ok, nil
}

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

func TestKnownSensorPublishesDataAcquired(t *testing.T) {
	bus := eventbus.New(eventbus.Config{QueueCapacity: 10, PublishTimeout: time.Second}, nil)
	directory := &fakeDirectory{sensors: map[string]domain.Sensor{
		"sensor-1": {SensorID: "sensor-1", Type: domain.SensorTemperature, Status: domain.SensorActive},
	}}

	a := New(bus, directory, sequentialIDs(), time.Now)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	done := make(chan domain.DataAcquiredBody, 1)
	bus.Subscribe(domain.EventDataAcquired, "observer", func(ctx context.Context, event domain.Event) error {
		done <- event.Body.(domain.DataAcquiredBody)
		return nil
	})

	reading := domain.SensorReading{SensorID: "sensor-1", SensorType: domain.SensorTemperature, Value: 42, Timestamp: time.Now()}
	ingested := domain.NewEvent(domain.EventSensorReadingIngested, "corr-1", "ingestion",
		domain.SensorReadingIngestedBody{Reading: reading}, time.Now(), sequentialIDs())

	if err := bus.Publish(context.Background(), ingested); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case body := <-done:
		if body.Sensor.SensorID != "sensor-1" {
			t.Fatalf("expected sensor-1, got %s", body.Sensor.SensorID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected DataAcquired to be published")
	}
}

func TestUnknownSensorPublishesValidationFailed(t *testing.T) {
	bus := eventbus.New(eventbus.Config{QueueCapacity: 10, PublishTimeout: time.Second}, nil)
	directory := &fakeDirectory{sensors: map[string]domain.Sensor{}}

	a := New(bus, directory, sequentialIDs(), time.Now)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	done := make(chan domain.ValidationFailedBody, 1)
	bus.Subscribe(domain.EventValidationFailed, "observer", func(ctx context.Context, event domain.Event) error {
		done <- event.Body.(domain.ValidationFailedBody)
		return nil
	})

	reading := domain.SensorReading{SensorID: "ghost", SensorType: domain.SensorTemperature, Value: 1, Timestamp: time.Now()}
	ingested := domain.NewEvent(domain.EventSensorReadingIngested, "corr-2", "ingestion",
		domain.SensorReadingIngestedBody{Reading: reading}, time.Now(), sequentialIDs())

	if err := bus.Publish(context.Background(), ingested); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case body := <-done:
		if body.Reason != "unknown_sensor" {
			t.Fatalf("expected unknown_sensor, got %s", body.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("expected ValidationFailed to be published")
	}
}
