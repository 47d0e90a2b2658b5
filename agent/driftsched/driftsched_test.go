package driftsched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/drift"
	"github.com/sentineledge/predictive-core/eventbus"
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

func TestCheckOnePublishesDriftDetectedWhenDrifted(t *testing.T) {
	bus := eventbus.New(eventbus.Config{QueueCapacity: 10, PublishTimeout: time.Second}, nil)
	repo := timeseries.NewMemoryRepository()

	now := time.Now()
	window := 30 * time.Minute
	seedNormal(t, repo, "s1", now.Add(-2*window), now.Add(-window), 40, 20, 1)
	seedNormal(t, repo, "s1", now.Add(-window), now, 40, 25, 1)

	a := New(bus, repo, drift.NewDetector(30), StaticMonitor{{SensorID: "s1", ModelName: "m1"}}, "@every 1h", 30, 0.05, sequentialIDs(), func() time.Time { return now })

	done := make(chan domain.DriftReport, 1)
	bus.Subscribe(domain.EventDriftDetected, "observer", func(ctx context.Context, event domain.Event) error {
		done <- event.Body.(domain.DriftDetectedBody).Report
		return nil
	})

	a.checkOne(context.Background(), Pair{SensorID: "s1", ModelName: "m1"})

	select {
	case report := <-done:
		if !report.DriftDetected {
			t.Fatalf("expected drift_detected=true")
		}
	case <-time.After(time.Second):
		t.Fatal("expected DriftDetected to be published")
	}
}

func TestOverlapGuardSkipsSecondRunForSamePair(t *testing.T) {
	bus := eventbus.New(eventbus.Config{QueueCapacity: 10, PublishTimeout: time.Second}, nil)
	repo := timeseries.NewMemoryRepository()
	a := New(bus, repo, drift.NewDetector(30), nil, "@every 1h", 30, 0.05, sequentialIDs(), time.Now)

	pair := Pair{SensorID: "s1", ModelName: "m1"}
	if !a.tryMark(pair) {
		t.Fatal("expected first mark to succeed")
	}
	if a.tryMark(pair) {
		t.Fatal("expected second mark of an in-flight pair to be refused")
	}
	a.unmark(pair)
	if !a.tryMark(pair) {
		t.Fatal("expected mark to succeed again once unmarked")
	}
}

func seedNormal(t *testing.T, repo *timeseries.MemoryRepository, sensorID string, from, to time.Time, n int, mean, _ float64) {
	t.Helper()
	step := to.Sub(from) / time.Duration(n+1)
	for i := 0; i < n; i++ {
		ts := from.Add(step * time.Duration(i+1))
		reading := domain.SensorReading{SensorID: sensorID, SensorType: domain.SensorTemperature, Value: mean + float64(i%5), Timestamp: ts}
		if err := repo.Insert(context.Background(), reading); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
}
