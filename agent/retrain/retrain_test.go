package retrain

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
	"github.com/sentineledge/predictive-core/registry"
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

type blockingTrainer struct {
	current  int64
	peak     int64
	release  chan struct{}
}

func (b *blockingTrainer) Train(ctx context.Context, modelName string, trigger domain.DriftReport) (domain.ModelVersion, []byte, domain.TrainingMetrics, error) {
	n := atomic.AddInt64(&b.current, 1)
	for {
		peak := atomic.LoadInt64(&b.peak)
		if n <= peak || atomic.CompareAndSwapInt64(&b.peak, peak, n) {
			break
		}
	}
	<-b.release
	atomic.AddInt64(&b.current, -1)
	return domain.ModelVersion{Name: modelName, Version: 2, FeatureNames: nil}, []byte("artifact"), domain.TrainingMetrics{PrimaryMetric: 0.9}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	records []domain.RetrainRecord
}

func (f *fakeStore) Persist(_ context.Context, record domain.RetrainRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func driftEvent(modelName string, now time.Time) domain.Event {
	return domain.NewEvent(domain.EventDriftDetected, "corr-"+modelName+"-"+now.String(), "drift-scheduled",
		domain.DriftDetectedBody{Report: domain.DriftReport{SensorID: "s1", ModelName: modelName, DriftDetected: true, EvaluatedAt: now}},
		now, sequentialIDs())
}

func TestMaxConcurrentBoundsSimultaneousTrainerInvocations(t *testing.T) {
	bus := eventbus.New(eventbus.Config{QueueCapacity: 10, PublishTimeout: time.Second}, nil)
	client := registry.NewMemoryClient()
	trainer := &blockingTrainer{release: make(chan struct{})}
	store := &fakeStore{}

	a := New(bus, client, trainer, store, time.Hour, 2, time.Minute, 0, sequentialIDs(), time.Now)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, model := range []string{"m1", "m2", "m3"} {
		if err := bus.Publish(context.Background(), driftEvent(model, time.Now())); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&trainer.current) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if peak := atomic.LoadInt64(&trainer.peak); peak > 2 {
		t.Fatalf("expected at most 2 simultaneous trainer invocations, observed %d", peak)
	}

	close(trainer.release)
	a.Stop(context.Background())
}

func TestCooldownSkipsSecondRetrainForSameModel(t *testing.T) {
	bus := eventbus.New(eventbus.Config{QueueCapacity: 10, PublishTimeout: time.Second}, nil)
	client := registry.NewMemoryClient()
	release := make(chan struct{})
	close(release)
	trainer := &blockingTrainer{release: release}
	store := &fakeStore{}

	a := New(bus, client, trainer, store, 24*time.Hour, 1, time.Minute, 0, sequentialIDs(), time.Now)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	skipped := make(chan domain.RetrainSkippedBody, 4)
	bus.Subscribe(domain.EventRetrainSkipped, "observer", func(ctx context.Context, event domain.Event) error {
		skipped <- event.Body.(domain.RetrainSkippedBody)
		return nil
	})
	completed := make(chan domain.RetrainRecord, 4)
	bus.Subscribe(domain.EventRetrainCompleted, "observer2", func(ctx context.Context, event domain.Event) error {
		completed <- event.Body.(domain.RetrainCompletedBody).Record
		return nil
	})

	if err := bus.Publish(context.Background(), driftEvent("m1", time.Now())); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("expected first retrain to complete")
	}

	if err := bus.Publish(context.Background(), driftEvent("m1", time.Now().Add(10*time.Minute))); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case body := <-skipped:
		if body.Reason != "cooldown" {
			t.Fatalf("expected cooldown skip, got %s", body.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("expected second drift event to be skipped for cooldown")
	}
}
