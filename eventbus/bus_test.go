package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sentineledge/predictive-core/domain"
)

func testEvent(id string) domain.Event {
	return domain.Event{
		Header: domain.Header{
			EventID:       id,
			EventType:     domain.EventDataAcquired,
			CorrelationID: "corr-1",
			OccurredAt:    time.Now(),
			Attempt:       1,
		},
		Body: domain.DataAcquiredBody{},
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := New(Config{QueueCapacity: 10, PublishTimeout: time.Second}, nil)
	var received atomic.Int32
	done := make(chan struct{})

	bus.Subscribe(domain.EventDataAcquired, "counter", func(ctx context.Context, event domain.Event) error {
		received.Add(1)
		close(done)
		return nil
	})

	if err := bus.Publish(context.Background(), testEvent("e1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
	if received.Load() != 1 {
		t.Fatalf("expected 1 delivery, got %d", received.Load())
	}
}

func TestPublishRetriesThenDeadLetters(t *testing.T) {
	dlq := NewMemoryDLQ()
	bus := New(Config{
		QueueCapacity:  10,
		MaxAttempts:    2,
		BackoffMin:     5 * time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
		PublishTimeout: time.Second,
	}, dlq)

	var attempts atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	bus.Subscribe(domain.EventDataAcquired, "always-fails", func(ctx context.Context, event domain.Event) error {
		attempts.Add(1)
		wg.Done()
		return errors.New("boom")
	})

	if err := bus.Publish(context.Background(), testEvent("e2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never exhausted attempts")
	}

	deadline := time.Now().Add(time.Second)
	for len(dlq.Letters()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	letters := dlq.Letters()
	if len(letters) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(letters))
	}
	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	bus := New(Config{PublishTimeout: time.Second}, nil)
	if err := bus.Publish(context.Background(), testEvent("e3")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
