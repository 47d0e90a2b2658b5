// Package eventbus provides an in-process publish/subscribe bus for domain
// events: one bounded channel per subscriber, retry with backoff on handler
// failure, and a dead-letter sink once a handler has exhausted its
// attempts. Delivery is at-least-once — handlers must be idempotent.
package eventbus

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/observability"
)

// Handler processes one event. Returning an error schedules a retry (up to
// the subscription's MaxAttempts) before the event is dead-lettered.
type Handler func(ctx context.Context, event domain.Event) error

// DLQSink receives events that exhausted all retry attempts.
type DLQSink interface {
	Send(ctx context.Context, event domain.Event, lastErr error)
}

// Config tunes queueing, retry, and shutdown behavior for every
// subscription registered on a Bus.
type Config struct {
	QueueCapacity  int
	MaxAttempts    int
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	PublishTimeout time.Duration
	GracePeriod    time.Duration
}

// Bus fans out published events to every subscriber registered for the
// event's type.
type Bus struct {
	cfg Config
	dlq DLQSink

	mu   sync.RWMutex
	subs map[domain.EventType][]*subscription

	wg sync.WaitGroup
}

// New constructs a Bus. A nil dlq discards exhausted events after logging.
func New(cfg Config, dlq DLQSink) *Bus {
	if dlq == nil {
		dlq = discardDLQ{}
	}
	return &Bus{
		cfg:  cfg,
		dlq:  dlq,
		subs: make(map[domain.EventType][]*subscription),
	}
}

// Subscription is a handle returned by Subscribe, used to stop consuming.
type Subscription struct {
	sub *subscription
}

// Stop signals the subscriber's worker, which delivers the events already
// buffered and then exits. Stop does not wait for it, and the subscription
// stays registered on the bus.
func (s Subscription) Stop() {
	s.sub.stop()
}

// Subscribe registers handler for eventType with a bounded channel and its
// own consumer goroutine.
func (b *Bus) Subscribe(eventType domain.EventType, label string, handler Handler) Subscription {
	sub := newSubscription(label, b.cfg, handler, b.dlq)

	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sub.run()
	}()

	return Subscription{sub: sub}
}

// Publish fans event out to every subscriber of event.Header.EventType. It
// blocks at most PublishTimeout per subscriber waiting for queue room; if
// that deadline passes the subscriber's queue is full and Publish returns
// apperr.ErrQueueFull without affecting delivery to other subscribers.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	if event.Header.CorrelationID == "" {
		event.Header.CorrelationID = correlation.MustFrom(ctx)
	}

	b.mu.RLock()
	targets := append([]*subscription(nil), b.subs[event.Header.EventType]...)
	b.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	timeout := b.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	var queueFull bool
	for _, sub := range targets {
		timer := time.NewTimer(timeout)
		select {
		case sub.queue <- event:
			atomic.AddInt64(&sub.length, 1)
			observability.EventBusQueueDepth.WithLabelValues(sub.label).Set(float64(sub.depth()))
		case <-timer.C:
			queueFull = true
			log.Printf("[eventbus] subscriber %s queue full, dropping event %s (%s)", sub.label, event.Header.EventID, event.Header.EventType)
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
	observability.EventsPublishedTotal.WithLabelValues(string(event.Header.EventType)).Inc()
	if queueFull {
		return apperr.ErrQueueFull
	}
	return nil
}

// Shutdown stops accepting new work is the caller's responsibility (stop
// calling Publish first); Shutdown waits up to GracePeriod for every
// subscriber's queue to drain before forcing a stop.
func (b *Bus) Shutdown(ctx context.Context) {
	b.mu.RLock()
	all := make([]*subscription, 0)
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.mu.RUnlock()

	grace := b.cfg.GracePeriod
	if grace <= 0 {
		grace = 10 * time.Second
	}
	deadline := time.After(grace)

drain:
	for _, sub := range all {
		for sub.depth() > 0 {
			select {
			case <-deadline:
				break drain
			case <-time.After(20 * time.Millisecond):
			}
		}
	}

	for _, sub := range all {
		sub.stop()
	}
	b.wg.Wait()
}

type discardDLQ struct{}

func (discardDLQ) Send(_ context.Context, event domain.Event, lastErr error) {
	log.Printf("[eventbus] DLQ (discarded, no sink configured): event=%s type=%s err=%v", event.Header.EventID, event.Header.EventType, lastErr)
}
