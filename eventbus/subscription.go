package eventbus

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/observability"
)

type subscription struct {
	label   string
	cfg     Config
	handler Handler
	dlq     DLQSink

	queue  chan domain.Event
	closed chan struct{}
	length int64
}

func newSubscription(label string, cfg Config, handler Handler, dlq DLQSink) *subscription {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 1000
	}
	return &subscription{
		label:   label,
		cfg:     cfg,
		handler: handler,
		dlq:     dlq,
		queue:   make(chan domain.Event, capacity),
		closed:  make(chan struct{}),
	}
}

func (s *subscription) depth() int {
	return int(atomic.LoadInt64(&s.length))
}

func (s *subscription) run() {
	for {
		select {
		case event, ok := <-s.queue:
			if !ok {
				return
			}
			atomic.AddInt64(&s.length, -1)
			s.deliver(event)
		case <-s.closed:
			// Drain remaining buffered events before exiting so Shutdown's
			// grace period is honored.
			for {
				select {
				case event, ok := <-s.queue:
					if !ok {
						return
					}
					atomic.AddInt64(&s.length, -1)
					s.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (s *subscription) deliver(event domain.Event) {
	ctx := correlation.Enter(context.Background(), event.Header.CorrelationID)

	maxAttempts := s.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	err := s.handler(ctx, event)
	if err == nil {
		return
	}

	if event.Header.Attempt >= maxAttempts {
		observability.EventsDLQedTotal.WithLabelValues(s.label, string(event.Header.EventType)).Inc()
		s.dlq.Send(ctx, event, err)
		return
	}

	log.Printf("[eventbus] subscriber %s: attempt %d/%d failed for event %s (%s): %v",
		s.label, event.Header.Attempt, maxAttempts, event.Header.EventID, event.Header.EventType, err)

	delay := s.backoff(event.Header.Attempt)
	next := event
	next.Header.Attempt++
	time.AfterFunc(delay, func() {
		atomic.AddInt64(&s.length, 1)
		select {
		case s.queue <- next:
		default:
			log.Printf("[eventbus] subscriber %s: retry queue full, dead-lettering event %s", s.label, next.Header.EventID)
			atomic.AddInt64(&s.length, -1)
			observability.EventsDLQedTotal.WithLabelValues(s.label, string(next.Header.EventType)).Inc()
			s.dlq.Send(ctx, next, err)
		}
	})
}

// backoff computes an exponential delay between BackoffMin and BackoffMax,
// doubling per attempt.
func (s *subscription) backoff(attempt int) time.Duration {
	min := s.cfg.BackoffMin
	if min <= 0 {
		min = 2 * time.Second
	}
	max := s.cfg.BackoffMax
	if max <= 0 {
		max = 6 * time.Second
	}

	d := min
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

func (s *subscription) stop() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}
