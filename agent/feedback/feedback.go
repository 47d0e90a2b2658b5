// Package feedback implements the optional agent that captures
// SystemFeedbackReceived events into a bounded ring buffer. Per spec.md
// §9's Design Notes, the source's vector-indexed knowledge base is
// explicitly out of scope here; this is intentionally just a bounded
// buffer a LearningAgent (see agent/learning) can drain.
package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/sentineledge/predictive-core/agent"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
)

// Entry is one captured feedback item, timestamped on receipt.
type Entry struct {
	Body       domain.SystemFeedbackReceivedBody
	ReceivedAt time.Time
}

// RingBuffer is a fixed-capacity, overwrite-oldest buffer of feedback
// entries.
type RingBuffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	next     int
	full     bool
}

// NewRingBuffer constructs a buffer holding at most capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingBuffer{entries: make([]Entry, capacity), capacity: capacity}
}

// Add records entry, overwriting the oldest if the buffer is full.
func (r *RingBuffer) Add(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = entry
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns a copy of every entry currently held, oldest first.
func (r *RingBuffer) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, r.capacity)
	copy(out, r.entries[r.next:])
	copy(out[r.capacity-r.next:], r.entries[:r.next])
	return out
}

// Agent subscribes to SystemFeedbackReceived and appends each to its
// ring buffer. It holds no other state and never republishes.
type Agent struct {
	bus    *eventbus.Bus
	buffer *RingBuffer
	now    func() time.Time

	sub eventbus.Subscription
}

// New constructs a feedback Agent writing into buffer.
func New(bus *eventbus.Bus, buffer *RingBuffer, now func() time.Time) *Agent {
	return &Agent{bus: bus, buffer: buffer, now: now}
}

func (a *Agent) Name() string { return "feedback" }

func (a *Agent) Start(ctx context.Context) error {
	a.sub = a.bus.Subscribe(domain.EventSystemFeedbackReceived, "feedback", a.handle)
	return nil
}

func (a *Agent) Stop(ctx context.Context) error {
	a.sub.Stop()
	return nil
}

func (a *Agent) Health() agent.HealthReport {
	return agent.HealthReport{Status: agent.HealthHealthy, AsOf: a.now()}
}

func (a *Agent) handle(_ context.Context, event domain.Event) error {
	body, ok := event.Body.(domain.SystemFeedbackReceivedBody)
	if !ok {
		return nil
	}
	a.buffer.Add(Entry{Body: body, ReceivedAt: a.now()})
	return nil
}
