package eventbus

import (
	"context"
	"sync"

	"github.com/sentineledge/predictive-core/domain"
)

// DeadLetter is one record of an event that exhausted its retry budget.
type DeadLetter struct {
	Event domain.Event
	Err   error
}

// MemoryDLQ is an in-process DLQSink that retains dead letters for
// inspection, used by tests and as the default sink when nothing durable is
// configured.
type MemoryDLQ struct {
	mu      sync.Mutex
	letters []DeadLetter
}

// NewMemoryDLQ constructs an empty MemoryDLQ.
func NewMemoryDLQ() *MemoryDLQ {
	return &MemoryDLQ{}
}

func (m *MemoryDLQ) Send(_ context.Context, event domain.Event, lastErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, DeadLetter{Event: event, Err: lastErr})
}

// Letters returns a snapshot of everything dead-lettered so far.
func (m *MemoryDLQ) Letters() []DeadLetter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeadLetter, len(m.letters))
	copy(out, m.letters)
	return out
}
