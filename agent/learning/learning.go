// Package learning implements the optional LearningAgent described in
// spec.md §9's Design Notes: its coupling to the Golden Path is
// unevidenced in the source, so it is scoped here as an independent
// subsystem that periodically summarizes the feedback ring buffer rather
// than building any vector-indexed knowledge base (explicitly out of
// scope — see DESIGN.md).
package learning

import (
	"context"
	"log"
	"time"

	"github.com/sentineledge/predictive-core/agent"
	"github.com/sentineledge/predictive-core/agent/feedback"
)

// Agent periodically logs a summary of the feedback buffer's contents.
// It never mutates the buffer and never feeds back into the Golden Path.
type Agent struct {
	buffer   *feedback.RingBuffer
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a learning Agent summarizing buffer every interval.
func New(buffer *feedback.RingBuffer, interval time.Duration, now func() time.Time) *Agent {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Agent{buffer: buffer, interval: interval, now: now, done: make(chan struct{})}
}

func (a *Agent) Name() string { return "learning" }

func (a *Agent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go a.loop(runCtx)
	return nil
}

func (a *Agent) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	select {
	case <-a.done:
	case <-ctx.Done():
	}
	return nil
}

func (a *Agent) Health() agent.HealthReport {
	return agent.HealthReport{Status: agent.HealthHealthy, AsOf: a.now()}
}

func (a *Agent) loop(ctx context.Context) {
	defer close(a.done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.summarize()
		}
	}
}

func (a *Agent) summarize() {
	entries := a.buffer.Snapshot()
	bySource := make(map[string]int, len(entries))
	for _, e := range entries {
		bySource[e.Body.Source]++
	}
	log.Printf("[LEARNING] feedback buffer holds %d entries across %d sources", len(entries), len(bySource))
}
