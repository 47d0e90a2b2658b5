package agent

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sentineledge/predictive-core/observability"
)

// Registry owns the full set of agents the core runs and coordinates their
// startup and shutdown as one unit.
type Registry struct {
	mu     sync.Mutex
	agents []Agent
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an agent to the set. Must be called before StartAll.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, a)
}

// maxParallelStart bounds how many agents start concurrently.
const maxParallelStart = 4

// StartAll starts every registered agent with bounded parallelism. On the
// first failure it cancels a shared context, stops every agent that had
// already started, and returns the error.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	agents := append([]Agent(nil), r.agents...)
	r.mu.Unlock()

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, maxParallelStart)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		started   []Agent
		firstErr  error
	)

	for _, a := range agents {
		a := a
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			select {
			case <-groupCtx.Done():
				return
			default:
			}

			log.Printf("[AGENT] starting %s", a.Name())
			if err := a.Start(groupCtx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("agent %s: %w", a.Name(), err)
					cancel()
				}
				mu.Unlock()
				return
			}
			mu.Lock()
			started = append(started, a)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if firstErr != nil {
		for _, a := range started {
			if err := a.Stop(context.Background()); err != nil {
				log.Printf("[AGENT] rollback stop of %s failed: %v", a.Name(), err)
			}
		}
		return firstErr
	}
	return nil
}

// StopAll stops every registered agent, continuing past individual errors
// and returning the last one observed.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	agents := append([]Agent(nil), r.agents...)
	r.mu.Unlock()

	var lastErr error
	for _, a := range agents {
		if err := a.Stop(ctx); err != nil {
			log.Printf("[AGENT] stop of %s failed: %v", a.Name(), err)
			lastErr = err
		}
	}
	return lastErr
}

// Health reports the current health of every registered agent and updates
// the per-agent health gauge.
func (r *Registry) Health() map[string]HealthReport {
	r.mu.Lock()
	agents := append([]Agent(nil), r.agents...)
	r.mu.Unlock()

	out := make(map[string]HealthReport, len(agents))
	for _, a := range agents {
		report := a.Health()
		out[a.Name()] = report

		value := 0.0
		if report.Status == HealthHealthy {
			value = 1.0
		}
		observability.AgentHealth.WithLabelValues(a.Name()).Set(value)
	}
	return out
}
