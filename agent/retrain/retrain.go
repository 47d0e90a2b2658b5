// Package retrain implements the agent that consumes DriftDetected events
// and drives a model through a retrain attempt under cooldown and
// concurrency policies, transitioning the winning candidate to Staging.
package retrain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentineledge/predictive-core/agent"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
	"github.com/sentineledge/predictive-core/observability"
	"github.com/sentineledge/predictive-core/registry"
)

// Trainer invokes the external training job for modelName, triggered by
// trigger, and returns the candidate version, its serialized artifact, and
// the metrics it was evaluated on. The statistical internals of training
// are entirely outside this repository.
type Trainer interface {
	Train(ctx context.Context, modelName string, trigger domain.DriftReport) (domain.ModelVersion, []byte, domain.TrainingMetrics, error)
}

// Store persists a RetrainRecord for audit, successful or not.
type Store interface {
	Persist(ctx context.Context, record domain.RetrainRecord) error
}

// modelState is the per-model Idle/InProgress state machine, guarded by its
// own mutex so unrelated models never contend.
type modelState struct {
	mu              sync.Mutex
	inProgress      bool
	hasCompleted    bool
	lastCompletedAt time.Time
}

// Agent subscribes to DriftDetected and owns the per-model retrain state
// machine plus a process-wide in-flight counter enforcing MaxConcurrent.
type Agent struct {
	bus      *eventbus.Bus
	client   registry.Client
	trainer  Trainer
	store    Store

	disabled             atomic.Bool
	cooldown             time.Duration
	maxConcurrent         int64
	timeout              time.Duration
	improvementThreshold float64

	idGen func() string
	now   func() time.Time

	states     sync.Map // model name -> *modelState
	inFlight   int64

	sub eventbus.Subscription
	wg  sync.WaitGroup
}

// New constructs a retrain Agent.
func New(bus *eventbus.Bus, client registry.Client, trainer Trainer, store Store, cooldown time.Duration, maxConcurrent int, timeout time.Duration, improvementThreshold float64, idGen func() string, now func() time.Time) *Agent {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Agent{
		bus:                   bus,
		client:                client,
		trainer:               trainer,
		store:                 store,
		cooldown:              cooldown,
		maxConcurrent:         int64(maxConcurrent),
		timeout:               timeout,
		improvementThreshold:  improvementThreshold,
		idGen:                 idGen,
		now:                   now,
	}
}

func (a *Agent) Name() string { return "retrain" }

// SetDisabled toggles the global retraining kill switch at runtime.
func (a *Agent) SetDisabled(disabled bool) {
	a.disabled.Store(disabled)
}

func (a *Agent) Start(ctx context.Context) error {
	a.sub = a.bus.Subscribe(domain.EventDriftDetected, "retrain", a.handle)
	return nil
}

func (a *Agent) Stop(ctx context.Context) error {
	a.sub.Stop()
	a.wg.Wait()
	return nil
}

func (a *Agent) Health() agent.HealthReport {
	return agent.HealthReport{Status: agent.HealthHealthy, AsOf: a.now()}
}

func (a *Agent) stateFor(modelName string) *modelState {
	actual, _ := a.states.LoadOrStore(modelName, &modelState{})
	return actual.(*modelState)
}

// handle implements spec.md §4.9's six-step decision. Steps 1-4 decide
// synchronously whether to proceed; step 5's trainer invocation and
// comparison run in a background goroutine so the bus's single worker per
// subscription is never blocked for the (potentially hour-long) duration
// of a retrain, and so MaxConcurrent retrains can genuinely run at once.
func (a *Agent) handle(ctx context.Context, event domain.Event) error {
	body, ok := event.Body.(domain.DriftDetectedBody)
	if !ok {
		return fmt.Errorf("retrain: unexpected body type %T", event.Body)
	}
	report := body.Report
	correlationID := correlation.MustFrom(ctx)

	if a.disabled.Load() {
		return a.publishSkip(ctx, report.ModelName, "disabled", nil)
	}

	state := a.stateFor(report.ModelName)
	state.mu.Lock()

	if state.inProgress {
		state.mu.Unlock()
		return a.publishSkip(ctx, report.ModelName, "in_progress", nil)
	}
	if state.hasCompleted {
		nextEligible := state.lastCompletedAt.Add(a.cooldown)
		if a.now().Before(nextEligible) {
			state.mu.Unlock()
			return a.publishSkip(ctx, report.ModelName, "cooldown", &nextEligible)
		}
	}
	if atomic.LoadInt64(&a.inFlight) >= a.maxConcurrent {
		state.mu.Unlock()
		return a.publishSkip(ctx, report.ModelName, "capacity", nil)
	}

	state.inProgress = true
	atomic.AddInt64(&a.inFlight, 1)
	observability.RetrainInFlight.Set(float64(atomic.LoadInt64(&a.inFlight)))
	state.mu.Unlock()

	a.wg.Add(1)
	go a.run(context.Background(), report, event.Header.EventID, correlationID, state)
	return nil
}

func (a *Agent) publishSkip(ctx context.Context, modelName, reason string, nextEligible *time.Time) error {
	observability.RetrainJobsTotal.WithLabelValues(modelName, "skipped").Inc()
	skipped := domain.NewEvent(domain.EventRetrainSkipped, correlation.MustFrom(ctx), a.Name(),
		domain.RetrainSkippedBody{ModelName: modelName, Reason: reason, NextEligibleAt: nextEligible}, a.now(), a.idGen)
	return a.bus.Publish(ctx, skipped)
}

// run performs the actual retrain attempt. It always releases the in-flight
// slot and updates the cooldown timer from the end of the attempt,
// regardless of outcome, per spec.md §4.9 step 6.
func (a *Agent) run(parent context.Context, trigger domain.DriftReport, triggeringEventID, correlationID string, state *modelState) {
	defer a.wg.Done()
	defer func() {
		state.mu.Lock()
		state.inProgress = false
		state.hasCompleted = true
		state.lastCompletedAt = a.now()
		state.mu.Unlock()
		atomic.AddInt64(&a.inFlight, -1)
		observability.RetrainInFlight.Set(float64(atomic.LoadInt64(&a.inFlight)))
	}()

	ctx := correlation.Enter(parent, correlationID)
	timeout := a.timeout
	if timeout <= 0 {
		timeout = 60 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startedAt := a.now()
	record := domain.RetrainRecord{
		ModelName:          trigger.ModelName,
		TriggeredByEventID: triggeringEventID,
		StartedAt:          startedAt,
	}

	candidate, artifact, metrics, err := a.trainer.Train(ctx, trigger.ModelName, trigger)
	endedAt := a.now()
	record.EndedAt = &endedAt

	if err != nil {
		outcome := domain.RetrainFailure
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = domain.RetrainTimeout
		}
		record.Outcome = outcome
		record.Error = err.Error()
		a.finish(ctx, record, outcome)
		return
	}

	candidate.PrimaryMetric = metrics.PrimaryMetric
	current, currentErr := a.client.GetActive(ctx, trigger.ModelName)
	baseline := -1.0
	hasBaseline := currentErr == nil
	if hasBaseline {
		baseline = current.PrimaryMetric
	}

	if err := a.client.Register(ctx, candidate, artifact); err != nil {
		record.Outcome = domain.RetrainFailure
		record.Error = fmt.Sprintf("register candidate: %v", err)
		a.finish(ctx, record, domain.RetrainFailure)
		return
	}

	improved := !hasBaseline || metrics.PrimaryMetric-baseline >= a.improvementThreshold
	if !improved {
		record.Outcome = domain.RetrainRejectedNoImprove
		a.finish(ctx, record, domain.RetrainRejectedNoImprove)
		return
	}

	if err := a.client.Transition(ctx, candidate.Name, candidate.Version, domain.StageStaging); err != nil {
		record.Outcome = domain.RetrainFailure
		record.Error = fmt.Sprintf("transition to staging: %v", err)
		a.finish(ctx, record, domain.RetrainFailure)
		return
	}

	version := candidate.Version
	record.Outcome = domain.RetrainSuccess
	record.NewVersion = &version
	a.finish(ctx, record, domain.RetrainSuccess)
}

func (a *Agent) finish(ctx context.Context, record domain.RetrainRecord, outcome domain.RetrainOutcome) {
	observability.RetrainJobsTotal.WithLabelValues(record.ModelName, string(outcome)).Inc()

	if err := a.store.Persist(ctx, record); err != nil {
		log.Printf("[RETRAIN] failed to persist retrain record for %s: %v", record.ModelName, err)
	}

	completed := domain.NewEvent(domain.EventRetrainCompleted, correlation.MustFrom(ctx), a.Name(),
		domain.RetrainCompletedBody{Record: record}, a.now(), a.idGen)
	if err := a.bus.Publish(ctx, completed); err != nil {
		log.Printf("[RETRAIN] failed to publish RetrainCompleted for %s: %v", record.ModelName, err)
	}
}
