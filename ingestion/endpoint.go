// Package ingestion holds the HTTP-free orchestrator that glues the
// idempotency store, time-series repository, and event bus together for
// the single write entry point into the core. Per spec.md §9's "split the
// HTTP adapter from the orchestrator" redesign flag, Endpoint.Ingest is
// callable directly from tests with no HTTP stack involved; cmd wires the
// stdlib net/http adapter around it.
package ingestion

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
	"github.com/sentineledge/predictive-core/idempotency"
	"github.com/sentineledge/predictive-core/observability"
	"github.com/sentineledge/predictive-core/timeseries"
)

// SensorRegistrar auto-registers a sensor master record on first sight,
// when the endpoint is configured to do so (insert-ignore bootstrap).
type SensorRegistrar interface {
	EnsureSensor(ctx context.Context, sensorID string, sensorType domain.SensorType) error
}

// Request is everything Ingest needs, independent of how it arrived.
type Request struct {
	Reading        domain.SensorReading
	IdempotencyKey string
}

// Result is what the caller (an HTTP handler or a test) reports back.
type Result struct {
	EventID       string
	CorrelationID string
	Duplicate     bool
}

// Config tunes the endpoint's idempotency TTL and repository retry policy.
type Config struct {
	IdempotencyTTL      time.Duration
	AutoRegisterSensors bool
	RepositoryRetries   int
	RetryBaseDelay      time.Duration
}

// Endpoint is the ingestion orchestrator: steps 1-6 of spec.md §4.11.
type Endpoint struct {
	idempotency *idempotency.Store
	repo        timeseries.Repository
	bus         *eventbus.Bus
	registrar   SensorRegistrar
	cfg         Config

	idGen func() string
	now   func() time.Time
}

// New constructs an Endpoint.
func New(idempotencyStore *idempotency.Store, repo timeseries.Repository, bus *eventbus.Bus, registrar SensorRegistrar, cfg Config, idGen func() string, now func() time.Time) *Endpoint {
	if cfg.RepositoryRetries <= 0 {
		cfg.RepositoryRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	return &Endpoint{idempotency: idempotencyStore, repo: repo, bus: bus, registrar: registrar, cfg: cfg, idGen: idGen, now: now}
}

// Ingest runs the full ingestion flow. It never returns a nil error with a
// zero-value Result, and it never reports success unless the row was
// persisted or a duplicate was correctly recognized.
func (e *Endpoint) Ingest(ctx context.Context, req Request) (Result, error) {
	correlationID := correlation.MustFrom(ctx)
	candidateEventID := e.idGen()

	if req.IdempotencyKey != "" {
		outcome, err := e.idempotency.Reserve(ctx, req.IdempotencyKey, candidateEventID, e.cfg.IdempotencyTTL)
		if err != nil {
			return Result{}, err
		}
		if !outcome.FirstTime {
			observability.ReadingsIngestedTotal.WithLabelValues(string(req.Reading.SensorType), "duplicate").Inc()
			return Result{EventID: outcome.OriginalEventID, CorrelationID: correlationID, Duplicate: true}, nil
		}
	}

	if err := validate(req.Reading); err != nil {
		observability.ReadingsIngestedTotal.WithLabelValues(string(req.Reading.SensorType), "validation_failed").Inc()
		return Result{}, err.WithCorrelation(correlationID)
	}

	if e.cfg.AutoRegisterSensors && e.registrar != nil {
		if err := e.registrar.EnsureSensor(ctx, req.Reading.SensorID, req.Reading.SensorType); err != nil {
			return Result{}, apperr.Wrap(apperr.KindTransient, "sensor_registration_failed", "could not auto-register sensor", err).WithCorrelation(correlationID)
		}
	}

	if err := e.insertWithRetry(ctx, req.Reading); err != nil {
		if errors.Is(err, apperr.ErrDuplicateKey) {
			observability.ReadingsIngestedTotal.WithLabelValues(string(req.Reading.SensorType), "duplicate").Inc()
			return Result{EventID: candidateEventID, CorrelationID: correlationID, Duplicate: true}, nil
		}
		return Result{}, err
	}

	ingested := domain.NewEvent(domain.EventSensorReadingIngested, correlationID, "ingestion",
		domain.SensorReadingIngestedBody{Reading: req.Reading, EventID: candidateEventID},
		e.now(), func() string { return candidateEventID })

	if err := e.bus.Publish(ctx, ingested); err != nil {
		// The row is already persisted; a publish failure here means the
		// downstream pipeline never started, which spec.md §4.11 treats as
		// a 5xx so the operator can reconcile from the persisted row.
		return Result{}, apperr.Wrap(apperr.KindTransient, "publish_failed", "reading persisted but pipeline dispatch failed", err).WithCorrelation(correlationID)
	}

	observability.ReadingsIngestedTotal.WithLabelValues(string(req.Reading.SensorType), "accepted").Inc()
	return Result{EventID: candidateEventID, CorrelationID: correlationID}, nil
}

// insertWithRetry retries a Transient repository failure up to
// cfg.RepositoryRetries times with exponential backoff (base, factor 2,
// jitter +/-25%), per spec.md §4.3. A Permanent or Duplicate failure is
// never retried.
func (e *Endpoint) insertWithRetry(ctx context.Context, reading domain.SensorReading) error {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.RepositoryRetries; attempt++ {
		err := e.repo.Insert(ctx, reading)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrDuplicateKey) {
			return err
		}
		kind, ok := apperr.KindOf(err)
		if ok && kind != apperr.KindTransient {
			return err
		}
		lastErr = err
		if attempt == e.cfg.RepositoryRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(e.cfg.RetryBaseDelay, attempt)):
		}
	}
	return lastErr
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	jitter := 1 + (rand.Float64()*0.5 - 0.25) // +/-25%
	return time.Duration(d * jitter)
}

func validate(reading domain.SensorReading) *apperr.Error {
	if reading.SensorID == "" {
		return apperr.New(apperr.KindValidation, "missing_sensor_id", "sensor_id is required")
	}
	if len(reading.SensorID) > 255 {
		return apperr.New(apperr.KindValidation, "sensor_id_too_long", "sensor_id must be at most 255 characters")
	}
	if math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
		return apperr.New(apperr.KindValidation, "non_finite_value", "value must be finite")
	}
	if reading.Quality != nil && (*reading.Quality < 0 || *reading.Quality > 1) {
		return apperr.New(apperr.KindValidation, "quality_out_of_range", "quality must be in [0,1]")
	}
	if reading.Timestamp.IsZero() {
		return apperr.New(apperr.KindValidation, "missing_timestamp", "timestamp is required")
	}
	return nil
}
