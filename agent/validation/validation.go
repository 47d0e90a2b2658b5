// Package validation implements the agent that checks an acquired reading
// for plausibility before it is persisted or scored for anomalies.
package validation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sentineledge/predictive-core/agent"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
)

// defaultSkewWindow bounds how far a reading's timestamp may drift from
// wall clock time before it is rejected as skewed.
const defaultSkewWindow = 24 * time.Hour

// Agent subscribes to DataAcquired and publishes DataValidated or
// ValidationFailed.
type Agent struct {
	bus        *eventbus.Bus
	skewWindow time.Duration
	idGen      func() string
	now        func() time.Time

	sub eventbus.Subscription
}

// New constructs a validation Agent. A zero skewWindow uses the default
// 24-hour tolerance.
func New(bus *eventbus.Bus, skewWindow time.Duration, idGen func() string, now func() time.Time) *Agent {
	if skewWindow <= 0 {
		skewWindow = defaultSkewWindow
	}
	return &Agent{bus: bus, skewWindow: skewWindow, idGen: idGen, now: now}
}

func (a *Agent) Name() string { return "validation" }

func (a *Agent) Start(ctx context.Context) error {
	a.sub = a.bus.Subscribe(domain.EventDataAcquired, "validation", a.handle)
	return nil
}

func (a *Agent) Stop(ctx context.Context) error {
	a.sub.Stop()
	return nil
}

func (a *Agent) Health() agent.HealthReport {
	return agent.HealthReport{Status: agent.HealthHealthy, AsOf: a.now()}
}

func (a *Agent) handle(ctx context.Context, event domain.Event) error {
	body, ok := event.Body.(domain.DataAcquiredBody)
	if !ok {
		return fmt.Errorf("validation: unexpected body type %T", event.Body)
	}

	correlationID := correlation.MustFrom(ctx)
	reading, clamped, reason, ok := a.validate(body.Reading, body.Sensor)
	if !ok {
		failed := domain.NewEvent(domain.EventValidationFailed, correlationID, a.Name(),
			domain.ValidationFailedBody{Reading: body.Reading, Reason: reason}, a.now(), a.idGen)
		return a.bus.Publish(ctx, failed)
	}

	validated := domain.NewEvent(domain.EventDataValidated, correlationID, a.Name(),
		domain.DataValidatedBody{Reading: reading, Sensor: body.Sensor, Clamped: clamped}, a.now(), a.idGen)
	return a.bus.Publish(ctx, validated)
}

// futureClampWindow bounds how far ahead of wall clock a timestamp may be
// before it is clamped to now rather than rejected outright.
const futureClampWindow = 60 * time.Second

// validate applies the plausibility checks: the value must be finite, the
// reading's sensor type must match the sensor master record, and the
// timestamp must fall within skewWindow of the current time. A timestamp
// ahead of wall clock by at most futureClampWindow is clamped to now and
// marked; ahead by more is rejected outright regardless of skewWindow. A
// timestamp behind wall clock is accepted unclamped up to skewWindow and
// rejected beyond it.
func (a *Agent) validate(reading domain.SensorReading, sensor domain.Sensor) (domain.SensorReading, bool, string, bool) {
	if math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
		return reading, false, "non_finite_value", false
	}
	if reading.SensorType != sensor.Type {
		return reading, false, "sensor_type_mismatch", false
	}

	now := a.now()
	future := reading.Timestamp.Sub(now)
	if future > futureClampWindow {
		return reading, false, "timestamp_future_skew", false
	}
	if future > 0 {
		reading.Timestamp = now
		return reading, true, "", true
	}

	past := -future
	if past > a.skewWindow {
		return reading, false, "timestamp_skew_exceeded", false
	}
	return reading, false, "", true
}
