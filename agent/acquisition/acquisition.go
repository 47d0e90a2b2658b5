// Package acquisition implements the agent that enriches a raw ingested
// reading with its sensor master record and republishes it for validation.
package acquisition

import (
	"context"
	"fmt"
	"time"

	"github.com/sentineledge/predictive-core/agent"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
)

// SensorDirectory resolves a sensor's master record.
type SensorDirectory interface {
	Lookup(ctx context.Context, sensorID string) (domain.Sensor, bool, error)
}

// Agent subscribes to SensorReadingIngested, resolves the sensor master
// record, and republishes DataAcquired (or ValidationFailed if the sensor
// is unknown — acquisition owns directory lookups, so an unknown sensor is
// this agent's failure to report, not validation's).
type Agent struct {
	bus       *eventbus.Bus
	directory SensorDirectory
	idGen     func() string
	now       func() time.Time

	sub eventbus.Subscription
}

// New constructs an acquisition Agent.
func New(bus *eventbus.Bus, directory SensorDirectory, idGen func() string, now func() time.Time) *Agent {
	return &Agent{bus: bus, directory: directory, idGen: idGen, now: now}
}

func (a *Agent) Name() string { return "acquisition" }

func (a *Agent) Start(ctx context.Context) error {
	a.sub = a.bus.Subscribe(domain.EventSensorReadingIngested, "acquisition", a.handle)
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
	body, ok := event.Body.(domain.SensorReadingIngestedBody)
	if !ok {
		return fmt.Errorf("acquisition: unexpected body type %T", event.Body)
	}

	sensor, found, err := a.directory.Lookup(ctx, body.Reading.SensorID)
	if err != nil {
		return fmt.Errorf("acquisition: directory lookup for %s: %w", body.Reading.SensorID, err)
	}

	correlationID := correlation.MustFrom(ctx)
	if !found {
		failed := domain.NewEvent(domain.EventValidationFailed, correlationID, a.Name(),
			domain.ValidationFailedBody{Reading: body.Reading, Reason: "unknown_sensor"}, a.now(), a.idGen)
		return a.bus.Publish(ctx, failed)
	}

	acquired := domain.NewEvent(domain.EventDataAcquired, correlationID, a.Name(),
		domain.DataAcquiredBody{Reading: body.Reading, Sensor: sensor}, a.now(), a.idGen)
	return a.bus.Publish(ctx, acquired)
}
