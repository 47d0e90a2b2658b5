// Package anomaly implements the agent that scores a validated reading
// against its sensor domain's active model and raises an alert when the
// score crosses the configured threshold.
package anomaly

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sentineledge/predictive-core/agent"
	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
	"github.com/sentineledge/predictive-core/observability"
	"github.com/sentineledge/predictive-core/registry"
)

// ModelNamer resolves the model name that scores readings of a sensor type.
// The default convention is "anomaly-<sensor_type>"; callers with a richer
// model-selection policy can supply their own.
type ModelNamer func(domain.SensorType) string

func defaultModelNamer(sensorType domain.SensorType) string {
	return "anomaly-" + string(sensorType)
}

// Agent subscribes to DataValidated and publishes AnomalyDetected.
type Agent struct {
	bus       *eventbus.Bus
	client    registry.Client
	loader    ModelLoader
	threshold float64
	modelName ModelNamer
	cache     *modelCache
	idGen     func() string
	now       func() time.Time

	sub eventbus.Subscription
}

// New constructs an anomaly detection Agent. A nil namer uses the default
// "anomaly-<sensor_type>" convention.
func New(bus *eventbus.Bus, client registry.Client, loader ModelLoader, threshold float64, cacheSize int, namer ModelNamer, idGen func() string, now func() time.Time) *Agent {
	if namer == nil {
		namer = defaultModelNamer
	}
	return &Agent{
		bus:       bus,
		client:    client,
		loader:    loader,
		threshold: threshold,
		modelName: namer,
		cache:     newModelCache(cacheSize),
		idGen:     idGen,
		now:       now,
	}
}

func (a *Agent) Name() string { return "anomaly" }

func (a *Agent) Start(ctx context.Context) error {
	a.sub = a.bus.Subscribe(domain.EventDataValidated, "anomaly", a.handle)
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
	body, ok := event.Body.(domain.DataValidatedBody)
	if !ok {
		return fmt.Errorf("anomaly: unexpected body type %T", event.Body)
	}

	modelName := a.modelName(body.Reading.SensorType)
	active, err := a.client.GetActive(ctx, modelName)
	if err != nil {
		return fmt.Errorf("anomaly: resolve active model %s: %w", modelName, err)
	}

	cacheKey := modelName + "@" + strconv.Itoa(active.Version)
	model, err := a.cache.getOrLoad(cacheKey, func() (ScoringModel, error) {
		artifact, err := a.client.LoadArtifact(ctx, active)
		if err != nil {
			return nil, fmt.Errorf("load artifact %s: %w", cacheKey, err)
		}
		return a.loader.Load(artifact)
	})
	if err != nil {
		return err
	}

	features, ok := buildFeatures(body.Reading, active.FeatureNames)
	if !ok {
		return apperr.ErrFeatureSchemaMismatch.WithCorrelation(correlation.MustFrom(ctx))
	}

	score, err := model.Score(features)
	if err != nil {
		return fmt.Errorf("anomaly: score sensor %s with model %s: %w", body.Reading.SensorID, modelName, err)
	}
	if score <= a.threshold {
		return nil
	}

	severity := severityFor(score, a.threshold)
	alert := domain.AnomalyAlert{
		ID:         uuid.NewString(),
		SensorID:   body.Reading.SensorID,
		Kind:       "score_threshold_exceeded",
		Severity:   severity,
		Confidence: score,
		Description: fmt.Sprintf("model %s scored %.4f, above threshold %.4f", modelName, score, a.threshold),
		Evidence: map[string]string{
			"model_name": modelName,
			"model_version": strconv.Itoa(active.Version),
			"score":      strconv.FormatFloat(score, 'f', 6, 64),
		},
		Status:    domain.AlertOpen,
		CreatedAt: a.now(),
		UpdatedAt: a.now(),
	}
	observability.AnomaliesDetectedTotal.WithLabelValues(modelName, strconv.Itoa(severity)).Inc()

	detected := domain.NewEvent(domain.EventAnomalyDetected, correlation.MustFrom(ctx), a.Name(),
		domain.AnomalyDetectedBody{Alert: alert}, a.now(), a.idGen)
	return a.bus.Publish(ctx, detected)
}

// severityFor maps how far the score clears the threshold onto the 1..5
// scale AnomalyAlert.Severity uses.
func severityFor(score, threshold float64) int {
	if threshold <= 0 {
		return 3
	}
	ratio := score / threshold
	switch {
	case ratio >= 2:
		return 5
	case ratio >= 1.5:
		return 4
	case ratio >= 1.2:
		return 3
	case ratio >= 1.05:
		return 2
	default:
		return 1
	}
}
