// Command coreserver runs the ingestion-and-orchestration backbone:
// the HTTP ingestion and drift endpoints, the event bus, and the full set
// of core agents that implement the Golden Path and the MLOps control
// loop. Wiring lives here so every other package stays callable without an
// HTTP stack or a running process, per spec.md §9.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sentineledge/predictive-core/agent"
	"github.com/sentineledge/predictive-core/agent/acquisition"
	"github.com/sentineledge/predictive-core/agent/anomaly"
	"github.com/sentineledge/predictive-core/agent/driftsched"
	"github.com/sentineledge/predictive-core/agent/feedback"
	"github.com/sentineledge/predictive-core/agent/learning"
	"github.com/sentineledge/predictive-core/agent/notify"
	"github.com/sentineledge/predictive-core/agent/retrain"
	"github.com/sentineledge/predictive-core/agent/validation"
	"github.com/sentineledge/predictive-core/config"
	"github.com/sentineledge/predictive-core/directory"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/drift"
	"github.com/sentineledge/predictive-core/eventbus"
	"github.com/sentineledge/predictive-core/httpapi"
	"github.com/sentineledge/predictive-core/idempotency"
	"github.com/sentineledge/predictive-core/ingestion"
	"github.com/sentineledge/predictive-core/ratelimit"
	"github.com/sentineledge/predictive-core/registry"
	"github.com/sentineledge/predictive-core/timeseries"
)

func main() {
	cfg := config.FromEnv()
	log.Printf("[STARTUP] %s", cfg)

	now := time.Now
	idGen := uuid.NewString

	repo := newRepository(cfg)
	idemStore := idempotency.NewStore(newIdempotencyBackend(cfg))
	dlq := eventbus.NewMemoryDLQ()
	bus := eventbus.New(eventbus.Config{
		QueueCapacity:  cfg.BusQueueCapacity,
		MaxAttempts:    cfg.BusDefaultMaxAttempts,
		BackoffMin:     cfg.BusBackoffMin,
		BackoffMax:     cfg.BusBackoffMax,
		PublishTimeout: cfg.BusPublishTimeout,
		GracePeriod:    cfg.BusGracePeriod,
	}, dlq)

	dir := directory.NewMemory()
	regClient := registry.NewVerifiedClient(registry.NewMemoryClient())
	seedModels(regClient)

	alertStore := newInMemoryAlertStore()
	retrainStore := newInMemoryRetrainStore()

	endpoint := ingestion.New(idemStore, repo, bus, dir, ingestion.Config{
		IdempotencyTTL:      time.Duration(cfg.TTLIdempotencySeconds) * time.Second,
		AutoRegisterSensors: true,
		RepositoryRetries:   3,
		RetryBaseDelay:      100 * time.Millisecond,
	}, idGen, now)

	feedbackBuffer := feedback.NewRingBuffer(1000)

	reg := agent.NewRegistry()
	reg.Register(acquisition.New(bus, dir, idGen, now))
	reg.Register(validation.New(bus, cfg.ValidationSkewWindow, idGen, now))
	reg.Register(anomaly.New(bus, regClient, anomalyLoader{}, cfg.AnomalyScoreThreshold, cfg.AnomalyModelCacheSize, nil, idGen, now))
	reg.Register(notify.New(bus, logNotifier{}, alertStore, "email", cfg.NotifyPerSensorRatePer5Min, cfg.NotifyDedupWindow, idGen, now))
	reg.Register(driftsched.New(bus, repo, drift.NewDetector(cfg.DriftMinSamples), driftsched.StaticMonitor(monitoredPairs()),
		cfg.DriftSchedule, 30, cfg.DriftPValueThreshold, idGen, now))
	reg.Register(retrain.New(bus, regClient, stubTrainer{}, retrainStore, cfg.RetrainCooldown, cfg.RetrainMaxConcurrent, cfg.RetrainTimeout, cfg.RetrainImprovementThreshold, idGen, now))
	reg.Register(feedback.New(bus, feedbackBuffer, now))
	reg.Register(learning.New(feedbackBuffer, 5*time.Minute, now))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reg.StartAll(ctx); err != nil {
		log.Fatalf("[STARTUP] agent startup failed: %v", err)
	}

	server := &http.Server{
		Addr: listenAddr(),
		Handler: httpapi.NewRouter(
			&httpapi.IngestHandler{Endpoint: endpoint},
			&httpapi.DriftHandler{
				Repo:          repo,
				Detector:      drift.NewDetector(cfg.DriftMinSamples),
				DefaultPValue: cfg.DriftPValueThreshold,
				Now:           now,
			},
			&httpapi.HealthHandler{
				Readiness: []httpapi.Pinger{
					httpapi.PingerFunc(func(ctx context.Context) error { _, err := repo.Recent(ctx, "__health__", 1); return err }),
					httpapi.PingerFunc(func(ctx context.Context) error { return nil }), // event bus has no blocking readiness probe
					httpapi.PingerFunc(func(ctx context.Context) error { _, err := regClient.ListVersions(ctx, "__health__"); return err }),
				},
			},
			ratelimit.NewTokenBucketLimiter(float64(cfg.DriftAPIKeyRatePerMin)/60.0, cfg.DriftAPIKeyRatePerMin),
		),
	}

	go func() {
		log.Printf("[STARTUP] listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[STARTUP] http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[SHUTDOWN] signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	bus.Shutdown(shutdownCtx)

	if err := reg.StopAll(shutdownCtx); err != nil {
		log.Printf("[SHUTDOWN] one or more agents failed to stop cleanly: %v", err)
	}
	log.Println("[SHUTDOWN] complete")
}

func listenAddr() string {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		return v
	}
	return ":8080"
}

func newRepository(cfg config.Config) timeseries.Repository {
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		log.Println("[STARTUP] DATABASE_URL not set, using in-memory time-series repository")
		return timeseries.NewMemoryRepository()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, err := timeseries.NewPostgresRepository(ctx, connString)
	if err != nil {
		log.Printf("[STARTUP] postgres repository unavailable (%v), falling back to in-memory", err)
		return timeseries.NewMemoryRepository()
	}
	return repo
}

func newIdempotencyBackend(cfg config.Config) idempotency.Backend {
	if os.Getenv("REDIS_ADDR") == "" {
		log.Println("[STARTUP] REDIS_ADDR not set, using in-memory striped idempotency backend")
		return idempotency.NewMemoryBackend(time.Minute)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return idempotency.NewRedisBackend(client, "predictive-core:idem:")
}

// monitoredPairs is the static (sensor_id, model_name) list the scheduled
// drift driver checks. A production deployment would source this from the
// sensor directory or the model registry's tags; spec.md §9's Open
// Questions leaves "intelligent model selection" unresolved, so this core
// takes the simplest sufficient path.
func monitoredPairs() []driftsched.Pair {
	return []driftsched.Pair{}
}

func seedModels(client registry.Client) {
	for _, sensorType := range []domain.SensorType{
		domain.SensorTemperature, domain.SensorVibration, domain.SensorPressure,
		domain.SensorHumidity, domain.SensorVoltage, domain.SensorAudio,
	} {
		name := "anomaly-" + string(sensorType)
		version := domain.ModelVersion{
			Name:          name,
			Version:       1,
			Stage:         domain.StageProduction,
			FeatureNames:  []string{"value", "quality"},
			PrimaryMetric: 0.9,
		}
		if err := client.Register(context.Background(), version, []byte("seed-artifact:"+name)); err != nil {
			log.Printf("[STARTUP] failed to seed model %s: %v", name, err)
			continue
		}
		versions, err := client.ListVersions(context.Background(), name)
		if err != nil || len(versions) == 0 {
			continue
		}
		if err := client.Transition(context.Background(), name, versions[0].Version, domain.StageProduction); err != nil {
			log.Printf("[STARTUP] failed to promote seeded model %s: %v", name, err)
		}
	}
}
