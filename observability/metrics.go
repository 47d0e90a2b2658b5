package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsIngestedTotal counts accepted ingestion requests by outcome.
	ReadingsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_readings_ingested_total",
		Help: "Total number of sensor readings accepted by the ingestion endpoint",
	}, []string{"sensor_type", "outcome"}) // outcome: accepted, duplicate, validation_failed

	// IngestLatencySeconds tracks end-to-end ingestion request latency.
	IngestLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pm_ingest_latency_seconds",
		Help:    "Latency of the ingestion endpoint from request to response",
		Buckets: prometheus.DefBuckets,
	})

	// EventBusQueueDepth tracks the current depth of each subscriber's queue.
	EventBusQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pm_eventbus_queue_depth",
		Help: "Current number of buffered events per subscriber",
	}, []string{"subscriber"})

	// EventsPublishedTotal counts events published on the bus by type.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_events_published_total",
		Help: "Total number of events published on the event bus",
	}, []string{"event_type"})

	// EventsDLQedTotal counts events that exhausted retry attempts.
	EventsDLQedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_events_dlq_total",
		Help: "Total number of events dead-lettered after exhausting retry attempts",
	}, []string{"subscriber", "event_type"})

	// AnomaliesDetectedTotal counts anomaly alerts raised, by model and severity.
	AnomaliesDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_anomalies_detected_total",
		Help: "Total number of anomaly alerts raised",
	}, []string{"model_name", "severity"})

	// NotificationsSentTotal counts notification dispatch attempts by outcome.
	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_notifications_sent_total",
		Help: "Total number of notification dispatch attempts",
	}, []string{"channel", "outcome"}) // outcome: sent, rate_limited, deduped, failed

	// ModelCacheSize tracks the number of warm model artifacts held in cache.
	ModelCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pm_model_cache_size",
		Help: "Current number of model artifacts held in the warm cache",
	})

	// ModelCacheEvictionsTotal counts LRU evictions from the warm model cache.
	ModelCacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_model_cache_evictions_total",
		Help: "Total number of model artifacts evicted from the warm cache",
	})

	// DriftChecksTotal counts scheduled drift checks by outcome.
	DriftChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_drift_checks_total",
		Help: "Total number of scheduled drift checks run",
	}, []string{"outcome"}) // outcome: drift_detected, no_drift, insufficient_data

	// ScheduleOverlapTotal counts skipped drift ticks due to an in-flight check for the same pair.
	ScheduleOverlapTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_drift_schedule_overlap_total",
		Help: "Total number of drift schedule ticks skipped due to an overlapping in-flight check",
	}, []string{"sensor_id", "model_name"})

	// RetrainJobsTotal counts retrain job outcomes.
	RetrainJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_retrain_jobs_total",
		Help: "Total number of retrain jobs by final outcome",
	}, []string{"model_name", "outcome"}) // outcome: success, rejected_no_improvement, failure, timeout, skipped

	// RetrainInFlight tracks the current number of in-progress retrain jobs.
	RetrainInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pm_retrain_in_flight",
		Help: "Current number of retrain jobs in progress",
	})

	// IdempotencyLockAcquiredTotal counts first-time reservations granted.
	IdempotencyLockAcquiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_idempotency_reservations_total",
		Help: "Total number of first-time idempotency reservations granted",
	})

	// IdempotencyDuplicatesTotal counts replayed submissions detected.
	IdempotencyDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_idempotency_duplicates_total",
		Help: "Total number of submissions recognized as replays within the TTL window",
	})

	// RedisLatencySeconds tracks Redis round-trip latency for the idempotency backend.
	RedisLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pm_redis_roundtrip_latency_seconds",
		Help:    "Redis operation latency for the idempotency backend",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
	})

	// APIRateLimitedTotal counts drift endpoint requests rejected by the API key limiter.
	APIRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_api_rate_limited_total",
		Help: "API requests rejected by the per-API-key rate limiter",
	}, []string{"endpoint"})

	// IntegrityViolationsTotal counts model artifact content-hash mismatches.
	IntegrityViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_integrity_violations_total",
		Help: "Total number of model artifact content-hash mismatches detected",
	}, []string{"model_name"})

	// AgentHealth tracks per-agent health as reported to the registry.
	AgentHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pm_agent_health",
		Help: "Current agent health as reported to the registry (1=healthy, 0=unhealthy)",
	}, []string{"agent"})
)
