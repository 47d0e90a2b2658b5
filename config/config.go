// Package config centralizes the environment-driven runtime settings,
// read with os.Getenv and strconv at startup rather than through a
// configuration framework.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every runtime tunable for the ingestion, drift, and retrain
// subsystems.
type Config struct {
	TTLIdempotencySeconds int
	BusQueueCapacity      int
	BusDefaultMaxAttempts int
	BusBackoffMin         time.Duration
	BusBackoffMax         time.Duration
	BusPublishTimeout     time.Duration
	BusGracePeriod        time.Duration

	DriftSchedule         string
	DriftPValueThreshold  float64
	DriftMinSamples       int
	DriftHardCap          int

	RetrainCooldown       time.Duration
	RetrainMaxConcurrent  int
	RetrainTimeout        time.Duration
	RetrainImprovementThreshold float64

	NotifyPerSensorRatePer5Min int
	NotifyDedupWindow          time.Duration

	ValidationSkewWindow time.Duration

	AnomalyScoreThreshold float64
	AnomalyModelCacheSize int

	RedisAddr string

	DriftAPIKeyRatePerMin int
}

// Default returns the baseline configuration used when no environment
// override is present.
func Default() Config {
	return Config{
		TTLIdempotencySeconds: 600,
		BusQueueCapacity:      10000,
		BusDefaultMaxAttempts: 3,
		BusBackoffMin:         2 * time.Second,
		BusBackoffMax:         6 * time.Second,
		BusPublishTimeout:     2 * time.Second,
		BusGracePeriod:        10 * time.Second,

		DriftSchedule:        "0 */6 * * *",
		DriftPValueThreshold: 0.05,
		DriftMinSamples:      30,
		DriftHardCap:         100000,

		RetrainCooldown:             24 * time.Hour,
		RetrainMaxConcurrent:        1,
		RetrainTimeout:              60 * time.Minute,
		RetrainImprovementThreshold: 0,

		NotifyPerSensorRatePer5Min: 1,
		NotifyDedupWindow:          60 * time.Second,

		ValidationSkewWindow: 24 * time.Hour,

		AnomalyScoreThreshold: 0.8,
		AnomalyModelCacheSize: 64,

		RedisAddr: "localhost:6379",

		DriftAPIKeyRatePerMin: 10,
	}
}

// FromEnv layers environment overrides onto Default(), applying each
// variable only if it is set and parses cleanly.
func FromEnv() Config {
	c := Default()

	if v := os.Getenv("TTL_IDEMPOTENCY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TTLIdempotencySeconds = n
		}
	}
	if v := os.Getenv("BUS_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BusQueueCapacity = n
		}
	}
	if v := os.Getenv("BUS_DEFAULT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BusDefaultMaxAttempts = n
		}
	}
	if v := os.Getenv("BUS_BACKOFF_MIN_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BusBackoffMin = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("BUS_BACKOFF_MAX_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BusBackoffMax = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("DRIFT_SCHEDULE"); v != "" {
		c.DriftSchedule = v
	}
	if v := os.Getenv("DRIFT_P_VALUE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.DriftPValueThreshold = f
		}
	}
	if v := os.Getenv("DRIFT_MIN_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.DriftMinSamples = n
		}
	}
	if v := os.Getenv("RETRAIN_COOLDOWN_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.RetrainCooldown = time.Duration(n) * time.Hour
		}
	}
	if v := os.Getenv("RETRAIN_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RetrainMaxConcurrent = n
		}
	}
	if v := os.Getenv("RETRAIN_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RetrainTimeout = time.Duration(n) * time.Minute
		}
	}
	if v := os.Getenv("ANOMALY_SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AnomalyScoreThreshold = f
		}
	}
	if v := os.Getenv("ANOMALY_MODEL_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.AnomalyModelCacheSize = n
		}
	}
	if v := os.Getenv("NOTIFY_PER_SENSOR_RATE_PER_5MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.NotifyPerSensorRatePer5Min = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}

	return c
}

// String renders the effective config as a one-line startup banner entry.
func (c Config) String() string {
	return fmt.Sprintf("idempotency_ttl=%ds bus_queue=%d drift_schedule=%q retrain_cooldown=%v retrain_max_concurrent=%d",
		c.TTLIdempotencySeconds, c.BusQueueCapacity, c.DriftSchedule, c.RetrainCooldown, c.RetrainMaxConcurrent)
}
