package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentineledge/predictive-core/observability"
)

// RedisBackend implements Backend against a shared Redis instance, so
// multiple process replicas agree on the same reservation.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing client. prefix namespaces keys on the
// shared keyspace (e.g. "idempotency:").
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

// ReserveIfAbsent implements Backend with SET key value NX PX ttl. When the
// NX set loses the race, it falls back to GET to report the value the
// winner actually stored.
func (r *RedisBackend) ReserveIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	fullKey := r.prefix + key

	start := time.Now()
	defer func() {
		observability.RedisLatencySeconds.Observe(time.Since(start).Seconds())
	}()

	ok, err := r.client.SetNX(ctx, fullKey, value, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return value, true, nil
	}

	existing, err := r.client.Get(ctx, fullKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The key expired between the failed SETNX and this GET, so the
			// winner's value is unknown; report an error rather than a
			// duplicate of an empty event ID.
			return "", false, errors.New("idempotency: key expired between SETNX and GET")
		}
		return "", false, err
	}
	return existing, false, nil
}
