// Package ratelimit provides a per-key token bucket limiter shared by the
// notification agent's per-sensor throttling and the API key middleware's
// per-key request throttling.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter lazily allocates one token bucket per key, all sharing
// the same rate and burst.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewTokenBucketLimiter constructs a limiter admitting r tokens/second per
// key with burst b.
func NewTokenBucketLimiter(r float64, b int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

// Allow reports whether key may proceed right now, consuming a token if so.
func (l *TokenBucketLimiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

func (l *TokenBucketLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = limiter
	}
	return limiter
}
