package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/observability"
	"github.com/sentineledge/predictive-core/ratelimit"
)

// APIKeyLimiter enforces a per-API-key request rate, adapted from the
// header-extraction shape of AuthMiddleware but repurposed for throttling
// rather than authentication: a missing X-API-Key is treated as the
// "anonymous" key rather than rejected outright, since this core has no
// API-key issuance authority of its own (spec.md §1 excludes it).
func APIKeyLimiter(limiter *ratelimit.TokenBucketLimiter, endpointLabel string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = "anonymous"
			}
			if !limiter.Allow(key) {
				observability.APIRateLimitedTotal.WithLabelValues(endpointLabel).Inc()
				envelope := apperr.New(apperr.KindCapacity, "rate_limited", "rate limit exceeded for this API key").Envelope()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(envelope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
