package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentineledge/predictive-core/ratelimit"
)

func TestAPIKeyLimiterAllowsWithinBurst(t *testing.T) {
	limiter := ratelimit.NewTokenBucketLimiter(1, 2)
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true; w.WriteHeader(http.StatusOK) })

	handler := APIKeyLimiter(limiter, "test_endpoint")(next)
	req := httptest.NewRequest(http.MethodPost, "/v1/ml/check_drift", nil)
	req.Header.Set("X-API-Key", "tenant-a")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected request within burst to pass through, got called=%v code=%d", called, rec.Code)
	}
}

func TestAPIKeyLimiterRejectsOverBurst(t *testing.T) {
	limiter := ratelimit.NewTokenBucketLimiter(0.001, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := APIKeyLimiter(limiter, "test_endpoint")(next)

	req := httptest.NewRequest(http.MethodPost, "/v1/ml/check_drift", nil)
	req.Header.Set("X-API-Key", "tenant-b")

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d: %s", second.Code, second.Body.String())
	}
}

func TestAPIKeyLimiterDefaultsMissingKeyToAnonymous(t *testing.T) {
	limiter := ratelimit.NewTokenBucketLimiter(0.001, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := APIKeyLimiter(limiter, "test_endpoint")(next)

	req := httptest.NewRequest(http.MethodPost, "/v1/ml/check_drift", nil)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)

	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected anonymous callers to share one bucket and get rate-limited, got %d", second.Code)
	}
}
