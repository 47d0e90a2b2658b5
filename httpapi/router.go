package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentineledge/predictive-core/middleware"
	"github.com/sentineledge/predictive-core/ratelimit"
)

// NewRouter wires the ingestion, drift, health, and metrics handlers behind
// the shared CORS middleware into one http.Handler, ready for
// http.Server.Handler. driftLimiter enforces spec.md §6's per-API-key
// request rate on the drift endpoint only.
func NewRouter(ingest *IngestHandler, checkDrift *DriftHandler, health *HealthHandler, driftLimiter *ratelimit.TokenBucketLimiter) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/data/ingest", ingest)
	mux.Handle("/v1/ml/check_drift", middleware.APIKeyLimiter(driftLimiter, "check_drift")(checkDrift))
	mux.HandleFunc("/health", health.Live)
	mux.HandleFunc("/health/ready", health.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.CORSMiddleware(mux)
}
