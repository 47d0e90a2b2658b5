package httpapi

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by any collaborator whose reachability gates
// readiness: the repository, the event bus's DLQ sink, the registry
// client. A context-bound no-op (ctx context.Context) error method keeps
// this from depending on any one package's concrete type.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain function to Pinger, for collaborators whose
// native interface has no Ping method of its own.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves GET /health (liveness) and GET /health/ready
// (readiness, gated on every Pinger reporting reachable).
type HealthHandler struct {
	Readiness []Pinger
	Timeout   time.Duration
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"alive"}`))
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	for _, p := range h.Readiness {
		if err := p.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not_ready","error":"` + err.Error() + `"}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
