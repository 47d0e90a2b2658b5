// Package httpapi is the stdlib net/http adapter around the ingestion
// orchestrator and the drift detector. Per spec.md §9's "split the HTTP
// adapter from the orchestrator" redesign flag, every handler here does
// nothing but decode, call the collaborator, and encode — no business
// logic lives in this package.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/ingestion"
	"github.com/sentineledge/predictive-core/observability"
)

// IngestHandler adapts ingestion.Endpoint to POST /v1/data/ingest.
type IngestHandler struct {
	Endpoint *ingestion.Endpoint
}

type ingestRequestBody struct {
	SensorID   string            `json:"sensor_id"`
	SensorType string            `json:"sensor_type"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit"`
	Timestamp  time.Time         `json:"timestamp"`
	Quality    *float64          `json:"quality"`
	Metadata   map[string]string `json:"metadata"`
}

type ingestAcceptedResponse struct {
	EventID       string `json:"event_id"`
	CorrelationID string `json:"correlation_id"`
}

type ingestDuplicateResponse struct {
	Status        string `json:"status"`
	EventID       string `json:"event_id"`
	CorrelationID string `json:"correlation_id"`
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	correlationID := r.Header.Get("X-Request-ID")
	ctx := correlation.Enter(r.Context(), correlationID)
	correlationID = correlation.MustFrom(ctx)
	w.Header().Set("X-Request-ID", correlationID)

	timer := prometheusTimer()
	defer timer()

	var body ingestRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, correlationID, apperr.New(apperr.KindValidation, "malformed_body", "request body is not valid JSON"))
		return
	}

	reading := domain.SensorReading{
		SensorID:   body.SensorID,
		SensorType: domain.SensorType(body.SensorType),
		Value:      body.Value,
		Unit:       body.Unit,
		Timestamp:  body.Timestamp,
		Quality:    body.Quality,
		Metadata:   body.Metadata,
	}

	result, err := h.Endpoint.Ingest(ctx, ingestion.Request{
		Reading:        reading,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeEndpointError(w, correlationID, err)
		return
	}

	if result.Duplicate {
		writeJSON(w, http.StatusOK, ingestDuplicateResponse{
			Status:        "duplicate_ignored",
			EventID:       result.EventID,
			CorrelationID: result.CorrelationID,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, ingestAcceptedResponse{
		EventID:       result.EventID,
		CorrelationID: result.CorrelationID,
	})
}

func writeEndpointError(w http.ResponseWriter, correlationID string, err error) {
	ae, ok := err.(*apperr.Error)
	if !ok {
		writeError(w, correlationID, apperr.Wrap(apperr.KindTransient, "internal_error", "unexpected error", err))
		return
	}
	writeError(w, correlationID, ae)
}

func writeError(w http.ResponseWriter, correlationID string, ae *apperr.Error) {
	if ae.CorrelationID == "" {
		ae = ae.WithCorrelation(correlationID)
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindDuplicate:
		status = http.StatusOK
	case apperr.KindCapacity:
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "2")
	case apperr.KindTransient, apperr.KindPermanent, apperr.KindIntegrityViolation:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ae.Envelope())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func prometheusTimer() func() {
	start := time.Now()
	return func() {
		observability.IngestLatencySeconds.Observe(time.Since(start).Seconds())
	}
}
