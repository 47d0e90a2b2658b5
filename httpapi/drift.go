package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/drift"
	"github.com/sentineledge/predictive-core/timeseries"
)

// DriftHandler adapts the on-demand drift detector to POST /v1/ml/check_drift.
// Unlike the scheduled driver in agent/driftsched, every call here runs
// synchronously and reports its report regardless of outcome — the caller
// is asking, not subscribing. The per-API-key rate limit from spec.md §6
// is enforced by middleware.APIKeyLimiter wrapping this handler, not here.
type DriftHandler struct {
	Repo          timeseries.Repository
	Detector      *drift.Detector
	DefaultPValue float64
	Now           func() time.Time
}

type checkDriftRequest struct {
	SensorID        string   `json:"sensor_id"`
	ModelName       string   `json:"model_name"`
	WindowMinutes   int      `json:"window_minutes"`
	PValueThreshold *float64 `json:"p_value_threshold"`
	MinSamples      *int     `json:"min_samples"`
}

type checkDriftResponse struct {
	DriftDetected    bool      `json:"drift_detected"`
	PValue           *float64  `json:"p_value"`
	KSStatistic      *float64  `json:"ks_statistic"`
	ReferenceCount   int       `json:"reference_count"`
	CurrentCount     int       `json:"current_count"`
	RequestID        string    `json:"request_id"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
	InsufficientData bool      `json:"insufficient_data"`
}

func (h *DriftHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	correlationID := r.Header.Get("X-Request-ID")
	ctx := correlation.Enter(r.Context(), correlationID)
	correlationID = correlation.MustFrom(ctx)
	w.Header().Set("X-Request-ID", correlationID)

	var req checkDriftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, correlationID, apperr.New(apperr.KindValidation, "malformed_body", "request body is not valid JSON"))
		return
	}
	if req.SensorID == "" {
		writeError(w, correlationID, apperr.New(apperr.KindValidation, "missing_sensor_id", "sensor_id is required"))
		return
	}

	threshold := h.DefaultPValue
	if req.PValueThreshold != nil {
		threshold = *req.PValueThreshold
	}
	detector := h.Detector
	if req.MinSamples != nil {
		detector = drift.NewDetector(*req.MinSamples)
	}

	now := h.Now()
	report := runCheck(ctx, detector, h.Repo, req.SensorID, req.ModelName, req.WindowMinutes, threshold, now, correlationID)

	writeJSON(w, http.StatusOK, checkDriftResponse{
		DriftDetected:    report.DriftDetected,
		PValue:           report.PValue,
		KSStatistic:      report.KSStatistic,
		ReferenceCount:   report.ReferenceCount,
		CurrentCount:     report.CurrentCount,
		RequestID:        report.CorrelationID,
		EvaluatedAt:      report.EvaluatedAt,
		InsufficientData: report.InsufficientData,
	})
}

// runCheck mirrors agent/driftsched's checkOne for the on-demand path: a
// window_minutes of zero returns insufficient_data without touching the
// repository, per spec.md §8's boundary behaviors.
func runCheck(ctx context.Context, detector *drift.Detector, repo timeseries.Repository, sensorID, modelName string, windowMinutes int, threshold float64, now time.Time, correlationID string) domain.DriftReport {
	if windowMinutes <= 0 {
		return detector.BuildReport(sensorID, modelName, nil, nil, threshold, now, correlationID)
	}

	hardCap := detector.HardCap
	if hardCap <= 0 {
		hardCap = drift.DefaultHardCap
	}
	window := time.Duration(windowMinutes) * time.Minute
	reference, err := repo.Range(ctx, sensorID, now.Add(-2*window), now.Add(-window).Add(-time.Nanosecond), hardCap)
	if err != nil {
		return detector.BuildReport(sensorID, modelName, nil, nil, threshold, now, correlationID)
	}
	current, err := repo.Range(ctx, sensorID, now.Add(-window), now, hardCap)
	if err != nil {
		return detector.BuildReport(sensorID, modelName, nil, nil, threshold, now, correlationID)
	}

	return detector.BuildReport(sensorID, modelName, valuesOf(reference), valuesOf(current), threshold, now, correlationID)
}

func valuesOf(readings []domain.SensorReading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.Value
	}
	return out
}
