package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/drift"
	"github.com/sentineledge/predictive-core/timeseries"
)

func seedReadings(t *testing.T, repo *timeseries.MemoryRepository, sensorID string, at time.Time, n int, mean float64) {
	t.Helper()
	r := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		reading := domain.SensorReading{
			SensorID:   sensorID,
			SensorType: domain.SensorTemperature,
			Value:      mean + r.NormFloat64(),
			Timestamp:  at.Add(time.Duration(i) * time.Millisecond),
		}
		if err := repo.Insert(context.Background(), reading); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
}

func TestDriftHandlerDetectsShiftedDistribution(t *testing.T) {
	repo := timeseries.NewMemoryRepository()
	now := time.Now()
	window := 30 * time.Minute

	seedReadings(t, repo, "s1", now.Add(-2*window), 200, 20)
	seedReadings(t, repo, "s1", now.Add(-window).Add(time.Second), 200, 25)

	h := &DriftHandler{Repo: repo, Detector: drift.NewDetector(30), DefaultPValue: 0.05, Now: func() time.Time { return now }}

	raw, _ := json.Marshal(checkDriftRequest{SensorID: "s1", WindowMinutes: 30})
	req := httptest.NewRequest(http.MethodPost, "/v1/ml/check_drift", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp checkDriftResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.DriftDetected {
		t.Fatalf("expected drift_detected=true, got %+v", resp)
	}
	if resp.PValue == nil || *resp.PValue >= 0.01 {
		t.Fatalf("expected a small p-value, got %+v", resp.PValue)
	}
}

func TestDriftHandlerInsufficientDataNeverTouchesRepository(t *testing.T) {
	repo := timeseries.NewMemoryRepository()
	h := &DriftHandler{Repo: repo, Detector: drift.NewDetector(30), DefaultPValue: 0.05, Now: time.Now}

	raw, _ := json.Marshal(checkDriftRequest{SensorID: "s1", WindowMinutes: 0})
	req := httptest.NewRequest(http.MethodPost, "/v1/ml/check_drift", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp checkDriftResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.InsufficientData || resp.DriftDetected {
		t.Fatalf("expected insufficient_data with no drift, got %+v", resp)
	}
	if resp.PValue != nil || resp.KSStatistic != nil {
		t.Fatalf("expected nil statistic fields when insufficient, got %+v", resp)
	}
}

func TestDriftHandlerRejectsMissingSensorID(t *testing.T) {
	h := &DriftHandler{Repo: timeseries.NewMemoryRepository(), Detector: drift.NewDetector(30), DefaultPValue: 0.05, Now: time.Now}

	raw, _ := json.Marshal(checkDriftRequest{WindowMinutes: 30})
	req := httptest.NewRequest(http.MethodPost, "/v1/ml/check_drift", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
