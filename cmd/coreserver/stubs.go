package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sentineledge/predictive-core/agent/anomaly"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/registry"
)

// anomalyLoader turns a seeded artifact into a ScoringModel whose score is
// simply the "value" feature. It stands in for the real model inference
// runtime, which is external to this core per spec.md §1.
type anomalyLoader struct{}

func (anomalyLoader) Load(_ registry.Artifact) (anomaly.ScoringModel, error) {
	return valueScorer{}, nil
}

type valueScorer struct{}

func (valueScorer) Score(features []float64) (float64, error) {
	if len(features) == 0 {
		return 0, nil
	}
	return features[0], nil
}

// logNotifier logs every dispatch instead of reaching an email/Slack
// transport, both of which are external collaborators per spec.md §1.
type logNotifier struct{}

func (logNotifier) Send(_ context.Context, channel, subject, body string, metadata map[string]string) error {
	log.Printf("[NOTIFY] channel=%s subject=%q body=%q metadata=%v", channel, subject, body, metadata)
	return nil
}

// stubTrainer stands in for the real training job: it returns a candidate
// with no version number set and a primary metric of 0.95, above the
// seeded models' 0.9, so the Golden Path's retrain success branch is
// exercisable without a statistical training runtime.
type stubTrainer struct{}

func (stubTrainer) Train(_ context.Context, modelName string, trigger domain.DriftReport) (domain.ModelVersion, []byte, domain.TrainingMetrics, error) {
	artifact := []byte(fmt.Sprintf("retrained:%s:%d", modelName, time.Now().UnixNano()))
	version := domain.ModelVersion{
		Name:          modelName,
		FeatureNames:  []string{"value", "quality"},
		PrimaryMetric: 0.95,
	}
	return version, artifact, domain.TrainingMetrics{PrimaryMetric: 0.95}, nil
}

// inMemoryAlertStore persists AnomalyAlert rows for audit, standing in for
// the anomaly_alerts table spec.md §6 describes at the schema level.
type inMemoryAlertStore struct {
	mu     sync.Mutex
	alerts []domain.AnomalyAlert
}

func newInMemoryAlertStore() *inMemoryAlertStore {
	return &inMemoryAlertStore{}
}

func (s *inMemoryAlertStore) Persist(_ context.Context, alert domain.AnomalyAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

// inMemoryRetrainStore persists RetrainRecord rows for audit, standing in
// for the retrain_records table spec.md §6 describes at the schema level.
type inMemoryRetrainStore struct {
	mu      sync.Mutex
	records []domain.RetrainRecord
}

func newInMemoryRetrainStore() *inMemoryRetrainStore {
	return &inMemoryRetrainStore{}
}

func (s *inMemoryRetrainStore) Persist(_ context.Context, record domain.RetrainRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}
