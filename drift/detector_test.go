package drift

import (
	"testing"
	"time"
)

func TestCompareInsufficientData(t *testing.T) {
	d := NewDetector(30)
	result := d.Compare(make([]float64, 10), make([]float64, 10))
	if !result.InsufficientData {
		t.Fatalf("expected insufficient data with fewer than MinSamples values")
	}
}

func TestCompareZeroMinSamplesWithEmptyWindowsIsInsufficientData(t *testing.T) {
	d := NewDetector(0)
	result := d.Compare(nil, nil)
	if !result.InsufficientData {
		t.Fatalf("expected insufficient data for empty windows regardless of MinSamples")
	}
	if result.ReferenceCount != 0 || result.CurrentCount != 0 {
		t.Fatalf("expected zero counts, got reference=%d current=%d", result.ReferenceCount, result.CurrentCount)
	}
}

func TestCompareHardCapBoundsSampleSize(t *testing.T) {
	d := NewDetector(10)
	d.HardCap = 20
	reference := make([]float64, 1000)
	current := make([]float64, 1000)
	for i := range reference {
		reference[i] = float64(i)
		current[i] = float64(i)
	}

	result := d.Compare(reference, current)
	if result.ReferenceCount != 20 || result.CurrentCount != 20 {
		t.Fatalf("expected counts capped at HardCap=20, got reference=%d current=%d", result.ReferenceCount, result.CurrentCount)
	}
}

func TestCompareIdenticalDistributionsYieldHighPValue(t *testing.T) {
	d := NewDetector(10)
	sample := make([]float64, 50)
	for i := range sample {
		sample[i] = float64(i)
	}
	other := append([]float64(nil), sample...)

	result := d.Compare(sample, other)
	if result.InsufficientData {
		t.Fatalf("unexpected insufficient data")
	}
	if result.Statistic != 0 {
		t.Fatalf("expected statistic 0 for identical distributions, got %v", result.Statistic)
	}
	if result.PValue < 0.99 {
		t.Fatalf("expected p-value near 1 for identical distributions, got %v", result.PValue)
	}
}

func TestCompareShiftedDistributionsDetectsDrift(t *testing.T) {
	d := NewDetector(10)
	reference := make([]float64, 100)
	current := make([]float64, 100)
	for i := range reference {
		reference[i] = float64(i % 10)
		current[i] = float64(i%10) + 50
	}

	result := d.Compare(reference, current)
	if result.InsufficientData {
		t.Fatalf("unexpected insufficient data")
	}
	if result.Statistic < 0.9 {
		t.Fatalf("expected a large KS statistic for fully separated distributions, got %v", result.Statistic)
	}
	if result.PValue > 0.01 {
		t.Fatalf("expected a small p-value for fully separated distributions, got %v", result.PValue)
	}
}

func TestCompareConstantValueSamples(t *testing.T) {
	d := NewDetector(5)
	reference := make([]float64, 20)
	current := make([]float64, 20)
	for i := range reference {
		reference[i] = 42
		current[i] = 42
	}

	result := d.Compare(reference, current)
	if result.Statistic != 0 {
		t.Fatalf("expected statistic 0 for identical constant samples, got %v", result.Statistic)
	}
}

func TestBuildReportAppliesThreshold(t *testing.T) {
	d := NewDetector(10)
	reference := make([]float64, 50)
	current := make([]float64, 50)
	for i := range reference {
		reference[i] = float64(i)
		current[i] = float64(i) + 100
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report := d.BuildReport("sensor-1", "model-a", reference, current, 0.05, now, "corr-1")

	if !report.DriftDetected {
		t.Fatalf("expected drift to be detected for fully separated distributions")
	}
	if report.KSStatistic == nil || report.PValue == nil {
		t.Fatalf("expected statistic and p-value to be populated")
	}
}

func TestBuildReportInsufficientDataLeavesStatisticNil(t *testing.T) {
	d := NewDetector(30)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report := d.BuildReport("sensor-1", "model-a", make([]float64, 5), make([]float64, 5), 0.05, now, "corr-1")

	if !report.InsufficientData {
		t.Fatalf("expected insufficient data")
	}
	if report.KSStatistic != nil || report.PValue != nil {
		t.Fatalf("expected nil statistic/p-value on insufficient data")
	}
	if report.DriftDetected {
		t.Fatalf("expected drift_detected false on insufficient data")
	}
}
