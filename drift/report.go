package drift

import (
	"time"

	"github.com/sentineledge/predictive-core/domain"
)

// BuildReport runs the detector over the given value slices and renders the
// outcome as a domain.DriftReport, applying the drift_detected decision:
// PValue < threshold.
func (d *Detector) BuildReport(sensorID, modelName string, reference, current []float64, threshold float64, now time.Time, correlationID string) domain.DriftReport {
	result := d.Compare(reference, current)

	report := domain.DriftReport{
		SensorID:         sensorID,
		ModelName:        modelName,
		ReferenceCount:   result.ReferenceCount,
		CurrentCount:     result.CurrentCount,
		Threshold:        threshold,
		InsufficientData: result.InsufficientData,
		EvaluatedAt:      now,
		CorrelationID:    correlationID,
	}
	if result.InsufficientData {
		return report
	}

	statistic := result.Statistic
	pValue := result.PValue
	report.KSStatistic = &statistic
	report.PValue = &pValue
	report.DriftDetected = pValue < threshold
	return report
}
