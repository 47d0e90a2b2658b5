package anomaly

import (
	"strconv"

	"github.com/sentineledge/predictive-core/domain"
)

// buildFeatures assembles the model's input vector in the exact order given
// by featureNames. "value" and "quality" are always available; any other
// name is looked up in the reading's metadata and parsed as a float. A name
// that resolves to nothing is schema drift between training and serving,
// reported to the caller so it can raise FeatureSchemaMismatch.
func buildFeatures(reading domain.SensorReading, featureNames []string) ([]float64, bool) {
	out := make([]float64, 0, len(featureNames))
	for _, name := range featureNames {
		switch name {
		case "value":
			out = append(out, reading.Value)
		case "quality":
			if reading.Quality == nil {
				return nil, false
			}
			out = append(out, *reading.Quality)
		default:
			raw, ok := reading.Metadata[name]
			if !ok {
				return nil, false
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, false
			}
			out = append(out, v)
		}
	}
	return out, true
}
