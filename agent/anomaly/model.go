package anomaly

import "github.com/sentineledge/predictive-core/registry"

// ScoringModel is the narrow contract the anomaly agent needs from a loaded
// artifact: a score in response to an ordered feature vector. The
// statistical internals of how that score is produced live entirely outside
// this repository.
type ScoringModel interface {
	Score(features []float64) (float64, error)
}

// ModelLoader turns a loaded artifact into a ScoringModel.
type ModelLoader interface {
	Load(artifact registry.Artifact) (ScoringModel, error)
}
