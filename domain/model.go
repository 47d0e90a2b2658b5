package domain

// ModelStage is the lifecycle stage of a ModelVersion within the registry.
type ModelStage string

const (
	StageNone      ModelStage = "None"
	StageStaging   ModelStage = "Staging"
	StageProduction ModelStage = "Production"
	StageArchived  ModelStage = "Archived"
	StageQuarantined ModelStage = "Quarantined"
)

// ModelVersion is the opaque handle the core uses for inference and
// promotion decisions. The heavy artifact storage lives outside this repo;
// only the fields the core reasons about are modeled here.
type ModelVersion struct {
	Name         string     `json:"name"`
	Version      int        `json:"version"`
	Stage        ModelStage `json:"stage"`
	FeatureNames []string   `json:"feature_names"`
	ContentHash  string     `json:"content_hash"`
	PrimaryMetric float64   `json:"primary_metric"`
}

// TrainingMetrics is what a trainer invocation reports back for the
// candidate model, alongside the ModelVersion itself.
type TrainingMetrics struct {
	PrimaryMetric float64
	Extra         map[string]float64
}
