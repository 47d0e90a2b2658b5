// Package registry is a narrow client over the model registry: the core
// only needs to resolve the active version for a model name, list
// candidate versions, register new ones, move them between stages, and
// load an artifact with its integrity verified.
package registry

import (
	"context"

	"github.com/sentineledge/predictive-core/domain"
)

// Artifact is an opaque loaded model artifact plus the metadata needed to
// verify and run it.
type Artifact struct {
	Version domain.ModelVersion
	Bytes   []byte
}

// Client is the contract the anomaly detection and retrain agents depend
// on. Implementations are expected to wrap whatever storage backs the
// registry (object storage, a database, a remote service) — this core
// never assumes a specific one.
type Client interface {
	GetActive(ctx context.Context, modelName string) (domain.ModelVersion, error)
	ListVersions(ctx context.Context, modelName string) ([]domain.ModelVersion, error)
	Register(ctx context.Context, version domain.ModelVersion, artifact []byte) error
	Transition(ctx context.Context, modelName string, version int, stage domain.ModelStage) error
	LoadArtifact(ctx context.Context, version domain.ModelVersion) (Artifact, error)
}
