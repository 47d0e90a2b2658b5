package registry

import (
	"context"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/observability"
)

// VerifiedClient wraps a Client, verifying the content hash of every
// loaded artifact before handing it to a caller. On mismatch the version
// is transitioned to Quarantined and LoadArtifact returns
// apperr.IntegrityViolation.
type VerifiedClient struct {
	Client
}

// NewVerifiedClient wraps inner with content-hash verification.
func NewVerifiedClient(inner Client) *VerifiedClient {
	return &VerifiedClient{Client: inner}
}

func (v *VerifiedClient) LoadArtifact(ctx context.Context, version domain.ModelVersion) (Artifact, error) {
	artifact, err := v.Client.LoadArtifact(ctx, version)
	if err != nil {
		return Artifact{}, err
	}

	if !VerifyContentHash(artifact.Bytes, version.ContentHash) {
		observability.IntegrityViolationsTotal.WithLabelValues(version.Name).Inc()
		if transErr := v.Client.Transition(ctx, version.Name, version.Version, domain.StageQuarantined); transErr != nil {
			return Artifact{}, apperr.Wrap(apperr.KindIntegrityViolation, "integrity_violation",
				"content hash mismatch and quarantine transition failed", transErr)
		}
		return Artifact{}, apperr.IntegrityViolation(version.Name, version.Version)
	}

	return artifact, nil
}
