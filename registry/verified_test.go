package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/domain"
)

func TestVerifiedClientLoadArtifactAcceptsMatchingHash(t *testing.T) {
	inner := NewMemoryClient()
	ctx := context.Background()
	version := domain.ModelVersion{Name: "vibration-rf", Version: 1, Stage: domain.StageProduction}
	artifact := []byte("fake model bytes")

	if err := inner.Register(ctx, version, artifact); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, err := inner.GetActive(ctx, "vibration-rf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := NewVerifiedClient(inner)
	loaded, err := client.LoadArtifact(ctx, active)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(loaded.Bytes) != string(artifact) {
		t.Fatalf("artifact bytes mismatch")
	}
}

func TestVerifiedClientLoadArtifactQuarantinesOnMismatch(t *testing.T) {
	inner := NewMemoryClient()
	ctx := context.Background()
	version := domain.ModelVersion{Name: "vibration-rf", Version: 1, Stage: domain.StageProduction, ContentHash: "deadbeef"}

	if err := inner.Register(ctx, version, []byte("fake model bytes")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := NewVerifiedClient(inner)
	_, err := client.LoadArtifact(ctx, version)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindIntegrityViolation {
		t.Fatalf("expected IntegrityViolation error, got %v", err)
	}

	versions, err := inner.ListVersions(ctx, "vibration-rf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if versions[0].Stage != domain.StageQuarantined {
		t.Fatalf("expected version to be quarantined, got %v", versions[0].Stage)
	}
}
