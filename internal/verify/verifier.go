// Package verify provides cosign signature verification for OCI-hosted
// tool catalogs. It verifies that first-party hatstart catalog images
// (ghcr.io/sibilleb/hatstart) are signed before internal/catalog trusts
// the manifests they contain.
package verify

import (
	"context"
	"strings"
)

const (
	// TrustedRegistryPrefix is the OCI repository prefix for first-party
	// hatstart catalog images.
	TrustedRegistryPrefix = "ghcr.io/sibilleb/hatstart"
)

// ArtifactRef identifies a single OCI catalog artifact to verify, by
// its fully qualified image reference (e.g.
// "ghcr.io/sibilleb/hatstart-catalog:v1").
type ArtifactRef struct {
	Reference string
}

// Result represents the verification result for a single artifact.
type Result struct {
	Artifact   ArtifactRef
	Verified   bool
	Skipped    bool
	SkipReason string
}

// Verifier verifies cosign signatures of OCI catalog artifacts.
type Verifier interface {
	// Verify checks the cosign signatures for the given artifacts.
	// Returns a Result for each artifact.
	Verify(ctx context.Context, refs []ArtifactRef) ([]Result, error)
}

// IsFirstParty returns true if repository is a first-party hatstart
// catalog repository: TrustedRegistryPrefix itself, a path beneath it
// (e.g. "ghcr.io/sibilleb/hatstart/presets/go"), or a hyphen-suffixed
// sibling (e.g. "ghcr.io/sibilleb/hatstart-catalog").
func IsFirstParty(repository string) bool {
	if repository == "" {
		return false
	}
	if !strings.HasPrefix(repository, TrustedRegistryPrefix) {
		return false
	}
	// Ensure it's an exact prefix match, not a partial domain match
	rest := repository[len(TrustedRegistryPrefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '-'
}
