package verify

import "context"

// noopVerifier is a Verifier that skips all verification, used for
// third-party catalogs and for sources built without a verifier.
type noopVerifier struct {
	reason string
}

// NewNoopVerifier creates a Verifier that skips all verification with the given reason.
func NewNoopVerifier(reason string) Verifier {
	return &noopVerifier{reason: reason}
}

// Verify returns a skipped Result for each artifact.
func (v *noopVerifier) Verify(_ context.Context, refs []ArtifactRef) ([]Result, error) {
	results := make([]Result, len(refs))
	for i, ref := range refs {
		results[i] = Result{
			Artifact:   ref,
			Skipped:    true,
			SkipReason: v.reason,
		}
	}
	return results, nil
}
