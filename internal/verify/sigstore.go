package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/go-containerregistry/pkg/name"
	ociv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/sigstore/sigstore-go/pkg/root"
	"github.com/sigstore/sigstore-go/pkg/tuf"
	sgverify "github.com/sigstore/sigstore-go/pkg/verify"
)

const (
	// oidcIssuer is the OIDC issuer GitHub Actions uses for keyless
	// signing, which is how first-party catalogs are published.
	oidcIssuer = "https://token.actions.githubusercontent.com"

	// sanRegex matches the GitHub Actions workflow identity of
	// hatstart's own catalog-publishing workflow.
	sanRegex = `^https://github\.com/sibilleb/hatstart/`
)

var _ Verifier = (*SigstoreVerifier)(nil)

// SigstoreVerifier checks cosign signatures on OCI catalog artifacts
// through sigstore-go's keyless Fulcio + Rekor path.
//
// The initial-release posture is soft-fail: unsigned or unverifiable
// first-party artifacts log a warning and are reported Skipped rather
// than failing the catalog fetch. This flips to hard-fail once every
// published catalog carries a signature.
type SigstoreVerifier struct {
	rootOnce sync.Once
	root     *root.LiveTrustedRoot
	rootErr  error
}

// NewSigstoreVerifier creates a SigstoreVerifier. The sigstore trusted
// root is fetched lazily on first use and cached for the verifier's
// lifetime.
func NewSigstoreVerifier() *SigstoreVerifier {
	return &SigstoreVerifier{}
}

// Verify implements Verifier, producing one Result per artifact.
func (v *SigstoreVerifier) Verify(ctx context.Context, refs []ArtifactRef) ([]Result, error) {
	results := make([]Result, 0, len(refs))
	for _, ref := range refs {
		results = append(results, v.verifyArtifact(ctx, ref))
	}
	return results, nil
}

func (v *SigstoreVerifier) verifyArtifact(ctx context.Context, artifact ArtifactRef) Result {
	skip := func(reason string, err error) Result {
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		slog.Warn("cosign verification skipped", "reference", artifact.Reference, "reason", reason)
		return Result{Artifact: artifact, Skipped: true, SkipReason: reason}
	}

	ref, err := name.ParseReference(artifact.Reference)
	if err != nil {
		return skip("invalid OCI reference", err)
	}

	fetched, err := fetchSignatures(ctx, ref)
	if err != nil {
		return skip("fetching signatures failed", err)
	}
	if fetched == nil || len(fetched.signatures) == 0 {
		return skip("no cosign signature found (unsigned artifact)", nil)
	}

	for _, sig := range fetched.signatures {
		if err := v.verifySignature(sig, fetched.digest); err != nil {
			slog.Debug("signature attempt failed", "reference", artifact.Reference, "error", err)
			continue
		}
		slog.Info("cosign signature verified", "reference", artifact.Reference)
		return Result{Artifact: artifact, Verified: true}
	}
	return skip("all cosign signature verification attempts failed", nil)
}

func (v *SigstoreVerifier) trustedRoot() (*root.LiveTrustedRoot, error) {
	v.rootOnce.Do(func() {
		v.root, v.rootErr = root.NewLiveTrustedRoot(tuf.DefaultOptions())
	})
	return v.root, v.rootErr
}

// verifySignature checks one signature against the public-good sigstore
// trust root, requiring hatstart's publishing-workflow identity.
//
// Cosign v2 signatures (sig.payload != nil) sign the SimpleSigning
// payload, so the check is two-stage: verify the signature over the
// payload, then check the payload names the artifact digest actually
// fetched — without the second stage a valid signature could be
// transplanted onto a different artifact.
func (v *SigstoreVerifier) verifySignature(sig artifactSignature, artifactDigest ociv1.Hash) error {
	trusted, err := v.trustedRoot()
	if err != nil {
		return fmt.Errorf("fetching trusted root: %w", err)
	}

	// WithIntegratedTimestamps accepts the timestamp embedded in the
	// Rekor entry, the only timestamp GitHub Actions keyless signing
	// produces.
	verifier, err := sgverify.NewVerifier(
		trusted,
		sgverify.WithSignedCertificateTimestamps(1),
		sgverify.WithTransparencyLog(1),
		sgverify.WithIntegratedTimestamps(1),
	)
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}

	identity, err := sgverify.NewShortCertificateIdentity(oidcIssuer, "", "", sanRegex)
	if err != nil {
		return fmt.Errorf("creating certificate identity: %w", err)
	}

	if sig.payload == nil {
		// Raw protobuf bundle with no SimpleSigning payload: nothing to
		// bind the signature to beyond the bundle itself.
		slog.Warn("verifying protobuf bundle without payload binding")
		if _, err := verifier.Verify(sig.bundle, sgverify.NewPolicy(
			sgverify.WithoutArtifactUnsafe(),
			sgverify.WithCertificateIdentity(identity),
		)); err != nil {
			return fmt.Errorf("signature verification failed: %w", err)
		}
		return nil
	}

	if _, err := verifier.Verify(sig.bundle, sgverify.NewPolicy(
		sgverify.WithArtifact(bytes.NewReader(sig.payload)),
		sgverify.WithCertificateIdentity(identity),
	)); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	if err := checkDigestBinding(sig.payload, artifactDigest); err != nil {
		return fmt.Errorf("artifact binding failed: %w", err)
	}
	return nil
}

// checkDigestBinding confirms the SimpleSigning payload names the
// digest of the artifact being verified.
func checkDigestBinding(payload []byte, want ociv1.Hash) error {
	var doc struct {
		Critical struct {
			Image struct {
				DockerManifestDigest string `json:"docker-manifest-digest"`
			} `json:"image"`
		} `json:"critical"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("parsing SimpleSigning payload: %w", err)
	}
	if got := doc.Critical.Image.DockerManifestDigest; got != want.String() {
		return fmt.Errorf("payload signs %q but artifact is %q", got, want)
	}
	return nil
}
