package catalog

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/verify"
)

// maxManifestLayerSize bounds how much of a single manifest file inside
// an OCI layer is read into memory; bytes past the limit are not read.
const maxManifestLayerSize = 32 << 20 // 32 MiB

// OCISource is a ManifestSource reading tool manifests out of the
// layers of an OCI artifact, so a catalog can be distributed and
// versioned through a container registry like any other artifact.
//
// Before trusting that content, Manifests checks the artifact's cosign
// signature through Verifier whenever the reference's repository is a
// first-party hatstart catalog (verify.IsFirstParty); third-party
// catalogs are never expected to carry hatstart's own signing identity
// and skip verification entirely.
type OCISource struct {
	Reference string
	Verifier  verify.Verifier
}

// NewOCISource builds an OCISource for a fully qualified image
// reference such as "ghcr.io/acme/tool-manifests:latest". Signature
// verification is disabled by default; use NewVerifiedOCISource for a
// source that checks cosign signatures on first-party catalogs.
func NewOCISource(reference string) *OCISource {
	return &OCISource{Reference: reference, Verifier: verify.NewNoopVerifier("no verifier configured")}
}

// NewVerifiedOCISource builds an OCISource that checks cosign
// signatures via sigstore-go's keyless Fulcio/Rekor verification
// before trusting a first-party catalog's manifest content.
func NewVerifiedOCISource(reference string) *OCISource {
	return &OCISource{Reference: reference, Verifier: verify.NewSigstoreVerifier()}
}

// Manifests implements core.ManifestSource.
func (s *OCISource) Manifests(ctx context.Context) ([]manifest.ToolManifest, error) {
	ref, err := name.ParseReference(s.Reference)
	if err != nil {
		return nil, fmt.Errorf("parsing OCI reference %s: %w", s.Reference, err)
	}

	if err := s.verifySignature(ctx, ref); err != nil {
		return nil, err
	}

	img, err := remote.Image(ref, remote.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching OCI artifact %s: %w", s.Reference, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("listing layers for %s: %w", s.Reference, err)
	}

	var out []manifest.ToolManifest
	for _, layer := range layers {
		rc, err := layer.Uncompressed()
		if err != nil {
			return nil, fmt.Errorf("reading layer for %s: %w", s.Reference, err)
		}
		layerManifests, err := extractManifestsFromTar(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extracting manifests from %s: %w", s.Reference, err)
		}
		out = append(out, layerManifests...)
	}
	return out, nil
}

// verifySignature checks ref's cosign signature when its repository is
// a first-party hatstart catalog; third-party repositories skip
// verification without contacting s.Verifier. A first-party artifact
// that cannot be verified only logs a warning and is still trusted,
// matching internal/verify.SigstoreVerifier's soft-fail posture for
// its initial release.
func (s *OCISource) verifySignature(ctx context.Context, ref name.Reference) error {
	if !verify.IsFirstParty(ref.Context().Name()) {
		return nil
	}

	v := s.Verifier
	if v == nil {
		v = verify.NewNoopVerifier("no verifier configured")
	}

	results, err := v.Verify(ctx, []verify.ArtifactRef{{Reference: s.Reference}})
	if err != nil {
		return fmt.Errorf("verifying catalog signature for %s: %w", s.Reference, err)
	}

	for _, r := range results {
		if r.Verified {
			slog.Info("catalog signature verified", "reference", s.Reference)
			return nil
		}
	}
	for _, r := range results {
		if r.Skipped {
			slog.Warn("catalog signature not verified, proceeding",
				"reference", s.Reference,
				"reason", r.SkipReason,
			)
		}
	}
	return nil
}

// extractManifestsFromTar walks a tar stream (an OCI layer's
// filesystem content) and decodes every *.yaml/*.yml/*.cue entry as
// tool manifest content, the same way LocalSource decodes files from
// disk.
func extractManifestsFromTar(r io.Reader) ([]manifest.ToolManifest, error) {
	tr := tar.NewReader(r)
	var out []manifest.ToolManifest
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !strings.HasSuffix(hdr.Name, ".yaml") && !strings.HasSuffix(hdr.Name, ".yml") && !strings.HasSuffix(hdr.Name, ".cue") {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tr, maxManifestLayerSize))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}

		decoded, err := decodeManifestBytes(hdr.Name, data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", hdr.Name, err)
		}
		out = append(out, decoded...)
	}
	return out, nil
}
