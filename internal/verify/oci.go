package verify

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	ociv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	protobundle "github.com/sigstore/protobuf-specs/gen/pb-go/bundle/v1"
	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
	protorekor "github.com/sigstore/protobuf-specs/gen/pb-go/rekor/v1"
	"github.com/sigstore/sigstore-go/pkg/bundle"
	"google.golang.org/protobuf/encoding/protojson"
)

// Cosign v2 stores each signature component as a separate layer
// annotation on the .sig image rather than as one protobuf bundle;
// assembleBundle reassembles them below.
const (
	annotationSignature   = "dev.cosignproject.cosign/signature"
	annotationCertificate = "dev.sigstore.cosign/certificate"
	annotationChain       = "dev.sigstore.cosign/chain"
	annotationRekor       = "dev.sigstore.cosign/bundle"
)

// maxPayloadSize bounds a signature layer payload or annotation, so a
// hostile registry cannot exhaust memory through a catalog's .sig tag.
const maxPayloadSize = 1 << 20 // 1 MiB

// SignatureTag returns the tag cosign stores signatures under for the
// given artifact digest: sha256-<hex>.sig.
func SignatureTag(digest ociv1.Hash) string {
	return strings.ReplaceAll(digest.String(), ":", "-") + ".sig"
}

// artifactSignature is one parsed signature: the sigstore bundle plus,
// for cosign v2 signatures, the SimpleSigning payload the signature
// actually covers (nil for raw protobuf bundles).
type artifactSignature struct {
	bundle  *bundle.Bundle
	payload []byte
}

// fetchedSignatures couples the signatures found on a catalog artifact
// with the digest they must bind to.
type fetchedSignatures struct {
	digest     ociv1.Hash
	signatures []artifactSignature
}

// fetchSignatures resolves ref's digest and reads every signature off
// its cosign .sig tag. A missing .sig tag means the artifact is
// unsigned and returns (nil, nil); any other registry failure is an
// error so callers cannot mistake an outage for "unsigned".
func fetchSignatures(ctx context.Context, ref name.Reference) (*fetchedSignatures, error) {
	desc, err := remote.Head(ref, remote.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("resolving digest for %s: %w", ref, err)
	}

	sigRef := ref.Context().Tag(SignatureTag(desc.Digest))
	sigImg, err := remote.Image(sigRef, remote.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching signature image for %s: %w", ref, err)
	}

	sigManifest, err := sigImg.Manifest()
	if err != nil {
		return nil, fmt.Errorf("reading signature manifest for %s: %w", ref, err)
	}

	out := &fetchedSignatures{digest: desc.Digest}
	for i, layer := range sigManifest.Layers {
		sig, err := signatureFromLayer(sigImg, layer)
		if err != nil {
			slog.Debug("skipping unusable signature layer", "index", i, "error", err)
			continue
		}
		if sig != nil {
			out.signatures = append(out.signatures, *sig)
		}
	}
	return out, nil
}

// signatureFromLayer parses one layer of a cosign signature image.
// Layers carrying the cosign v2 annotation set yield a reassembled
// bundle bound to the layer's SimpleSigning payload; layers carrying
// only a protobuf bundle annotation are accepted for forward
// compatibility; anything else yields (nil, nil).
func signatureFromLayer(img ociv1.Image, desc ociv1.Descriptor) (*artifactSignature, error) {
	ann := desc.Annotations
	if ann == nil {
		return nil, nil
	}

	if _, ok := ann[annotationSignature]; ok {
		layer, err := img.LayerByDigest(desc.Digest)
		if err != nil {
			return nil, fmt.Errorf("fetching payload layer: %w", err)
		}
		rc, err := layer.Uncompressed()
		if err != nil {
			return nil, fmt.Errorf("opening payload layer: %w", err)
		}
		payload, err := io.ReadAll(io.LimitReader(rc, maxPayloadSize))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading payload: %w", err)
		}

		b, err := assembleBundle(ann, payload)
		if err != nil {
			return nil, err
		}
		return &artifactSignature{bundle: b, payload: payload}, nil
	}

	if bundleJSON, ok := ann[annotationRekor]; ok {
		if len(bundleJSON) > maxPayloadSize {
			return nil, errors.New("bundle annotation exceeds size limit")
		}
		b, err := decodeBundleJSON([]byte(bundleJSON))
		if err != nil {
			return nil, err
		}
		return &artifactSignature{bundle: b}, nil
	}

	return nil, nil
}

// assembleBundle reconstructs a v0.1 sigstore protobuf bundle from a
// layer's cosign v2 annotations and its SimpleSigning payload, the
// shape sigstore-go's verifier consumes.
func assembleBundle(ann map[string]string, payload []byte) (*bundle.Bundle, error) {
	sigB64, ok := ann[annotationSignature]
	if !ok {
		return nil, fmt.Errorf("missing %s annotation", annotationSignature)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("decoding signature: %w", err)
	}

	certPEM, ok := ann[annotationCertificate]
	if !ok {
		return nil, fmt.Errorf("missing %s annotation", annotationCertificate)
	}
	certs, err := decodeCertificates(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing leaf certificate: %w", err)
	}
	if chainPEM := ann[annotationChain]; chainPEM != "" {
		chain, err := decodeCertificates(chainPEM)
		if err != nil {
			slog.Debug("ignoring unparseable certificate chain", "error", err)
		} else {
			certs = append(certs, chain...)
		}
	}

	rekorJSON, ok := ann[annotationRekor]
	if !ok {
		return nil, fmt.Errorf("missing %s annotation", annotationRekor)
	}
	tlogEntry, err := transparencyLogEntry(rekorJSON)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(payload)
	pb := &protobundle.Bundle{
		MediaType: "application/vnd.dev.sigstore.bundle+json;version=0.1",
		VerificationMaterial: &protobundle.VerificationMaterial{
			Content: &protobundle.VerificationMaterial_X509CertificateChain{
				X509CertificateChain: &protocommon.X509CertificateChain{Certificates: certs},
			},
			TlogEntries: []*protorekor.TransparencyLogEntry{tlogEntry},
		},
		Content: &protobundle.Bundle_MessageSignature{
			MessageSignature: &protocommon.MessageSignature{
				MessageDigest: &protocommon.HashOutput{
					Algorithm: protocommon.HashAlgorithm_SHA2_256,
					Digest:    digest[:],
				},
				Signature: sig,
			},
		},
	}

	b, err := bundle.NewBundle(pb)
	if err != nil {
		return nil, fmt.Errorf("assembling bundle: %w", err)
	}
	return b, nil
}

// transparencyLogEntry converts the cosign v2 rekor annotation (a JSON
// transparency log entry, not a protobuf bundle) into protobuf form.
func transparencyLogEntry(rekorJSON string) (*protorekor.TransparencyLogEntry, error) {
	var entry struct {
		SignedEntryTimestamp string `json:"SignedEntryTimestamp"`
		Payload              struct {
			Body           string `json:"body"`
			IntegratedTime int64  `json:"integratedTime"`
			LogIndex       int64  `json:"logIndex"`
			LogID          string `json:"logID"`
		} `json:"Payload"`
	}
	if err := json.Unmarshal([]byte(rekorJSON), &entry); err != nil {
		return nil, fmt.Errorf("parsing rekor entry JSON: %w", err)
	}

	set, err := base64.StdEncoding.DecodeString(entry.SignedEntryTimestamp)
	if err != nil {
		return nil, fmt.Errorf("decoding signed entry timestamp: %w", err)
	}
	logID, err := hex.DecodeString(entry.Payload.LogID)
	if err != nil {
		return nil, fmt.Errorf("decoding log ID: %w", err)
	}
	body, err := base64.StdEncoding.DecodeString(entry.Payload.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding rekor body: %w", err)
	}

	var meta struct {
		APIVersion string `json:"apiVersion"`
		Kind       string `json:"kind"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("parsing rekor body: %w", err)
	}

	return &protorekor.TransparencyLogEntry{
		LogIndex: entry.Payload.LogIndex,
		LogId:    &protocommon.LogId{KeyId: logID},
		KindVersion: &protorekor.KindVersion{
			Kind:    meta.Kind,
			Version: meta.APIVersion,
		},
		IntegratedTime:    entry.Payload.IntegratedTime,
		InclusionPromise:  &protorekor.InclusionPromise{SignedEntryTimestamp: set},
		CanonicalizedBody: body,
	}, nil
}

// decodeCertificates parses PEM data into protobuf certificate entries,
// skipping non-CERTIFICATE blocks.
func decodeCertificates(pemData string) ([]*protocommon.X509Certificate, error) {
	var certs []*protocommon.X509Certificate
	rest := []byte(pemData)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		certs = append(certs, &protocommon.X509Certificate{RawBytes: block.Bytes})
	}
	if len(certs) == 0 {
		return nil, errors.New("no CERTIFICATE blocks found in PEM data")
	}
	return certs, nil
}

// decodeBundleJSON parses protobuf-JSON into a validated sigstore
// bundle. protojson is required here — the bundle's oneof fields do not
// survive encoding/json.
func decodeBundleJSON(data []byte) (*bundle.Bundle, error) {
	var pb protobundle.Bundle
	if err := protojson.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("parsing bundle JSON: %w", err)
	}
	b, err := bundle.NewBundle(&pb)
	if err != nil {
		return nil, fmt.Errorf("validating bundle: %w", err)
	}
	return b, nil
}

// isNotFound reports whether err is an HTTP 404 from the registry.
func isNotFound(err error) bool {
	var terr *transport.Error
	return errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound
}
