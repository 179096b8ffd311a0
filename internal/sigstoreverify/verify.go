// Package sigstoreverify wraps sigstore-go's bundle verification behind a
// small interface shared by the release pipeline (C4, verifying a
// downloaded asset's attestation) and the plugin marketplace resolver (C5,
// verifying a marketplace manifest's trust policy). Both concerns need the
// same thing: verify a bundle over a digest/artifact, extract the signer's
// identity, and pattern-match it against a caller-supplied allow-list.
package sigstoreverify

import (
	"fmt"
	"os"

	"github.com/sigstore/sigstore-go/pkg/bundle"
	"github.com/sigstore/sigstore-go/pkg/root"
	"github.com/sigstore/sigstore-go/pkg/tuf"
	"github.com/sigstore/sigstore-go/pkg/verify"
)

// Verdict is the {subject, issuer, identities} extracted from a verified
// bundle.
type Verdict struct {
	Subject    string
	Issuer     string
	Identities []string
}

// Verifier reuses a single trusted-root fetch across many bundle
// verifications within one process run.
type Verifier struct {
	v *verify.Verifier
}

// New fetches TUF trust material for the public-good Sigstore instance and
// builds a reusable Verifier.
func New() (*Verifier, error) {
	tufClient, err := tuf.New(tuf.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("sigstoreverify: tuf client: %w", err)
	}
	trustedRoot, err := root.GetTrustedRoot(tufClient)
	if err != nil {
		return nil, fmt.Errorf("sigstoreverify: trusted root: %w", err)
	}
	v, err := verify.NewVerifier(trustedRoot,
		verify.WithSignedCertificateTimestamps(1),
		verify.WithTransparencyLog(1),
		verify.WithObserverTimestamps(1),
	)
	if err != nil {
		return nil, fmt.Errorf("sigstoreverify: verifier: %w", err)
	}
	return &Verifier{v: v}, nil
}

// VerifyBundle verifies bundlePath's signature over artifactPath's bytes
// and returns the signer identity. identityPatterns, when non-empty, is
// matched with match against each verified identity; ErrIdentityNotPinned
// is returned if none match.
func (vr *Verifier) VerifyBundle(bundlePath, artifactPath string, identityPatterns []string, match func(pattern, identity string) bool) (*Verdict, error) {
	b, err := bundle.LoadJSONFromPath(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("sigstoreverify: load bundle: %w", err)
	}

	artifact, err := os.Open(artifactPath)
	if err != nil {
		return nil, err
	}
	defer artifact.Close()

	policy := verify.NewPolicy(verify.WithArtifact(artifact), verify.WithoutIdentitiesUnsafe())
	result, err := vr.v.Verify(b, policy)
	if err != nil {
		return nil, fmt.Errorf("sigstoreverify: verify: %w", err)
	}

	verdict := &Verdict{}
	if result.Signature != nil && result.Signature.Certificate != nil {
		verdict.Subject = result.Signature.Certificate.SubjectAlternativeName
		verdict.Issuer = result.Signature.Certificate.Issuer
		verdict.Identities = []string{verdict.Subject}
	}

	if len(identityPatterns) > 0 {
		matched := false
		for _, id := range verdict.Identities {
			for _, pattern := range identityPatterns {
				if match(pattern, id) {
					matched = true
				}
			}
		}
		if !matched {
			return nil, &ErrIdentityNotPinned{Identities: verdict.Identities, Patterns: identityPatterns}
		}
	}
	return verdict, nil
}

// ErrIdentityNotPinned means a bundle verified but its identities don't
// intersect the caller's pin patterns.
type ErrIdentityNotPinned struct {
	Identities []string
	Patterns   []string
}

func (e *ErrIdentityNotPinned) Error() string {
	return fmt.Sprintf("sigstoreverify: identities %v do not match pinned patterns %v", e.Identities, e.Patterns)
}
