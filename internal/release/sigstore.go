package release

import (
	"regexp"
	"strings"

	"github.com/silexa/hephaestus/internal/sigstoreverify"
)

// newSigstoreVerifier fetches TUF trust material once per install run and
// returns a reusable verifier for the asset's attestation bundle.
func newSigstoreVerifier() (*sigstoreverify.Verifier, error) {
	return sigstoreverify.New()
}

// verifyAssetBundle verifies bundlePath's signature over artifactPath and
// enforces sigstore_identities pinning, per spec.md §4.4 step 6.
func verifyAssetBundle(v *sigstoreverify.Verifier, bundlePath, artifactPath string, identityPatterns []string) (*SigstoreVerdict, error) {
	verdict, err := v.VerifyBundle(bundlePath, artifactPath, identityPatterns, identityMatch)
	if err != nil {
		if pinErr, ok := err.(*sigstoreverify.ErrIdentityNotPinned); ok {
			return nil, &IdentityNotPinned{Identities: pinErr.Identities, Patterns: pinErr.Patterns}
		}
		return nil, &SigstoreVerifyFailed{Cause: err}
	}
	return &SigstoreVerdict{Subject: verdict.Subject, Issuer: verdict.Issuer, Identities: verdict.Identities}, nil
}

// identityMatch matches a pinned sigstore identity pattern against a
// verified certificate identity. Identities are URLs
// (https://github.com/org/repo/.github/workflows/release.yml@refs/heads/main),
// so unlike globMatch's filepath.Match, "*" here must span "/": a pin like
// "https://github.com/org/*" is meant to cover every repo under that org,
// not just a single path segment.
func identityMatch(pattern, identity string) bool {
	parts := strings.Split(pattern, "*")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = regexp.QuoteMeta(part)
	}
	re := "^" + strings.Join(quoted, ".*") + "$"
	matched, err := regexp.MatchString(re, identity)
	if err != nil {
		return false
	}
	return matched
}
