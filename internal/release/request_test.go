package release

import "testing"

func TestValidateRejectsBadTimeoutAndRetries(t *testing.T) {
	base := Request{Repository: "owner/name", Destination: "/tmp/x", TimeoutS: 1, MaxRetries: 1}

	bad := base
	bad.TimeoutS = 0
	if _, ok := assertConfigError(t, bad.Validate()); !ok {
		t.Fatalf("expected ConfigError for timeout_s <= 0")
	}

	bad = base
	bad.MaxRetries = 0
	if _, ok := assertConfigError(t, bad.Validate()); !ok {
		t.Fatalf("expected ConfigError for max_retries < 1")
	}
}

func TestValidateRejectsMalformedToken(t *testing.T) {
	req := Request{Repository: "owner/name", Destination: "/tmp/x", TimeoutS: 1, MaxRetries: 1, Token: "not-a-token"}
	if _, ok := assertConfigError(t, req.Validate()); !ok {
		t.Fatalf("expected ConfigError for malformed token")
	}
}

func TestValidateAcceptsRecognizedTokenPrefixes(t *testing.T) {
	for _, prefix := range []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"} {
		req := Request{Repository: "owner/name", Destination: "/tmp/x", TimeoutS: 1, MaxRetries: 1, Token: prefix + "abc123"}
		if err := req.Validate(); err != nil {
			t.Fatalf("prefix %q should be accepted: %v", prefix, err)
		}
	}
}

func TestSanitizedRepoSplitsOwnerAndName(t *testing.T) {
	owner, name, err := sanitizedRepo(Request{Repository: "acme/widgets"})
	if err != nil || owner != "acme" || name != "widgets" {
		t.Fatalf("got owner=%q name=%q err=%v", owner, name, err)
	}
}

func TestSanitizedRepoRejectsMalformed(t *testing.T) {
	if _, _, err := sanitizedRepo(Request{Repository: "no-slash"}); err == nil {
		t.Fatalf("expected error for repository without a slash")
	}
}

func assertConfigError(t *testing.T, err error) (*ConfigError, bool) {
	t.Helper()
	ce, ok := err.(*ConfigError)
	return ce, ok
}
