package release

import (
	"fmt"
	"time"
)

// Request is the ReleaseRequest of spec.md §3.
type Request struct {
	Repository         string // "owner/name"
	Tag                string // "latest" or an explicit tag
	AssetPattern       string
	ManifestPattern    string
	SigstorePattern    string
	RequireSigstore    bool
	SigstoreIdentities []string
	AllowUnsigned      bool
	TimeoutS           float64
	MaxRetries         int
	Destination        string
	Token              string
}

// Validate enforces the parameter guard of spec.md §4.4 step 4.
func (r Request) Validate() error {
	if r.TimeoutS <= 0 {
		return &ConfigError{Reason: "timeout_s must be > 0"}
	}
	if r.MaxRetries < 1 {
		return &ConfigError{Reason: "max_retries must be >= 1"}
	}
	if r.Repository == "" {
		return &ConfigError{Reason: "repository is required"}
	}
	if r.Destination == "" {
		return &ConfigError{Reason: "destination is required"}
	}
	if r.Token != "" && !isRecognizedTokenFormat(r.Token) {
		return &ConfigError{Reason: "token does not match a recognized prefix"}
	}
	return nil
}

// isRecognizedTokenFormat fails fast on a malformed token before any
// network call, per spec.md §4.4 step 1.
func isRecognizedTokenFormat(token string) bool {
	for _, prefix := range []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"} {
		if len(token) > len(prefix) && token[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// SigstoreVerdict is the sigstore_verdict of VerifiedAsset.
type SigstoreVerdict struct {
	Subject    string
	Issuer     string
	Identities []string
}

// VerifiedAsset is the result of spec.md §3.
type VerifiedAsset struct {
	Name            string
	BytesPath       string
	Size            int64
	SHA256          string
	SigstoreBundle  string
	SigstoreVerdict *SigstoreVerdict
}

// InstalledRelease is the terminal result of Install.
type InstalledRelease struct {
	Asset           VerifiedAsset
	WheelhouseDir   string
	InstalledWheels []string
	Duration        time.Duration
}

func (r Request) backoffBase() time.Duration {
	return 500 * time.Millisecond
}

func (r Request) timeout() time.Duration {
	return time.Duration(r.TimeoutS * float64(time.Second))
}

func sanitizedRepo(r Request) (owner, name string, err error) {
	idx := -1
	for i := 0; i < len(r.Repository); i++ {
		if r.Repository[i] == '/' {
			idx = i
			break
		}
	}
	if idx <= 0 || idx == len(r.Repository)-1 {
		return "", "", fmt.Errorf("release: repository must be owner/name, got %q", r.Repository)
	}
	return r.Repository[:idx], r.Repository[idx+1:], nil
}
