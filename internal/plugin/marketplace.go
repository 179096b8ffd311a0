package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/silexa/hephaestus/internal/sigstoreverify"
)

// marketplaceManifest is `{plugin}.toml` in the curated registry
// directory: the plugin's declared compatibility, digest, and
// dependencies.
type marketplaceManifest struct {
	Name          string            `toml:"name"`
	Version       string            `toml:"version"`
	Compatibility string            `toml:"compatibility"`
	Digest        string            `toml:"digest"`
	Dependencies  map[string]string `toml:"dependencies"`
}

// trustPolicy is `trust-policy.toml`: the allowed signer identities/
// issuers and an optional minimum plugin version.
type trustPolicy struct {
	AllowedIdentities []string `toml:"allowed_identities"`
	AllowedIssuers    []string `toml:"allowed_issuers"`
	MinVersion        string   `toml:"min_version"`
}

// Marketplace resolves `marketplace = "..."` references against a curated
// registry directory containing `{plugin}.toml` + `{plugin}.sigstore`
// pairs and a shared `trust-policy.toml`, per spec.md §4.5.
type Marketplace struct {
	registryDir string
	hostVersion string
	verifier    *sigstoreverify.Verifier
	policy      trustPolicy
}

// NewMarketplace loads trust-policy.toml once and prepares a Sigstore
// verifier for the lifetime of a discovery pass.
func NewMarketplace(registryDir, hostVersion string) (*Marketplace, error) {
	policyPath := filepath.Join(registryDir, "trust-policy.toml")
	data, err := os.ReadFile(policyPath)
	if err != nil {
		return nil, fmt.Errorf("plugin: read trust policy: %w", err)
	}
	var policy trustPolicy
	if err := toml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("plugin: parse trust policy: %w", err)
	}
	verifier, err := sigstoreverify.New()
	if err != nil {
		return nil, err
	}
	return &Marketplace{registryDir: registryDir, hostVersion: hostVersion, verifier: verifier, policy: policy}, nil
}

// Resolve implements the marketplace resolution procedure of spec.md
// §4.5: parse manifest, check compatibility, verify the Sigstore bundle
// against the declared digest and the trust policy, then recursively
// resolve dependencies with cycle detection.
func (m *Marketplace) Resolve(name string) (Plugin, error) {
	return m.resolve(name, map[string]bool{})
}

func (m *Marketplace) resolve(name string, inProgress map[string]bool) (Plugin, error) {
	if inProgress[name] {
		chain := make([]string, 0, len(inProgress)+1)
		for n := range inProgress {
			chain = append(chain, n)
		}
		return nil, &DependencyCycle{Chain: append(chain, name)}
	}
	inProgress[name] = true
	defer delete(inProgress, name)

	manifestPath := filepath.Join(m.registryDir, name+".toml")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("plugin: marketplace manifest %q: %w", name, err)
	}
	var manifest marketplaceManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("plugin: parse marketplace manifest %q: %w", name, err)
	}

	if manifest.Compatibility != "" && !compatibleVersion(manifest.Compatibility, m.hostVersion) {
		return nil, fmt.Errorf("plugin: %q requires host version %s, have %s", name, manifest.Compatibility, m.hostVersion)
	}

	bundlePath := filepath.Join(m.registryDir, name+".sigstore")
	digestPath := filepath.Join(m.registryDir, manifest.Digest)
	verdict, err := m.verifier.VerifyBundle(bundlePath, digestPath, m.policy.AllowedIdentities, globMatch)
	if err != nil {
		return nil, fmt.Errorf("plugin: %q failed trust-policy verification: %w", name, err)
	}
	if len(m.policy.AllowedIssuers) > 0 && !anyMatch(m.policy.AllowedIssuers, verdict.Issuer) {
		return nil, fmt.Errorf("plugin: %q signer issuer %q not in trust policy", name, verdict.Issuer)
	}
	if m.policy.MinVersion != "" && !versionAtLeast(manifest.Version, m.policy.MinVersion) {
		return nil, fmt.Errorf("plugin: %q version %s below trust-policy minimum %s", name, manifest.Version, m.policy.MinVersion)
	}

	for dep, constraint := range manifest.Dependencies {
		if _, err := m.resolve(dep, inProgress); err != nil {
			var cycle *DependencyCycle
			if asCycle, ok := err.(*DependencyCycle); ok {
				cycle = asCycle
				return nil, cycle
			}
			return nil, &UnsatisfiableDependency{Name: dep, Constraint: constraint}
		}
	}

	return newExternalPathPlugin(name, filepath.Join(m.registryDir, name)), nil
}

func globMatch(pattern, s string) bool {
	ok, err := filepath.Match(pattern, s)
	return ok && err == nil
}

func anyMatch(patterns []string, s string) bool {
	for _, p := range patterns {
		if globMatch(p, s) {
			return true
		}
	}
	return false
}

// compatibleVersion checks a "major.minor" style constraint against the
// host version, matching on major.minor equality — the same granularity
// the drift checker (C10) uses for tool version comparison.
func compatibleVersion(constraint, host string) bool {
	return majorMinor(constraint) == majorMinor(host)
}

func versionAtLeast(version, min string) bool {
	a := strings.Split(majorMinor(version), ".")
	b := strings.Split(majorMinor(min), ".")
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x, _ = strconv.Atoi(a[i])
		}
		if i < len(b) {
			y, _ = strconv.Atoi(b[i])
		}
		if x != y {
			return x > y
		}
	}
	return true
}

func majorMinor(v string) string {
	dots := 0
	for i, r := range v {
		if r == '.' {
			dots++
			if dots == 2 {
				return v[:i]
			}
		}
	}
	return v
}
