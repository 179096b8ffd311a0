// Package cleanup implements the workspace cleanup engine (component C3):
// normalize/validate, preview, execute, with a confirmation state machine
// for out-of-root targets and a JSON audit manifest on completion.
package cleanup

import (
	"fmt"
	"path/filepath"

	"github.com/silexa/hephaestus/internal/safety"
)

// Options is the normalized CleanupOptions of spec.md §3.
type Options struct {
	Root              string
	IncludeGit        bool
	IncludePoetryEnv  bool
	CleanPythonCache  bool
	CleanBuildArtifacts bool
	CleanNodeModules  bool
	ExtraPaths        []string
	DryRun            bool
	AuditManifestPath string

	// Confirmed satisfies the out-of-root confirmation gate (spec.md §4.3).
	// Set by the caller, e.g. from an explicit "--yes" flag. Resolve also
	// accepts a channel reply of "CONFIRM" without setting this field.
	Confirmed bool
}

// DangerousPathError is fatal: no files are touched.
type DangerousPathError struct {
	Path string
}

func (e *DangerousPathError) Error() string {
	return fmt.Sprintf("cleanup: %q is a dangerous path", e.Path)
}

// Normalize resolves Root and ExtraPaths to absolute, cleaned paths and
// validates them against the dangerous-path set. It does not touch the
// filesystem beyond path resolution.
func Normalize(opts Options) (Options, error) {
	root, err := resolveAbs(opts.Root)
	if err != nil {
		return Options{}, fmt.Errorf("cleanup: resolve root: %w", err)
	}
	if safety.IsDangerous(root) {
		return Options{}, &DangerousPathError{Path: root}
	}
	opts.Root = root

	resolvedExtra := make([]string, 0, len(opts.ExtraPaths))
	for _, p := range opts.ExtraPaths {
		abs, err := resolveAbs(p)
		if err != nil {
			return Options{}, fmt.Errorf("cleanup: resolve extra path %q: %w", p, err)
		}
		if safety.IsDangerous(abs) {
			return Options{}, &DangerousPathError{Path: abs}
		}
		resolvedExtra = append(resolvedExtra, abs)
	}
	opts.ExtraPaths = resolvedExtra
	return opts, nil
}

func resolveAbs(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// HasOutOfRootTargets reports whether any ExtraPaths entry falls outside Root.
func (o Options) HasOutOfRootTargets() bool {
	for _, p := range o.ExtraPaths {
		if !safety.IsUnder(o.Root, p) {
			return true
		}
	}
	return false
}
