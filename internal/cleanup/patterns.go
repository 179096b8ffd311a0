package cleanup

import (
	"path/filepath"
	"strings"
)

// target describes one sweep-eligible pattern and the option flag that
// gates it (always-eligible patterns use a gate that returns true).
type target struct {
	match func(name string) bool
	gate  func(o Options) bool
}

func defaultTargets(o Options) []target {
	always := func(o Options) bool { return true }
	exact := func(names ...string) func(string) bool {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		return func(name string) bool {
			_, ok := set[name]
			return ok
		}
	}
	prefix := func(p string) func(string) bool {
		return func(name string) bool { return strings.HasPrefix(name, p) }
	}
	suffix := func(s string) func(string) bool {
		return func(name string) bool { return strings.HasSuffix(name, s) }
	}

	return []target{
		{match: exact(".DS_Store"), gate: always},
		{match: prefix("._"), gate: always},
		{match: exact("AppleDouble", ".AppleDouble"), gate: always},
		{match: exact("__MACOSX"), gate: always},
		{match: exact("__pycache__"), gate: func(o Options) bool { return o.CleanPythonCache }},
		{match: exact(".pytest_cache"), gate: func(o Options) bool { return o.CleanPythonCache }},
		{match: exact(".mypy_cache"), gate: func(o Options) bool { return o.CleanPythonCache }},
		{match: exact(".ruff_cache"), gate: func(o Options) bool { return o.CleanPythonCache }},
		{match: exact("node_modules"), gate: func(o Options) bool { return o.CleanNodeModules }},
		{match: exact("build", "dist"), gate: func(o Options) bool { return o.CleanBuildArtifacts }},
		{match: suffix(".egg-info"), gate: func(o Options) bool { return o.CleanBuildArtifacts }},
		{match: prefix(".coverage"), gate: func(o Options) bool { return o.CleanPythonCache }},
		{match: exact(".git"), gate: func(o Options) bool { return o.IncludeGit }},
	}
}

// matches reports whether name (a single path element) is swept by any
// gated target for the given options.
func matches(o Options, name string) bool {
	for _, t := range defaultTargets(o) {
		if t.gate(o) && t.match(name) {
			return true
		}
	}
	return false
}

// isProtectedSitePackages hard-protects .venv/**/site-packages/** even when
// root itself is .venv — spec.md §4.3's non-negotiable invariant. path must
// be the absolute walk path: a root-relative path loses its .venv
// component whenever root itself is .venv, which would silently disable
// this guard for exactly the case it exists to cover.
func isProtectedSitePackages(path string) bool {
	norm := filepath.ToSlash(path)
	parts := strings.Split(norm, "/")
	for i, p := range parts {
		if p == ".venv" {
			for j := i + 1; j < len(parts); j++ {
				if parts[j] == "site-packages" {
					return true
				}
			}
		}
	}
	return false
}
