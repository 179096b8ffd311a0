// Package safety holds the fixed, build-time-known dangerous-path set
// shared by any component that deletes or overwrites files (today, only
// the cleanup engine, but kept separate so future destructive operations
// fail closed against the same list).
package safety

import (
	"os"
	"path/filepath"
	"strings"
)

// dangerousRoots is the fixed set from spec.md §3. $HOME is resolved at
// call time since it is host-dependent.
var dangerousRoots = []string{
	"/", "/home", "/usr", "/etc", "/var", "/bin", "/sbin",
	"/lib", "/opt", "/boot", "/root", "/sys", "/proc", "/dev",
}

// IsDangerous reports whether the resolved, absolute path p is a member of
// the dangerous-path set (or $HOME itself).
func IsDangerous(p string) bool {
	clean := filepath.Clean(p)
	for _, root := range dangerousRoots {
		if clean == root {
			return true
		}
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if clean == filepath.Clean(home) {
			return true
		}
	}
	return false
}

// IsUnder reports whether candidate is path-equal to or nested under root,
// after cleaning both.
func IsUnder(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	return strings.HasPrefix(candidate, root+string(filepath.Separator))
}
