// Package plugin implements the plugin registry and discovery subsystem
// (component C5): a process-wide ordered collection of guard-rail steps,
// populated from built-ins and `.hephaestus/plugins.toml` external/
// marketplace entries. Grounded on tools/si/internal/providers' ID-keyed
// spec registry and tools/si's go-toml/v2 settings loading.
package plugin

import "fmt"

// Metadata describes one registered plugin: its name and its invocation
// order (lower runs first).
type Metadata struct {
	Name  string
	Order int
}

// Config is the caller-supplied, plugin-specific configuration blob
// decoded from a plugins.toml entry.
type Config map[string]any

// Result is what Run returns: success/failure plus captured output.
type Result struct {
	Success bool
	Output  string
	Kind    string // "" on success; e.g. "ToolMissing" on a degraded failure
}

// Plugin is the invocation contract of spec.md §4.5:
// validate_config -> setup -> run -> teardown.
type Plugin interface {
	Metadata() Metadata
	ValidateConfig(cfg Config) bool
	Setup(cfg Config) error
	Run(cfg Config) Result
	Teardown() error
}

// ToolMissing is the degraded-result kind for a built-in plugin whose
// underlying subprocess tool is absent from PATH.
type ToolMissing struct{ Tool string }

func (e *ToolMissing) Error() string { return fmt.Sprintf("plugin: tool %q not found on PATH", e.Tool) }

// UnsatisfiableDependency means marketplace dependency resolution could not
// pin a satisfying version for a required plugin.
type UnsatisfiableDependency struct{ Name, Constraint string }

func (e *UnsatisfiableDependency) Error() string {
	return fmt.Sprintf("plugin: no version of %q satisfies %q", e.Name, e.Constraint)
}

// DependencyCycle means marketplace resolution detected a cycle among
// plugin dependencies.
type DependencyCycle struct{ Chain []string }

func (e *DependencyCycle) Error() string {
	return fmt.Sprintf("plugin: dependency cycle: %v", e.Chain)
}

// DuplicateRegistration means a plugin name was registered twice.
type DuplicateRegistration struct{ Name string }

func (e *DuplicateRegistration) Error() string {
	return fmt.Sprintf("plugin: %q already registered", e.Name)
}
