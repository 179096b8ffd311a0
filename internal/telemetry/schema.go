package telemetry

import "fmt"

// Severity mirrors the structured log levels emitted alongside a TelemetryEvent.
type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Schema declares the required and optional payload keys for a named event.
// Names are dotted namespaces, e.g. "release.download.start".
type Schema struct {
	Name     string
	Required []string
	Optional []string
}

// SchemaViolation is returned when an emitted payload is missing a required key.
type SchemaViolation struct {
	Event   string
	Missing []string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("telemetry: event %q missing required payload keys: %v", e.Event, e.Missing)
}

// Registry holds the set of schemas known at init time. It is built once per
// process by the components that emit events; there is no import-time
// mutable global.
type Registry struct {
	schemas map[string]Schema
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// Register adds a schema. Re-registering the same name overwrites it, which
// is only expected to happen in tests.
func (r *Registry) Register(s Schema) {
	r.schemas[s.Name] = s
}

// Validate checks a payload against the schema registered for name. Unknown
// event names are allowed through unchecked (schemas are an opt-in
// contract, not a closed world) so ad-hoc internal events never fail the
// caller.
func (r *Registry) Validate(name string, payload map[string]any) error {
	schema, ok := r.schemas[name]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range schema.Required {
		if _, present := payload[key]; !present {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &SchemaViolation{Event: name, Missing: missing}
	}
	return nil
}

// DefaultRegistry builds the schemas referenced throughout spec.md §4, so
// every component's emit() calls validate against a known shape.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []Schema{
		{Name: "cleanup.run.start", Required: []string{"root"}, Optional: []string{"dry_run"}},
		{Name: "cleanup.path.preview", Required: []string{"path"}},
		{Name: "cleanup.path.removed", Required: []string{"path"}},
		{Name: "cleanup.path.skipped", Required: []string{"path"}, Optional: []string{"reason"}},
		{Name: "cleanup.path.error", Required: []string{"path", "reason"}},
		{Name: "cleanup.run.complete", Required: []string{"removed", "skipped", "errors"}},
		{Name: "release.asset.sanitised", Required: []string{"original", "sanitised"}},
		{Name: "release.network.retry", Required: []string{"attempt", "max_retries"}, Optional: []string{"backoff_s"}},
		{Name: "release.http.retry", Required: []string{"attempt", "max_retries", "backoff_s"}},
		{Name: "release.download.start", Required: []string{"asset"}},
		{Name: "release.download.complete", Required: []string{"asset", "bytes"}},
		{Name: "release.manifest.locate", Required: []string{"asset"}},
		{Name: "release.manifest.download", Required: []string{"asset"}},
		{Name: "release.manifest.verified", Required: []string{"asset", "sha256"}},
		{Name: "release.manifest.skipped", Required: []string{"reason"}},
		{Name: "release.sigstore.locate", Required: []string{"asset"}},
		{Name: "release.sigstore.download", Required: []string{"asset"}},
		{Name: "release.sigstore.missing", Required: []string{"pattern"}},
		{Name: "release.sigstore.verified", Required: []string{"subject", "issuer"}},
		{Name: "release.install.start", Required: []string{"destination"}},
		{Name: "release.install.invoke", Required: []string{"wheel_count"}},
		{Name: "release.install.complete", Required: []string{"destination", "wheels"}},
		{Name: "cli.guard-rails.start", Required: []string{"use_plugins"}},
		{Name: "cli.guard-rails.complete", Required: []string{"success", "duration_s"}},
		{Name: "cli.guard-rails.failed", Required: []string{"step", "exit_code"}},
		{Name: "cli.guard-rails.drift", Required: []string{"tool"}},
	} {
		r.Register(s)
	}
	return r
}
