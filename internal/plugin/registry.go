package plugin

import (
	"sort"
	"sync"
)

// Registry is the process-wide ordered collection of spec.md §4.5: keyed
// by plugin name, duplicate registration rejected, members returned
// sorted by (order, name).
type Registry struct {
	mu     sync.Mutex
	byName map[string]Plugin
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Plugin)}
}

// Register adds p, keyed by its Metadata().Name. A duplicate name is
// rejected rather than overwriting the existing entry.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Metadata().Name
	if _, exists := r.byName[name]; exists {
		return &DuplicateRegistration{Name: name}
	}
	r.byName[name] = p
	return nil
}

// Lookup returns the plugin registered under name, if any.
func (r *Registry) Lookup(name string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byName[name]
	return p, ok
}

// AllPlugins returns every registered plugin sorted by (order, name).
func (r *Registry) AllPlugins() []Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Plugin, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := out[i].Metadata(), out[j].Metadata()
		if mi.Order != mj.Order {
			return mi.Order < mj.Order
		}
		return mi.Name < mj.Name
	})
	return out
}
