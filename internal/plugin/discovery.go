package plugin

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// builtinEntry is either `true`/`false` or `{enabled, config}` in TOML —
// go-toml/v2 decodes each entry as an untyped value and normalizeBuiltin
// below turns it into this struct: a bare boolean becomes Enabled, and a
// table without an `enabled` key defaults Enabled to true.
type builtinEntry struct {
	Enabled bool   `toml:"enabled"`
	Config  Config `toml:"config"`
}

// externalEntry is one `[[external]]` table. Exactly one of Path, Module,
// Marketplace must be set.
type externalEntry struct {
	Name        string `toml:"name"`
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	Module      string `toml:"module"`
	Marketplace string `toml:"marketplace"`
	Config      Config `toml:"config"`
}

// Manifest is the raw decoded document. Builtin entries are decoded as
// `any` first since TOML allows either a bare bool or an inline table per
// key, then normalized by normalizeBuiltin.
type Manifest struct {
	Builtin  map[string]any  `toml:"builtin"`
	External []externalEntry `toml:"external"`
}

// LoadManifest reads and parses the plugins.toml at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("plugin: parse manifest: %w", err)
	}
	return &m, nil
}

func normalizeBuiltin(raw any) builtinEntry {
	switch v := raw.(type) {
	case bool:
		return builtinEntry{Enabled: v}
	case map[string]any:
		entry := builtinEntry{Enabled: true}
		if enabled, ok := v["enabled"].(bool); ok {
			entry.Enabled = enabled
		}
		if cfg, ok := v["config"].(map[string]any); ok {
			entry.Config = Config(cfg)
		}
		return entry
	default:
		return builtinEntry{Enabled: true}
	}
}

// Discover builds the ordered plugin list of spec.md §4.5: enabled
// built-ins not explicitly disabled are registered first, then each valid
// external entry. A missing-source or bad-path external entry fails the
// whole discovery pass closed, since a partially-loaded guard-rail set is
// more dangerous than none.
func Discover(m *Manifest, resolveMarketplace func(ref string) (Plugin, error)) (*Registry, error) {
	reg := NewRegistry()

	for name, ctor := range BuiltinFactories {
		entry := builtinEntry{Enabled: true}
		if raw, ok := m.Builtin[name]; ok {
			entry = normalizeBuiltin(raw)
		}
		if !entry.Enabled {
			continue
		}
		if err := reg.Register(ctor()); err != nil {
			return nil, err
		}
	}

	for _, ext := range m.External {
		if !ext.Enabled {
			continue
		}
		sources := 0
		for _, s := range []string{ext.Path, ext.Module, ext.Marketplace} {
			if s != "" {
				sources++
			}
		}
		if sources != 1 {
			return nil, fmt.Errorf("plugin: external entry %q must set exactly one of path/module/marketplace", ext.Name)
		}

		switch {
		case ext.Marketplace != "":
			if resolveMarketplace == nil {
				return nil, fmt.Errorf("plugin: marketplace entry %q but no resolver configured", ext.Name)
			}
			p, err := resolveMarketplace(ext.Marketplace)
			if err != nil {
				return nil, err
			}
			if err := reg.Register(p); err != nil {
				return nil, err
			}
		case ext.Path != "":
			if _, err := os.Stat(ext.Path); err != nil {
				return nil, fmt.Errorf("plugin: external entry %q: bad path: %w", ext.Name, err)
			}
			if err := reg.Register(newExternalPathPlugin(ext.Name, ext.Path)); err != nil {
				return nil, err
			}
		case ext.Module != "":
			if err := reg.Register(newExternalModulePlugin(ext.Name, ext.Module)); err != nil {
				return nil, err
			}
		}
	}

	return reg, nil
}
