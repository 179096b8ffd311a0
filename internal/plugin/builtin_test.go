package plugin

import "testing"

func TestBuiltinFactoriesCoverAllFiveToolsWithDistinctOrders(t *testing.T) {
	wantOrders := map[string]int{
		"ruff-check":  10,
		"ruff-format": 20,
		"mypy":        30,
		"pytest":      40,
		"pip-audit":   50,
	}
	if len(BuiltinFactories) != len(wantOrders) {
		t.Fatalf("got %d builtins, want %d", len(BuiltinFactories), len(wantOrders))
	}
	for name, ctor := range BuiltinFactories {
		meta := ctor().Metadata()
		if meta.Name != name {
			t.Fatalf("factory %q produced plugin named %q", name, meta.Name)
		}
		if meta.Order != wantOrders[name] {
			t.Fatalf("%q: got order %d, want %d", name, meta.Order, wantOrders[name])
		}
	}
}

func TestSubprocessPluginDegradesWhenToolMissing(t *testing.T) {
	p := &subprocessPlugin{name: "definitely-not-a-real-tool", order: 10, tool: "definitely-not-a-real-tool-xyz", args: func(Config) []string { return nil }}
	result := p.Run(nil)
	if result.Success {
		t.Fatalf("expected failure when tool is absent from PATH")
	}
	if result.Kind != "ToolMissing" {
		t.Fatalf("got kind %q, want ToolMissing", result.Kind)
	}
}
