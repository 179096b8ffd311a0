package guardrails

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/silexa/hephaestus/internal/plugin"
)

// yamllintStep wraps `yamllint`, the one legacy gate with no built-in
// plugin.Plugin constructor in internal/plugin (it has no marketplace or
// Python-tooling analogue there), shaped exactly like that package's
// subprocess plugins so it drops into the same legacy sequence slot.
type yamllintStep struct{}

func newYamllint() plugin.Plugin { return yamllintStep{} }

func (yamllintStep) Metadata() plugin.Metadata             { return plugin.Metadata{Name: "yamllint", Order: 25} }
func (yamllintStep) ValidateConfig(cfg plugin.Config) bool { return true }
func (yamllintStep) Setup(cfg plugin.Config) error         { return nil }
func (yamllintStep) Teardown() error                       { return nil }

func (yamllintStep) Run(cfg plugin.Config) plugin.Result {
	if _, err := exec.LookPath("yamllint"); err != nil {
		return plugin.Result{Success: false, Kind: "ToolMissing", Output: "yamllint: not found on PATH"}
	}
	args := paths(cfg)
	cmd := exec.CommandContext(context.Background(), "yamllint", args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return plugin.Result{Success: err == nil, Output: buf.String()}
}

func paths(cfg plugin.Config) []string {
	items, ok := cfg["paths"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
