package plugin

import (
	"bytes"
	"context"
	"os/exec"
)

// subprocessPlugin is the shared shape of every built-in: invoke a tool by
// name with a fixed argv, capture combined output, and degrade to
// ToolMissing when the binary isn't on PATH. Grounded on
// tools/silexa/docker_cli.go's exec.Command wrapping, generalized to
// capture output instead of inheriting the parent's stdio.
type subprocessPlugin struct {
	name  string
	order int
	tool  string
	args  func(cfg Config) []string
}

func (p *subprocessPlugin) Metadata() Metadata             { return Metadata{Name: p.name, Order: p.order} }
func (p *subprocessPlugin) ValidateConfig(cfg Config) bool { return true }
func (p *subprocessPlugin) Setup(cfg Config) error         { return nil }
func (p *subprocessPlugin) Teardown() error                { return nil }

func (p *subprocessPlugin) Run(cfg Config) Result {
	if _, err := exec.LookPath(p.tool); err != nil {
		return Result{Success: false, Kind: "ToolMissing", Output: (&ToolMissing{Tool: p.tool}).Error()}
	}

	args := p.args(cfg)
	cmd := exec.CommandContext(context.Background(), p.tool, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	return Result{Success: err == nil, Output: buf.String()}
}

// NewRuffCheck wraps `ruff check`, order 10.
func NewRuffCheck() Plugin {
	return &subprocessPlugin{name: "ruff-check", order: 10, tool: "ruff", args: func(cfg Config) []string {
		return append([]string{"check"}, stringSlice(cfg["paths"])...)
	}}
}

// NewRuffFormat wraps `ruff format --check`, order 20.
func NewRuffFormat() Plugin {
	return &subprocessPlugin{name: "ruff-format", order: 20, tool: "ruff", args: func(cfg Config) []string {
		return append([]string{"format", "--check"}, stringSlice(cfg["paths"])...)
	}}
}

// NewMypy wraps `mypy`, order 30.
func NewMypy() Plugin {
	return &subprocessPlugin{name: "mypy", order: 30, tool: "mypy", args: func(cfg Config) []string {
		return stringSlice(cfg["paths"])
	}}
}

// NewPytest wraps `pytest`, order 40.
func NewPytest() Plugin {
	return &subprocessPlugin{name: "pytest", order: 40, tool: "pytest", args: func(cfg Config) []string {
		return stringSlice(cfg["paths"])
	}}
}

// NewPipAudit wraps `pip-audit`, order 50.
func NewPipAudit() Plugin {
	return &subprocessPlugin{name: "pip-audit", order: 50, tool: "pip-audit", args: func(cfg Config) []string {
		return nil
	}}
}

// BuiltinFactories maps each built-in's name to its constructor, the set
// Discover consults when applying `[builtin]` enable/disable overrides
// from plugins.toml.
var BuiltinFactories = map[string]func() Plugin{
	"ruff-check":  NewRuffCheck,
	"ruff-format": NewRuffFormat,
	"mypy":        NewMypy,
	"pytest":      NewPytest,
	"pip-audit":   NewPipAudit,
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
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
