// Package drift implements the tool-version drift detector (component
// C10): declared floors are read from the workspace's project manifest,
// compared against what's actually on PATH. Grounded the same way as the
// guard-rails orchestrator (internal/guardrails) — subprocess `--version`
// invocation via os/exec, matching tools/silexa/docker_cli.go's wrapping
// style — plus github.com/pelletier/go-toml/v2 for the manifest, the same
// library internal/plugin already uses for plugins.toml.
package drift

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// Status is one tool's drift disposition.
type Status string

const (
	StatusOK      Status = "OK"
	StatusDrift   Status = "Drift"
	StatusMissing Status = "Missing"
)

// Result is one row of a drift check: the declared floor against what was
// actually observed on PATH.
type Result struct {
	Tool     string
	Expected string
	Actual   string
	Status   Status
}

// Report is the outcome of a full Check call.
type Report struct {
	Results     []Result
	Remediation []string
}

// Drifted reports whether any tool landed outside OK.
func (r Report) Drifted() bool {
	for _, res := range r.Results {
		if res.Status != StatusOK {
			return true
		}
	}
	return false
}

// lockfile names remediate looks for in the workspace directory, each with
// its sync command. When several are present, which one is used is not
// defined (map iteration order).
var lockfileSyncCommands = map[string]string{
	"uv.lock":           "uv sync --locked",
	"poetry.lock":       "poetry install --sync",
	"requirements.lock": "pip-compile --generate-hashes",
	"Pipfile.lock":      "pipenv sync",
}

// manifest is the `[tool.hephaestus.versions]` section of pyproject.toml:
// a flat map of tool name to the declared minimum major.minor version.
type manifest struct {
	Tool struct {
		Hephaestus struct {
			Versions map[string]string `toml:"versions"`
		} `toml:"hephaestus"`
	} `toml:"tool"`
}

// LoadDeclared reads the `[tool.hephaestus.versions]` table out of the
// pyproject.toml at manifestPath.
func LoadDeclared(manifestPath string) (map[string]string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("drift: read manifest: %w", err)
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("drift: parse manifest: %w", err)
	}
	return m.Tool.Hephaestus.Versions, nil
}

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// probeVersion invokes `tool --version` and extracts the first
// semver-shaped substring from its combined output.
func probeVersion(ctx context.Context, tool string) (string, error) {
	if _, err := exec.LookPath(tool); err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, tool, "--version")
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	_ = cmd.Run() // some tools (e.g. pytest) exit nonzero with --version; output still printed
	match := versionPattern.FindString(buf.String())
	if match == "" {
		return "", fmt.Errorf("drift: could not parse a version from %q --version output", tool)
	}
	return match, nil
}

// Check loads declared tool floors from manifestPath, probes each tool's
// actual version, and reports per spec.md §4.10. workspaceDir is scanned
// for a recognized lockfile to prefer a sync-style remediation command.
func Check(ctx context.Context, manifestPath, workspaceDir string) (Report, error) {
	declared, err := LoadDeclared(manifestPath)
	if err != nil {
		return Report{}, err
	}

	tools := make([]string, 0, len(declared))
	for tool := range declared {
		tools = append(tools, tool)
	}
	sort.Strings(tools)

	report := Report{}
	for _, tool := range tools {
		expected := declared[tool]
		actual, err := probeVersion(ctx, tool)
		if err != nil {
			report.Results = append(report.Results, Result{Tool: tool, Expected: expected, Status: StatusMissing})
			continue
		}
		status := StatusOK
		if majorMinor(actual) != majorMinor(expected) {
			status = StatusDrift
		}
		report.Results = append(report.Results, Result{Tool: tool, Expected: expected, Actual: actual, Status: status})
	}

	report.Remediation = remediate(report, workspaceDir, declared)
	return report, nil
}

// remediate prefers a single lockfile-sync command when a recognized
// lockfile is present in workspaceDir; otherwise it generates one
// install command per drifted/missing tool at its declared floor.
func remediate(report Report, workspaceDir string, declared map[string]string) []string {
	if !report.Drifted() {
		return nil
	}
	for name, cmd := range lockfileSyncCommands {
		if _, err := os.Stat(workspaceDir + string(os.PathSeparator) + name); err == nil {
			return []string{cmd}
		}
	}
	cmds := make([]string, 0, len(report.Results))
	for _, res := range report.Results {
		if res.Status == StatusOK {
			continue
		}
		cmds = append(cmds, fmt.Sprintf("pip install --upgrade '%s>=%s'", res.Tool, declared[res.Tool]))
	}
	return cmds
}

func majorMinor(v string) string {
	dots := 0
	for i, r := range v {
		if r == '.' {
			dots++
			if dots == 2 {
				return v[:i]
			}
		}
	}
	return v
}
