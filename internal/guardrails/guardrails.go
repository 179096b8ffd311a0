// Package guardrails implements the quality-gate orchestrator (component
// C6): a cleanup prelude, an optional drift check, then a plugin-or-legacy
// sequence of gates run fail-fast with per-step timing. Grounded on
// tools/silexa/docker_cli.go's exec.Command wrapping for the legacy
// subprocess steps and on internal/cleanup.Run's phased
// start/complete telemetry shape.
package guardrails

import (
	"context"
	"fmt"
	"time"

	"github.com/silexa/hephaestus/internal/cleanup"
	"github.com/silexa/hephaestus/internal/drift"
	"github.com/silexa/hephaestus/internal/plugin"
	"github.com/silexa/hephaestus/internal/telemetry"
)

// Options is the normalized options of spec.md §4.6.
type Options struct {
	SkipFormat bool
	DriftCheck bool
	UsePlugins bool

	// Cleanup seeds the deep-clean prelude of step 1. Callers that want to
	// suppress the prelude entirely set SkipCleanup.
	Cleanup     CleanupPreludeOptions
	SkipCleanup bool

	// Registry supplies the plugin order when UsePlugins is set.
	Registry *plugin.Registry

	// ManifestPath/WorkspaceDir feed the drift check when DriftCheck is set.
	ManifestPath string
	WorkspaceDir string

	// Paths is forwarded to every legacy/plugin step's config as "paths".
	Paths []string
}

// CleanupPreludeOptions mirrors the cleanup.Options fields the prelude
// needs, kept separate from cleanup.Options so guardrails doesn't force
// callers to thread through fields (DryRun, AuditManifestPath) that never
// apply to a deep-clean prelude.
type CleanupPreludeOptions struct {
	Root             string
	ExtraPaths       []string
	IncludeGit       bool
	IncludePoetryEnv bool
}

// GateStatus is a single step's disposition, distinct from ActionError/etc
// in cleanup since a gate's failure mode is an exit code, not a path error.
type GateStatus string

const (
	GateOK      GateStatus = "ok"
	GateFailed  GateStatus = "failed"
	GateSkipped GateStatus = "skipped"
)

// GateReport is one step's outcome, always recorded with its duration even
// on failure (spec.md §4.6).
type GateReport struct {
	Name     string
	Status   GateStatus
	ExitCode int
	Summary  string
	Duration time.Duration
}

// Result is the GuardRailsResult of spec.md §4.6.
type Result struct {
	Gates    []GateReport
	Success  bool
	Duration time.Duration
}

// legacySequence is the fixed order of spec.md §4.6 step 3 when plugins
// are not in use.
func legacySequence(skipFormat bool) []plugin.Plugin {
	seq := []plugin.Plugin{plugin.NewRuffCheck()}
	if !skipFormat {
		seq = append(seq, plugin.NewRuffFormat())
	}
	seq = append(seq, newYamllint(), plugin.NewMypy(), plugin.NewPytest(), plugin.NewPipAudit())
	return seq
}

// Run executes the four-stage sequence of spec.md §4.6.
func Run(ctx context.Context, sink *telemetry.Sink, opts Options, progress func(fraction float64, detail string)) (Result, error) {
	if sink == nil {
		sink = telemetry.NewDisabled()
	}
	if progress == nil {
		progress = func(float64, string) {}
	}
	start := time.Now()

	_ = sink.Emit(ctx, "cli.guard-rails.start", telemetry.SeverityInfo, "guard-rails started", map[string]any{
		"use_plugins": opts.UsePlugins,
	})

	result := Result{}

	if !opts.SkipCleanup {
		progress(0, "cleanup prelude")
		if err := runCleanupPrelude(ctx, sink, opts); err != nil {
			return result, fmt.Errorf("guardrails: cleanup prelude: %w", err)
		}
	}

	if opts.DriftCheck {
		progress(0.1, "drift check")
		report, err := drift.Check(ctx, opts.ManifestPath, opts.WorkspaceDir)
		if err != nil {
			return result, fmt.Errorf("guardrails: drift check: %w", err)
		}
		if report.Drifted() {
			for _, r := range report.Results {
				if r.Status == drift.StatusOK {
					continue
				}
				_ = sink.Emit(ctx, "cli.guard-rails.drift", telemetry.SeverityWarn, "tool drift detected", map[string]any{
					"tool": r.Tool,
				})
			}
			result.Duration = time.Since(start)
			_ = sink.Emit(ctx, "cli.guard-rails.failed", telemetry.SeverityError, "drift detected", map[string]any{
				"step": "drift", "exit_code": 1,
			})
			return result, nil
		}
	}

	steps := legacySequence(opts.SkipFormat)
	if opts.UsePlugins {
		if opts.Registry == nil {
			return result, fmt.Errorf("guardrails: use_plugins requires a populated registry")
		}
		steps = opts.Registry.AllPlugins()
	}

	cfg := plugin.Config{"paths": toAnySlice(opts.Paths)}
	result.Success = true
	for i, step := range steps {
		meta := step.Metadata()
		progress(0.2+0.8*float64(i)/float64(len(steps)), meta.Name)

		stepStart := time.Now()
		gate := runGate(ctx, step, cfg)
		gate.Duration = time.Since(stepStart)
		sink.ObservePhase(ctx, "hephaestus.guard-rails."+meta.Name+".duration", gate.Duration.Seconds())
		result.Gates = append(result.Gates, gate)

		if gate.Status == GateFailed {
			result.Success = false
			_ = sink.Emit(ctx, "cli.guard-rails.failed", telemetry.SeverityError, "gate failed", map[string]any{
				"step": meta.Name, "exit_code": gate.ExitCode,
			})
			break
		}
	}

	result.Duration = time.Since(start)
	_ = sink.Emit(ctx, "cli.guard-rails.complete", telemetry.SeverityInfo, "guard-rails complete", map[string]any{
		"success": result.Success, "duration_s": result.Duration.Seconds(),
	})
	return result, nil
}

func runCleanupPrelude(ctx context.Context, sink *telemetry.Sink, opts Options) error {
	co := cleanup.Options{
		Root:                opts.Cleanup.Root,
		ExtraPaths:          opts.Cleanup.ExtraPaths,
		IncludeGit:          opts.Cleanup.IncludeGit,
		IncludePoetryEnv:    opts.Cleanup.IncludePoetryEnv,
		CleanPythonCache:    true,
		CleanBuildArtifacts: true,
		CleanNodeModules:    true,
		Confirmed:           true,
	}
	_, err := cleanup.Run(ctx, sink, co, nil, nil)
	return err
}

func runGate(ctx context.Context, p plugin.Plugin, cfg plugin.Config) GateReport {
	meta := p.Metadata()
	if !p.ValidateConfig(cfg) {
		return GateReport{Name: meta.Name, Status: GateFailed, ExitCode: 2, Summary: "invalid config"}
	}
	if err := p.Setup(cfg); err != nil {
		return GateReport{Name: meta.Name, Status: GateFailed, ExitCode: 1, Summary: err.Error()}
	}
	defer p.Teardown()

	select {
	case <-ctx.Done():
		return GateReport{Name: meta.Name, Status: GateFailed, ExitCode: 1, Summary: ctx.Err().Error()}
	default:
	}

	res := p.Run(cfg)
	if res.Success {
		return GateReport{Name: meta.Name, Status: GateOK, Summary: summarize(res.Output)}
	}
	exitCode := 1
	if res.Kind == "ToolMissing" {
		exitCode = 127
	}
	return GateReport{Name: meta.Name, Status: GateFailed, ExitCode: exitCode, Summary: summarize(res.Output)}
}

func summarize(output string) string {
	const max = 500
	if len(output) <= max {
		return output
	}
	return output[:max] + "…"
}

func toAnySlice(paths []string) []any {
	out := make([]any, len(paths))
	for i, p := range paths {
		out[i] = p
	}
	return out
}
