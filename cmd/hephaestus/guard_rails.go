package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/silexa/hephaestus/internal/guardrails"
)

var (
	grNoFormat   bool
	grDrift      bool
	grUsePlugins bool
)

var guardRailsCmd = &cobra.Command{
	Use:   "guard-rails",
	Short: "Run the quality-gate pipeline (cleanup prelude, optional drift check, gates)",
	RunE:  runGuardRails,
}

func init() {
	guardRailsCmd.Flags().BoolVar(&grNoFormat, "no-format", false, "skip the formatter gate")
	guardRailsCmd.Flags().BoolVar(&grDrift, "drift", false, "fail fast on declared-vs-installed tool version drift")
	guardRailsCmd.Flags().BoolVar(&grUsePlugins, "use-plugins", false, "run the registered plugin order instead of the legacy fixed sequence")
}

func runGuardRails(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return newExitError(1, err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return newExitError(2, err)
	}
	registry, err := loadPluginRegistry(cfg.PluginManifestPath)
	if err != nil {
		return newExitError(2, err)
	}

	opts := guardrails.Options{
		SkipFormat:   grNoFormat,
		DriftCheck:   grDrift,
		UsePlugins:   grUsePlugins,
		Registry:     registry,
		ManifestPath: "pyproject.toml",
		WorkspaceDir: wd,
		// The CLI runs the cleanup prelude directly, unlike the REST/gRPC
		// transports which always suppress it in favor of their separate
		// Cleanup endpoint (see DESIGN.md's C9 entry).
		Cleanup: guardrails.CleanupPreludeOptions{Root: wd},
	}

	sink := buildCLISink(cfg.TelemetryEnabled)
	result, err := guardrails.Run(cmd.Context(), sink, opts, nil)
	if err != nil {
		return newExitError(1, err)
	}
	printGuardRailsResult(result)
	if !result.Success {
		return newExitError(1, fmt.Errorf("guard-rails: one or more gates failed"))
	}
	return nil
}

func printGuardRailsResult(result guardrails.Result) {
	for _, gate := range result.Gates {
		fmt.Printf("%-20s %-8s %s\n", gate.Name, gate.Status, gate.Summary)
	}
	fmt.Printf("guard-rails: success=%v duration=%s\n", result.Success, result.Duration)
}
