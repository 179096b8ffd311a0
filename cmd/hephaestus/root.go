package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/silexa/hephaestus/internal/config"
	"github.com/silexa/hephaestus/internal/plugin"
	"github.com/silexa/hephaestus/internal/telemetry"
)

// version is overridden at build time with -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "hephaestus",
	Short:        "Quality gates, workspace cleanup, and signed release installs",
	SilenceUsage: true,
}

// Execute runs the CLI and returns the process exit code of spec.md §6:
// 0 success, 1 operation failure, 2 invalid args, 3 authorization or
// safety refusal.
func Execute() int {
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hephaestus:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 2 // cobra's own arg-parsing failures are invalid-args
	}
	return 0
}

func init() {
	rootCmd.AddCommand(guardRailsCmd, cleanupCmd, releaseCmd)
}

// exitError carries the spec.md §6 exit code alongside the underlying
// error, so Execute can report the right code without every RunE
// duplicating the classification logic.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// loadConfig loads the shared environment configuration; the CLI only
// consults its plugin-manifest and telemetry fields, but a single
// env-parsing contract keeps the CLI and hephaestus-server consistent.
func loadConfig() (config.Config, error) {
	return config.Load()
}

// loadPluginRegistry loads .hephaestus/plugins.toml into a registry for
// --use-plugins. A missing manifest is not fatal: guardrails.Run itself
// rejects use_plugins without a registry.
func loadPluginRegistry(manifestPath string) (*plugin.Registry, error) {
	manifest, err := plugin.LoadManifest(manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return plugin.Discover(manifest, nil)
}

// buildCLISink wires a real OTel SDK tracer/meter provider when
// telemetry is enabled, matching cmd/hephaestus-server's buildSink; no
// exporter is attached since none is named anywhere in the retrieved
// pack.
func buildCLISink(enabled bool) *telemetry.Sink {
	if !enabled {
		return telemetry.NewDisabled()
	}
	return telemetry.New(true, sdktrace.NewTracerProvider(), sdkmetric.NewMeterProvider())
}
