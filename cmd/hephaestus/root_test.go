package main

import (
	"errors"
	"testing"

	"github.com/silexa/hephaestus/internal/cleanup"
	"github.com/silexa/hephaestus/internal/release"
)

func TestNewExitErrorNilErrReturnsNil(t *testing.T) {
	if err := newExitError(1, nil); err != nil {
		t.Fatalf("newExitError(1, nil) = %v, want nil", err)
	}
}

func TestExitErrorUnwrapsToUnderlyingError(t *testing.T) {
	cause := errors.New("boom")
	err := newExitError(1, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
}

func TestExitErrorCodeSurvivesWrapping(t *testing.T) {
	cause := &cleanup.DangerousPathError{Path: "/"}
	err := newExitError(2, cause)

	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("errors.As(err, &ee) = false, want true")
	}
	if ee.code != 2 {
		t.Fatalf("code = %d, want 2", ee.code)
	}

	var dangerous *cleanup.DangerousPathError
	if !errors.As(err, &dangerous) {
		t.Fatalf("errors.As(err, &dangerous) = false, want true; exitError must preserve the error chain for typed classification")
	}
}

func TestReleaseConfigErrorClassifiesAsExitTwo(t *testing.T) {
	err := newExitError(2, &release.ConfigError{Reason: "timeout_s must be > 0"})
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Fatalf("release.ConfigError did not classify to exit code 2")
	}
}

func TestCleanupAbortedClassifiesAsExitThree(t *testing.T) {
	err := newExitError(3, cleanup.ErrAborted)
	if !errors.Is(err, cleanup.ErrAborted) {
		t.Fatalf("errors.Is(err, cleanup.ErrAborted) = false, want true")
	}
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 3 {
		t.Fatalf("cleanup.ErrAborted did not classify to exit code 3")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"guard-rails", "cleanup", "release"} {
		if !names[want] {
			t.Fatalf("rootCmd missing subcommand %q", want)
		}
	}
}

func TestReleaseCommandRegistersInstallSubcommand(t *testing.T) {
	for _, c := range releaseCmd.Commands() {
		if c.Name() == "install" {
			return
		}
	}
	t.Fatal(`releaseCmd has no "install" subcommand`)
}

func TestLoadPluginRegistryMissingManifestIsNotFatal(t *testing.T) {
	reg, err := loadPluginRegistry("/nonexistent/plugins.toml")
	if err != nil {
		t.Fatalf("loadPluginRegistry() error = %v, want nil for a missing manifest", err)
	}
	if reg != nil {
		t.Fatalf("loadPluginRegistry() registry = %v, want nil", reg)
	}
}
