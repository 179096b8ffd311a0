package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func mustWriteFile(t *testing.T, path string) {
	t.Helper()
	mustMkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRunDryRunPreviewsPycacheAndProtectsSitePackages(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "project", "__pycache__", "a.pyc"))
	mustWriteFile(t, filepath.Join(root, "project", ".venv", "lib", "python3.12", "site-packages", "pkg", "__init__.py"))

	opts := Options{
		Root:             filepath.Join(root, "project"),
		CleanPythonCache: true,
		DryRun:           true,
	}
	report, err := Run(context.Background(), nil, opts, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	pycachePreviewed := false
	for _, e := range report.Entries {
		if filepath.Base(e.Path) == "__pycache__" {
			pycachePreviewed = true
		}
		if filepath.Base(filepath.Dir(e.Path)) == "site-packages" || filepath.Base(e.Path) == "site-packages" {
			t.Fatalf("site-packages must never be previewed, got entry %+v", e)
		}
	}
	if !pycachePreviewed {
		t.Fatalf("expected __pycache__ to be previewed, entries=%+v", report.Entries)
	}
	if report.Removed != 0 {
		t.Fatalf("dry run must not remove anything, got removed=%d", report.Removed)
	}

	if _, err := os.Stat(filepath.Join(root, "project", "__pycache__", "a.pyc")); err != nil {
		t.Fatalf("expected file to still exist after dry run: %v", err)
	}
}

func TestRunRejectsDangerousRoot(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{Root: "/"}, nil, nil)
	var dpErr *DangerousPathError
	if err == nil {
		t.Fatalf("expected DangerousPathError for root=/")
	}
	if e, ok := err.(*DangerousPathError); ok {
		dpErr = e
	}
	if dpErr == nil {
		t.Fatalf("expected *DangerousPathError, got %T: %v", err, err)
	}
}

func TestRunIsIdempotentOnSecondPass(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "__pycache__", "a.pyc"))

	opts := Options{Root: root, CleanPythonCache: true}
	first, err := Run(context.Background(), nil, opts, nil, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Removed == 0 {
		t.Fatalf("expected first run to remove the pycache dir")
	}

	second, err := Run(context.Background(), nil, opts, nil, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Removed != 0 || second.Errors != 0 {
		t.Fatalf("expected idempotent second run, got removed=%d errors=%d", second.Removed, second.Errors)
	}
}

func TestRunAbortsOnOutOfRootTargetsWithoutConfirmation(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	opts := Options{Root: root, ExtraPaths: []string{outside}}
	_, err := Run(context.Background(), nil, opts, nil, nil)
	if err != ErrAborted {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestRunProceedsWithExplicitConfirmation(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	mustWriteFile(t, filepath.Join(outside, "node_modules", "leftover.js"))

	opts := Options{
		Root:             root,
		ExtraPaths:       []string{outside},
		CleanNodeModules: true,
		Confirmed:        true,
	}
	report, err := Run(context.Background(), nil, opts, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Removed == 0 {
		t.Fatalf("expected node_modules under the confirmed extra path to be removed")
	}
}

func TestRunProtectsSitePackagesEvenWithPoetryEnvIncluded(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, ".venv", "lib", "python3.12", "site-packages", "pkg", "__init__.py"))
	mustWriteFile(t, filepath.Join(root, ".venv", "lib", "python3.12", "__pycache__", "a.pyc"))

	opts := Options{
		Root:             root,
		IncludePoetryEnv: true,
		CleanPythonCache: true,
		DryRun:           true,
	}
	report, err := Run(context.Background(), nil, opts, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, e := range report.Entries {
		if filepath.Base(e.Path) == "site-packages" {
			t.Fatalf("site-packages must never be swept even with include_poetry_env, got %+v", e)
		}
	}
	sawPycache := false
	for _, e := range report.Entries {
		if filepath.Base(e.Path) == "__pycache__" {
			sawPycache = true
		}
	}
	if !sawPycache {
		t.Fatalf("expected __pycache__ inside .venv to still be swept when include_poetry_env is set, entries=%+v", report.Entries)
	}
}

func TestRunProtectsWholeVenvByDefault(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, ".venv", "lib", "python3.12", "__pycache__", "a.pyc"))

	opts := Options{Root: root, CleanPythonCache: true, DryRun: true}
	report, err := Run(context.Background(), nil, opts, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Entries) != 0 {
		t.Fatalf("expected .venv to be entirely protected by default, got %+v", report.Entries)
	}
}

func TestWriteManifestRoundTrips(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "report.json")
	report := Report{Removed: 1, Entries: []Entry{{Path: "/tmp/x", Action: ActionRemoved}}}
	if err := WriteManifest(manifest, report); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	if _, err := os.Stat(manifest); err != nil {
		t.Fatalf("expected manifest file: %v", err)
	}
}
