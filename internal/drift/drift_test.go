package drift

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir string, versions map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "pyproject.toml")
	body := "[tool.hephaestus.versions]\n"
	for tool, version := range versions {
		body += tool + " = \"" + version + "\"\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func writeFakeTool(t *testing.T, dir, name, script string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
}

func TestLoadDeclaredParsesVersionsTable(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, map[string]string{"ruff": "0.6.1", "mypy": "1.10.0"})

	declared, err := LoadDeclared(path)
	if err != nil {
		t.Fatalf("LoadDeclared: %v", err)
	}
	if declared["ruff"] != "0.6.1" || declared["mypy"] != "1.10.0" {
		t.Fatalf("got %+v", declared)
	}
}

func TestCheckReportsOKWhenVersionsMatch(t *testing.T) {
	binDir := t.TempDir()
	writeFakeTool(t, binDir, "ruff", "echo 'ruff 0.6.3'")
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))

	manifestDir := t.TempDir()
	path := writeManifest(t, manifestDir, map[string]string{"ruff": "0.6.0"})

	report, err := Check(context.Background(), path, manifestDir)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Drifted() {
		t.Fatalf("expected no drift, got %+v", report.Results)
	}
	if len(report.Results) != 1 || report.Results[0].Status != StatusOK {
		t.Fatalf("got %+v", report.Results)
	}
}

func TestCheckReportsDriftOnMajorMinorMismatch(t *testing.T) {
	binDir := t.TempDir()
	writeFakeTool(t, binDir, "ruff", "echo 'ruff 0.5.0'")
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))

	manifestDir := t.TempDir()
	path := writeManifest(t, manifestDir, map[string]string{"ruff": "0.6.0"})

	report, err := Check(context.Background(), path, manifestDir)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !report.Drifted() {
		t.Fatalf("expected drift")
	}
	if report.Results[0].Status != StatusDrift {
		t.Fatalf("got %+v", report.Results[0])
	}
	if len(report.Remediation) != 1 {
		t.Fatalf("expected one remediation command, got %v", report.Remediation)
	}
}

func TestCheckReportsMissingWhenToolAbsentFromPath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	manifestDir := t.TempDir()
	path := writeManifest(t, manifestDir, map[string]string{"mypy": "1.10"})

	report, err := Check(context.Background(), path, manifestDir)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Results[0].Status != StatusMissing {
		t.Fatalf("got %+v", report.Results[0])
	}
}

func TestCheckPrefersLockfileSyncCommand(t *testing.T) {
	binDir := t.TempDir()
	writeFakeTool(t, binDir, "ruff", "echo 'ruff 0.5.0'")
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))

	manifestDir := t.TempDir()
	path := writeManifest(t, manifestDir, map[string]string{"ruff": "0.6.0"})
	if err := os.WriteFile(filepath.Join(manifestDir, "uv.lock"), []byte(""), 0o644); err != nil {
		t.Fatalf("write lockfile: %v", err)
	}

	report, err := Check(context.Background(), path, manifestDir)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(report.Remediation) != 1 || report.Remediation[0] != "uv sync --locked" {
		t.Fatalf("got %v", report.Remediation)
	}
}
