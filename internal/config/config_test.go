package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("got addr %q", cfg.Addr)
	}
	if cfg.TaskCapacity != 100 {
		t.Fatalf("got capacity %d", cfg.TaskCapacity)
	}
	if cfg.TaskRetention != time.Hour {
		t.Fatalf("got retention %v", cfg.TaskRetention)
	}
	if cfg.TaskTimeout != 5*time.Minute {
		t.Fatalf("got task timeout %v", cfg.TaskTimeout)
	}
	if cfg.NetworkTimeoutS != 30 {
		t.Fatalf("got network timeout %v", cfg.NetworkTimeoutS)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("got max retries %d", cfg.MaxRetries)
	}
}

func TestLoadHonorsEnvironmentOverrides(t *testing.T) {
	t.Setenv("HEPHAESTUS_ADDR", ":9999")
	t.Setenv("HEPHAESTUS_TASK_CAPACITY", "5")
	t.Setenv("HEPHAESTUS_TASK_RETENTION", "10m")
	t.Setenv("HEPHAESTUS_MAX_RETRIES", "7")
	t.Setenv("HEPHAESTUS_TELEMETRY_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.TaskCapacity != 5 || cfg.TaskRetention != 10*time.Minute || cfg.MaxRetries != 7 || !cfg.TelemetryEnabled {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadRejectsInvalidTaskCapacity(t *testing.T) {
	t.Setenv("HEPHAESTUS_TASK_CAPACITY", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for a non-positive task capacity")
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("HEPHAESTUS_TASK_RETENTION", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for a malformed duration")
	}
}
