// Package config loads Hephaestus's ambient configuration from the
// environment, with eager validation and fail-fast defaults, the same
// shape as apps/ReleaseParty/backend/internal/config.Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is everything cmd/hephaestus and cmd/hephaestus-server need at
// startup, per spec.md §5's resource-bound defaults.
type Config struct {
	Addr string

	PluginManifestPath     string
	ServiceAccountKeysPath string
	AuditLogDir            string

	TaskCapacity    int
	TaskRetention   time.Duration
	TaskTimeout     time.Duration
	NetworkTimeoutS float64
	MaxRetries      int

	TelemetryEnabled bool
}

// Load reads every HEPHAESTUS_* environment variable, applying the
// defaults of spec.md §5, and validates eagerly.
func Load() (Config, error) {
	cfg := Config{
		Addr:                   env("HEPHAESTUS_ADDR", ":8080"),
		PluginManifestPath:     env("HEPHAESTUS_PLUGIN_MANIFEST_PATH", ".hephaestus/plugins.toml"),
		ServiceAccountKeysPath: env("HEPHAESTUS_SERVICE_ACCOUNT_KEYS_PATH", ".hephaestus/service-accounts.json"),
		AuditLogDir:            env("HEPHAESTUS_AUDIT_LOG_DIR", ".hephaestus/audit"),
		NetworkTimeoutS:        30,
		MaxRetries:             3,
		TaskCapacity:           100,
		TaskRetention:          time.Hour,
		TaskTimeout:            5 * time.Minute,
	}

	var err error
	if cfg.TaskCapacity, err = envInt("HEPHAESTUS_TASK_CAPACITY", cfg.TaskCapacity); err != nil {
		return Config{}, err
	}
	if cfg.TaskRetention, err = envDuration("HEPHAESTUS_TASK_RETENTION", cfg.TaskRetention); err != nil {
		return Config{}, err
	}
	if cfg.TaskTimeout, err = envDuration("HEPHAESTUS_TASK_TIMEOUT", cfg.TaskTimeout); err != nil {
		return Config{}, err
	}
	if cfg.NetworkTimeoutS, err = envFloat("HEPHAESTUS_NETWORK_TIMEOUT_S", cfg.NetworkTimeoutS); err != nil {
		return Config{}, err
	}
	if cfg.MaxRetries, err = envInt("HEPHAESTUS_MAX_RETRIES", cfg.MaxRetries); err != nil {
		return Config{}, err
	}
	if cfg.TelemetryEnabled, err = envBool("HEPHAESTUS_TELEMETRY_ENABLED", false); err != nil {
		return Config{}, err
	}

	if cfg.TaskCapacity <= 0 {
		return Config{}, fmt.Errorf("config: HEPHAESTUS_TASK_CAPACITY must be > 0")
	}
	if cfg.TaskRetention <= 0 {
		return Config{}, fmt.Errorf("config: HEPHAESTUS_TASK_RETENTION must be > 0")
	}
	if cfg.NetworkTimeoutS <= 0 {
		return Config{}, fmt.Errorf("config: HEPHAESTUS_NETWORK_TIMEOUT_S must be > 0")
	}
	if cfg.MaxRetries < 1 {
		return Config{}, fmt.Errorf("config: HEPHAESTUS_MAX_RETRIES must be >= 1")
	}

	return cfg, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}
