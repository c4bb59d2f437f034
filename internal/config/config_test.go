package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "SERVER_PORT", "BACKEND_BASE_URL", "BACKEND_TIMEOUT", "CAPTURE_MAX_SECONDS",
		"ORCHESTRATOR_SETTLE_DELAY_MS", "ORCHESTRATOR_AUDIO_CADENCE_MS", "ORCHESTRATOR_SAMPLE_CADENCE_MS",
		"GATEWAY_ENABLED", "RATELIMIT_PROCESS_PER_HOUR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8000" {
		t.Errorf("expected port 8000, got %s", cfg.Server.Port)
	}
	if cfg.Backend.Timeout != 0 {
		t.Errorf("expected unbounded backend timeout, got %d", cfg.Backend.Timeout)
	}
	if cfg.Capture.MaxSeconds != 120 {
		t.Errorf("expected 120s recording limit, got %d", cfg.Capture.MaxSeconds)
	}
	if got := cfg.Orchestrator.SettleDelay(); got != 500*time.Millisecond {
		t.Errorf("expected 500ms settle delay, got %s", got)
	}
	if got := cfg.Orchestrator.AudioCadence(); got != 2*time.Second {
		t.Errorf("expected 2s audio cadence, got %s", got)
	}
	if got := cfg.Orchestrator.SampleCadence(); got != time.Second {
		t.Errorf("expected 1s sample cadence, got %s", got)
	}
	if cfg.Gateway.Enabled {
		t.Error("gateway mode should be off by default")
	}
	if cfg.RateLimit.ProcessPerHour != 60 {
		t.Errorf("expected 60 runs per hour, got %d", cfg.RateLimit.ProcessPerHour)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("BACKEND_BASE_URL", "http://backend.local:5000/")
	t.Setenv("BACKEND_TIMEOUT", "30")
	t.Setenv("CAPTURE_MAX_SECONDS", "45")
	t.Setenv("ORCHESTRATOR_AUDIO_CADENCE_MS", "250")
	t.Setenv("GATEWAY_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Errorf("expected port 9100, got %s", cfg.Server.Port)
	}
	if cfg.Backend.BaseURL != "http://backend.local:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 30 {
		t.Errorf("expected timeout 30, got %d", cfg.Backend.Timeout)
	}
	if cfg.Capture.MaxSeconds != 45 {
		t.Errorf("expected 45s limit, got %d", cfg.Capture.MaxSeconds)
	}
	if got := cfg.Orchestrator.AudioCadence(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms cadence, got %s", got)
	}
	if !cfg.Gateway.Enabled {
		t.Error("expected gateway mode enabled")
	}
}

func TestLoad_SecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt_secret")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_SECRET_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWT.Secret != "from-file" {
		t.Errorf("expected secret from file, got %q", cfg.JWT.Secret)
	}
}

func TestLoad_DirectSecretWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt_secret")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", "direct")
	t.Setenv("JWT_SECRET_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWT.Secret != "direct" {
		t.Errorf("expected direct secret, got %q", cfg.JWT.Secret)
	}
}
