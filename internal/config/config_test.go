package config

import (
	"os"
	"testing"
)

func TestDefaultPassesValidation(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SELECTION_POLICY", "random")
	t.Setenv("FAILURE_THRESHOLD", "5")

	cfg := Default()
	mergeEnv(&cfg)

	if cfg.Port != "9090" {
		t.Fatalf("port = %q, want 9090", cfg.Port)
	}
	if cfg.SelectionPolicy != SelectionRandom {
		t.Fatalf("selection_policy = %q, want random", cfg.SelectionPolicy)
	}
	if cfg.FailureThreshold != 5 {
		t.Fatalf("failure_threshold = %d, want 5", cfg.FailureThreshold)
	}
}

func TestValidateRejectsBelowMinimums(t *testing.T) {
	cfg := Default()
	cfg.FailureThreshold = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for failure_threshold=0")
	}

	cfg = Default()
	cfg.CooldownDurationMs = 500
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for cooldown_duration_ms < 1000")
	}

	cfg = Default()
	cfg.SelectionPolicy = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown selection_policy")
	}
}

func TestLoadReadsYAMLFileThenEnvOverridesIt(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "gateway-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("port: \"9191\"\nfailure_threshold: 7\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	t.Setenv("GATEWAY_CONFIG_FILE", f.Name())
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("port = %q, want env override 7070", cfg.Port)
	}
	if cfg.FailureThreshold != 7 {
		t.Fatalf("failure_threshold = %d, want 7 from file", cfg.FailureThreshold)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if cfg.CooldownDuration().Seconds() != 60 {
		t.Fatalf("CooldownDuration = %v, want 60s", cfg.CooldownDuration())
	}
	if cfg.UpstreamTimeout().Seconds() != 30 {
		t.Fatalf("UpstreamTimeout = %v, want 30s", cfg.UpstreamTimeout())
	}
	if cfg.RetryDelay().Seconds() != 1 {
		t.Fatalf("RetryDelay = %v, want 1s", cfg.RetryDelay())
	}
}
