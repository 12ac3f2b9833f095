// Package config loads the gateway's tunable knobs from the environment
// and, optionally, a YAML file. Environment variables always win over the
// file so that container orchestrators can override a checked-in file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SelectionPolicy names one of the selector's credential-selection
// strategies.
type SelectionPolicy string

const (
	SelectionRoundRobin   SelectionPolicy = "round_robin"
	SelectionRandom       SelectionPolicy = "random"
	SelectionLeastInFlight SelectionPolicy = "least_in_flight"
)

// Config holds every knob enumerated in the external interfaces section.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	CORSOrigin []string `yaml:"cors_origin"`

	SelectionPolicy        SelectionPolicy `yaml:"selection_policy"`
	FailureThreshold       int             `yaml:"failure_threshold"`
	CooldownDurationMs     int             `yaml:"cooldown_duration_ms"`
	ProbesRequiredToClose  int             `yaml:"probes_required_to_close"`

	UpstreamBaseURL     string `yaml:"upstream_base_url"`
	UpstreamAPIVersion  string `yaml:"upstream_api_version"`
	UpstreamTimeoutMs   int    `yaml:"upstream_timeout_ms"`
	RetryCount          int    `yaml:"retry_count"`
	RetryDelayMs        int    `yaml:"retry_delay_ms"`

	BodySizeLimit   int64  `yaml:"body_size_limit"`
	HealthCheckPath string `yaml:"health_check_path"`
	StatsPath       string `yaml:"stats_path"`

	// ConfigFile, if non-empty, is watched for hot-reload of the mutable
	// knobs above (selection policy, health thresholds, CORS origin).
	ConfigFile string `yaml:"-"`
}

// Default returns the configuration before any environment or file
// overrides are applied.
func Default() Config {
	return Config{
		Port:                  "8080",
		LogLevel:              "info",
		CORSOrigin:            []string{"*"},
		SelectionPolicy:       SelectionRoundRobin,
		FailureThreshold:      3,
		CooldownDurationMs:    60_000,
		ProbesRequiredToClose: 3,
		UpstreamBaseURL:       "https://generativelanguage.googleapis.com",
		UpstreamAPIVersion:    "v1beta",
		UpstreamTimeoutMs:     30_000,
		RetryCount:            2,
		RetryDelayMs:          1_000,
		BodySizeLimit:         20 << 20,
		HealthCheckPath:       "/health",
		StatsPath:             "/stats",
	}
}

// Load builds a Config from defaults, an optional YAML file, and then the
// environment, in that order of increasing precedence.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("GATEWAY_CONFIG_FILE")); path != "" {
		cfg.ConfigFile = path
		if err := mergeYAMLFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	mergeEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeYAMLFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func mergeEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGIN")); v != "" {
		cfg.CORSOrigin = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("SELECTION_POLICY")); v != "" {
		cfg.SelectionPolicy = SelectionPolicy(v)
	}
	if v := envInt("FAILURE_THRESHOLD"); v != nil {
		cfg.FailureThreshold = *v
	}
	if v := envInt("COOLDOWN_DURATION_MS"); v != nil {
		cfg.CooldownDurationMs = *v
	}
	if v := envInt("PROBES_REQUIRED_TO_CLOSE"); v != nil {
		cfg.ProbesRequiredToClose = *v
	}
	if v := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL")); v != "" {
		cfg.UpstreamBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("UPSTREAM_API_VERSION")); v != "" {
		cfg.UpstreamAPIVersion = v
	}
	if v := envInt("UPSTREAM_TIMEOUT_MS"); v != nil {
		cfg.UpstreamTimeoutMs = *v
	}
	if v := envInt("RETRY_COUNT"); v != nil {
		cfg.RetryCount = *v
	}
	if v := envInt("RETRY_DELAY_MS"); v != nil {
		cfg.RetryDelayMs = *v
	}
	if v := envInt64("BODY_SIZE_LIMIT"); v != nil {
		cfg.BodySizeLimit = *v
	}
	if v := strings.TrimSpace(os.Getenv("HEALTH_CHECK_PATH")); v != "" {
		cfg.HealthCheckPath = v
	}
	if v := strings.TrimSpace(os.Getenv("STATS_PATH")); v != "" {
		cfg.StatsPath = v
	}
}

// Validate enforces sane minimums on numeric knobs.
func (c Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("config: failure_threshold must be >= 1")
	}
	if c.CooldownDurationMs < 1000 {
		return fmt.Errorf("config: cooldown_duration_ms must be >= 1000")
	}
	if c.UpstreamTimeoutMs < 1000 {
		return fmt.Errorf("config: upstream_timeout_ms must be >= 1000")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("config: retry_count must be >= 0")
	}
	if c.RetryDelayMs < 0 {
		return fmt.Errorf("config: retry_delay_ms must be >= 0")
	}
	switch c.SelectionPolicy {
	case SelectionRoundRobin, SelectionRandom, SelectionLeastInFlight:
	default:
		return fmt.Errorf("config: unknown selection_policy %q", c.SelectionPolicy)
	}
	return nil
}

func (c Config) CooldownDuration() time.Duration {
	return time.Duration(c.CooldownDurationMs) * time.Millisecond
}

func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMs) * time.Millisecond
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func envInt(key string) *int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envInt64(key string) *int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
