// Package config loads and validates the watcher configuration.
//
// DESIGN: configuration comes from a YAML file with ${VAR:-default}
// environment expansion, plus direct environment overrides for the
// handful of keys the deployment tooling sets (NGINX_LOG_FILE,
// WINDOW_SIZE, ...). Validation failures are fatal at startup; the
// process must never run half-configured. The maintenance flag is the
// one live-reloadable value and lives in maintenance.go.
package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root watcher configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`        // log source settings
	Window     WindowConfig     `yaml:"window"`     // sliding window settings
	Alerts     AlertsConfig     `yaml:"alerts"`     // thresholds, cooldown, maintenance
	Notify     NotifyConfig     `yaml:"notify"`     // outbound sink settings
	Pools      PoolsConfig      `yaml:"pools"`      // known pools and the primary
	Audit      AuditConfig      `yaml:"audit"`      // alert decision trail
	Monitoring MonitoringConfig `yaml:"monitoring"` // process logging
}

// LogConfig describes the log source.
type LogConfig struct {
	File   string `yaml:"file"`   // path to the access log
	Format string `yaml:"format"` // "kv" (default) or "json"
}

// WindowConfig describes the sliding window.
type WindowConfig struct {
	Size       int `yaml:"size"`        // capacity, required
	MinSamples int `yaml:"min_samples"` // warm-up floor; 0 means "full window"
}

// AlertsConfig holds alerting thresholds and gates.
type AlertsConfig struct {
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"` // percentage
	Cooldown           time.Duration `yaml:"cooldown"`             // per-kind, 0 disables
	Maintenance        bool          `yaml:"maintenance"`          // initial value, re-read live
	MaintenanceFile    string        `yaml:"maintenance_file"`     // optional flag file, re-read live
	MaintenancePoll    time.Duration `yaml:"maintenance_poll"`     // default 5s
}

// NotifyConfig describes the notification sink.
type NotifyConfig struct {
	WebhookURL   string        `yaml:"webhook_url"`   // empty falls back to log-only delivery
	Timeout      time.Duration `yaml:"timeout"`       // default 10s
	MaxRetries   int           `yaml:"max_retries"`   // default 3
	RetryBackoff time.Duration `yaml:"retry_backoff"` // default 1s
	QueueSize    int           `yaml:"queue_size"`    // default 16
}

// PoolsConfig names the interchangeable service pools.
type PoolsConfig struct {
	Primary string   `yaml:"primary"`
	Names   []string `yaml:"names"`
}

// AuditConfig enables the sqlite decision trail when a path is set.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// MonitoringConfig holds process logging settings.
type MonitoringConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console, or "" for auto
}

// expandEnvWithDefaults expands ${VAR} and ${VAR:-default} references.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes, applies env
// overrides and defaults, and validates.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies the environment keys the deployment
// scripts export, so the watcher drops into an existing compose stack
// without a config rewrite.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NGINX_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Window.Size = n
		}
	}
	if v := os.Getenv("ERROR_RATE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Alerts.ErrorRateThreshold = f
		}
	}
	if v := os.Getenv("ALERT_COOLDOWN_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Alerts.Cooldown = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("MAINTENANCE_MODE"); v != "" {
		c.Alerts.Maintenance = parseBool(v)
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := os.Getenv("ACTIVE_POOL"); v != "" {
		c.Pools.Primary = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Format == "" {
		c.Log.Format = "kv"
	}
	if c.Alerts.MaintenancePoll <= 0 {
		c.Alerts.MaintenancePoll = 5 * time.Second
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = 10 * time.Second
	}
	if c.Notify.MaxRetries == 0 {
		c.Notify.MaxRetries = 3
	}
	if c.Notify.RetryBackoff <= 0 {
		c.Notify.RetryBackoff = time.Second
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 16
	}
	if len(c.Pools.Names) == 0 && c.Pools.Primary != "" {
		c.Pools.Names = []string{c.Pools.Primary}
	}
}

// Validate checks the configuration. Any error here is fatal at
// startup.
func (c *Config) Validate() error {
	if c.Log.File == "" {
		return fmt.Errorf("log.file is required")
	}
	if c.Log.Format != "kv" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format: %q (must be kv or json)", c.Log.Format)
	}
	if c.Window.Size <= 0 {
		return fmt.Errorf("window.size must be a positive integer, got %d", c.Window.Size)
	}
	if c.Window.MinSamples < 0 || c.Window.MinSamples > c.Window.Size {
		return fmt.Errorf("window.min_samples must be in [0, window.size], got %d", c.Window.MinSamples)
	}
	if c.Alerts.ErrorRateThreshold < 0 || c.Alerts.ErrorRateThreshold > 100 {
		return fmt.Errorf("alerts.error_rate_threshold must be in [0,100], got %v", c.Alerts.ErrorRateThreshold)
	}
	if c.Alerts.Cooldown < 0 {
		return fmt.Errorf("alerts.cooldown must be non-negative")
	}
	if c.Pools.Primary == "" {
		return fmt.Errorf("pools.primary is required")
	}
	if len(c.Pools.Names) == 0 {
		return fmt.Errorf("pools.names is required")
	}
	if !slices.Contains(c.Pools.Names, c.Pools.Primary) {
		return fmt.Errorf("pools.primary %q is not in pools.names", c.Pools.Primary)
	}
	if c.Notify.MaxRetries < 0 {
		return fmt.Errorf("notify.max_retries must be non-negative")
	}
	return nil
}

func parseBool(v string) bool {
	switch v {
	case "1", "t", "true", "True", "TRUE", "on", "yes":
		return true
	default:
		return false
	}
}
