// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML and
// environment unmarshaling from human-readable strings like "5s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler, used for environment
// variables.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all agent configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Collection CollectionConfig `yaml:"collection"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Transmit   TransmitConfig   `yaml:"transmit"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds collector connection settings.
type ServerConfig struct {
	// Host is host[:port] of the collector, without a scheme.
	Host   string `yaml:"host" env:"DT_SERVER_HOST"`
	Secure bool   `yaml:"secure" env:"DT_SERVER_SECURE"`
	Path   string `yaml:"path" env:"DT_SERVER_PATH"`
}

// CollectionConfig holds sampling settings.
type CollectionConfig struct {
	Interval         Duration `yaml:"interval" env:"DT_COLLECTION_INTERVAL"`
	TopProcesses     int      `yaml:"top_processes" env:"DT_TOP_PROCESSES"`
	CPUSampleWindow  Duration `yaml:"cpu_sample_window" env:"DT_CPU_SAMPLE_WINDOW"`
	InventoryRefresh Duration `yaml:"inventory_refresh" env:"DT_INVENTORY_REFRESH"`
}

// AlertsConfig holds alert thresholds in percent, plus the network rate
// bound in bytes per second (0 disables network-anomaly alerts).
type AlertsConfig struct {
	CPUPercent         float64 `yaml:"cpu_percent" env:"DT_ALERT_CPU_PERCENT"`
	MemoryPercent      float64 `yaml:"memory_percent" env:"DT_ALERT_MEMORY_PERCENT"`
	DiskUsedPercent    float64 `yaml:"disk_used_percent" env:"DT_ALERT_DISK_USED_PERCENT"`
	NetworkBytesPerSec float64 `yaml:"network_bytes_per_sec" env:"DT_ALERT_NETWORK_BYTES_PER_SEC"`
}

// TransmitConfig holds delivery settings.
type TransmitConfig struct {
	Timeout      Duration `yaml:"timeout" env:"DT_TRANSMIT_TIMEOUT"`
	FallbackPath string   `yaml:"fallback_path" env:"DT_FALLBACK_PATH"`
}

// SchedulerConfig holds cycle scheduling settings.
type SchedulerConfig struct {
	StopGrace Duration `yaml:"stop_grace" env:"DT_STOP_GRACE"`
}

// LoggingConfig holds logging settings. An empty File logs to the console only.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"DT_LOG_LEVEL"`
	File       string `yaml:"file" env:"DT_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"DT_LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"DT_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"DT_LOG_MAX_AGE_DAYS"`
}

// MetricsConfig holds the self-metrics endpoint settings. An empty Listen
// disables the endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen" env:"DT_METRICS_LISTEN"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:   "localhost:8000",
			Secure: false,
			Path:   "/ws/device-tracker/",
		},
		Collection: CollectionConfig{
			Interval:         Duration{5 * time.Second},
			TopProcesses:     10,
			CPUSampleWindow:  Duration{1 * time.Second},
			InventoryRefresh: Duration{1 * time.Hour},
		},
		Alerts: AlertsConfig{
			CPUPercent:         90,
			MemoryPercent:      90,
			DiskUsedPercent:    90,
			NetworkBytesPerSec: 100 * 1024 * 1024,
		},
		Transmit: TransmitConfig{
			Timeout:      Duration{5 * time.Second},
			FallbackPath: "device_info.json",
		},
		Scheduler: SchedulerConfig{
			StopGrace: Duration{10 * time.Second},
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Listen: "",
		},
	}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take precedence over values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// File doesn't exist: use defaults + env overrides
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// CLIOverrides holds values from command-line flags.
// Zero values are treated as "not set" and skipped.
type CLIOverrides struct {
	Host     string
	LogLevel string
	Interval time.Duration
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > YAML file > defaults.
//
// An optional configPath argument controls file discovery:
//   - omitted: auto-discover via Locate()
//   - explicit value: use that path ("" means no file)
func LoadLayered(cli CLIOverrides, configPath ...string) (*Config, error) {
	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}

	cfg, err := Load(filePath)
	if err != nil {
		return nil, err
	}

	if cli.Host != "" {
		cfg.Server.Host = cli.Host
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Interval > 0 {
		cfg.Collection.Interval = Duration{cli.Interval}
	}
	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies DT_* environment variables on top of cfg.
// Unset variables leave the current value untouched.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks that the configuration is usable. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	host := strings.TrimSpace(c.Server.Host)
	switch {
	case host == "":
		errs = append(errs, errors.New("server host is required"))
	case strings.Contains(host, "://"):
		errs = append(errs, fmt.Errorf("server host must not include a scheme (got: %s)", host))
	}

	if c.Collection.Interval.Duration <= 0 {
		errs = append(errs, errors.New("collection interval must be positive"))
	}
	if c.Collection.TopProcesses <= 0 {
		errs = append(errs, errors.New("top_processes must be positive"))
	}
	if c.Collection.CPUSampleWindow.Duration < 0 {
		errs = append(errs, errors.New("cpu_sample_window must not be negative"))
	}
	if c.Collection.Interval.Duration > 0 && c.Collection.CPUSampleWindow.Duration >= c.Collection.Interval.Duration {
		errs = append(errs, errors.New("cpu_sample_window must be shorter than the collection interval"))
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"cpu_percent", c.Alerts.CPUPercent},
		{"memory_percent", c.Alerts.MemoryPercent},
		{"disk_used_percent", c.Alerts.DiskUsedPercent},
	}
	for _, th := range thresholds {
		if th.value <= 0 || th.value > 100 {
			errs = append(errs, fmt.Errorf("alerts.%s must be in (0, 100] (got: %g)", th.name, th.value))
		}
	}
	if c.Alerts.NetworkBytesPerSec < 0 {
		errs = append(errs, errors.New("alerts.network_bytes_per_sec must not be negative"))
	}

	if c.Transmit.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("transmit timeout must be positive"))
	}
	if c.Transmit.FallbackPath == "" {
		errs = append(errs, errors.New("transmit fallback_path is required"))
	}
	if c.Scheduler.StopGrace.Duration < 0 {
		errs = append(errs, errors.New("scheduler stop_grace must not be negative"))
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
