// Package config handles loading and validation of the chia-monitor YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// ErrConfig marks a missing or invalid configuration value.
var ErrConfig = errors.New("invalid configuration")

// Defaults applied to optional settings.
const (
	DefaultLogLevel          = "info"
	DefaultRPCInterval       = "10s"
	DefaultRPCTimeout        = "10s"
	DefaultPriceInterval     = "10s"
	DefaultPriceURL          = "https://api.coingecko.com/api/v3/simple/price?ids=chia&vs_currencies=USD,EUR,BTC,ETH"
	DefaultSignageCacheSize  = 64
	DefaultBusCapacity       = 1024
	DefaultNotifierInterval  = "1s"
	DefaultStateBackend      = "memory"
	DefaultRedisKeyPrefix    = "chia-monitor:"
	DefaultTelemetryService  = "chia-monitor"
	defaultChiaConfigRelPath = "config/config.yaml"
)

var requiredKeys = []string{
	"exporter_port",
	"chia.root",
	"history.driver",
	"history.dsn",
}

var requiredNotifierKeys = []string{
	"notifier.status_service_url",
	"notifier.alert_service_url",
	"notifier.status_interval_minutes",
}

// Load reads, checks and parses the configuration file at path.
func Load(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse checks and decodes raw YAML configuration.
func Parse(data []byte) (*types.Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := checkRequired(raw, requiredKeys); err != nil {
		return nil, err
	}
	if enabled, _ := lookup(raw, "notifier.enable").(bool); enabled {
		if err := checkRequired(raw, requiredNotifierKeys); err != nil {
			return nil, err
		}
	}

	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Duration parses value, falling back to def when value is empty or invalid.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Enabled resolves an optional toggle that defaults to on.
func Enabled(v *bool) bool {
	return v == nil || *v
}

// ChiaConfigPath returns the Chia config.yaml path for cfg.
func ChiaConfigPath(cfg types.ChiaConfig) string {
	if cfg.ConfigFile != "" {
		return cfg.ConfigFile
	}
	return filepath.Join(cfg.Root, defaultChiaConfigRelPath)
}

func checkRequired(raw map[string]any, keys []string) error {
	for _, key := range keys {
		v := lookup(raw, key)
		if v == nil {
			return fmt.Errorf("%w: missing required key %q", ErrConfig, key)
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: missing required key %q", ErrConfig, key)
		}
	}
	return nil
}

// lookup walks a dotted key through nested YAML mappings.
func lookup(raw map[string]any, key string) any {
	var cur any = raw
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func applyDefaults(cfg *types.Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	cfg.Chia.Root = expandHome(cfg.Chia.Root)
	cfg.Chia.ConfigFile = expandHome(cfg.Chia.ConfigFile)
	if cfg.RPCCollector.Interval == "" {
		cfg.RPCCollector.Interval = DefaultRPCInterval
	}
	if cfg.RPCCollector.Timeout == "" {
		cfg.RPCCollector.Timeout = DefaultRPCTimeout
	}
	if cfg.WSCollector.CacheSize <= 0 {
		cfg.WSCollector.CacheSize = DefaultSignageCacheSize
	}
	if cfg.PriceCollector.Interval == "" {
		cfg.PriceCollector.Interval = DefaultPriceInterval
	}
	if cfg.PriceCollector.URL == "" {
		cfg.PriceCollector.URL = DefaultPriceURL
	}
	if cfg.Bus.Capacity <= 0 {
		cfg.Bus.Capacity = DefaultBusCapacity
	}
	if cfg.Notifier.Interval == "" {
		cfg.Notifier.Interval = DefaultNotifierInterval
	}
	if cfg.Notifier.State.Backend == "" {
		cfg.Notifier.State.Backend = DefaultStateBackend
	}
	if cfg.Notifier.State.Redis != nil && cfg.Notifier.State.Redis.KeyPrefix == "" {
		cfg.Notifier.State.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Notifier.RateLimit != nil && cfg.Notifier.RateLimit.Burst <= 0 {
		cfg.Notifier.RateLimit.Burst = 1
	}
	if cfg.Telemetry != nil && cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultTelemetryService
	}
}

func validate(cfg *types.Config) error {
	if cfg.ExporterPort <= 0 || cfg.ExporterPort > 65535 {
		return fmt.Errorf("%w: exporter_port must be between 1 and 65535", ErrConfig)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level must be one of debug, info, warn, error", ErrConfig)
	}
	switch cfg.History.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: history.driver must be sqlite3 or postgres, got %q", ErrConfig, cfg.History.Driver)
	}

	durations := []struct{ key, value string }{
		{"rpc_collector.interval", cfg.RPCCollector.Interval},
		{"rpc_collector.timeout", cfg.RPCCollector.Timeout},
		{"price_collector.interval", cfg.PriceCollector.Interval},
		{"notifier.interval", cfg.Notifier.Interval},
	}
	for _, dur := range durations {
		d, err := time.ParseDuration(dur.value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfig, dur.key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrConfig, dur.key)
		}
	}

	n := cfg.Notifier
	if n.Enable {
		if n.StatusIntervalMinutes <= 0 {
			return fmt.Errorf("%w: notifier.status_interval_minutes must be positive", ErrConfig)
		}
		if n.LostPlotsAlertThreshold < 0 {
			return fmt.Errorf("%w: notifier.lost_plots_alert_threshold must not be negative", ErrConfig)
		}
	}
	if n.RateLimit != nil && n.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("%w: notifier.rate_limit.per_minute must be positive", ErrConfig)
	}
	switch n.State.Backend {
	case "memory":
	case "redis":
		if n.State.Redis == nil || n.State.Redis.Addr == "" {
			return fmt.Errorf("%w: missing required key %q", ErrConfig, "notifier.state.redis.addr")
		}
	default:
		return fmt.Errorf("%w: notifier.state.backend must be memory or redis, got %q", ErrConfig, n.State.Backend)
	}

	if t := cfg.Telemetry; t != nil && t.Enabled && t.Endpoint == "" {
		return fmt.Errorf("%w: missing required key %q", ErrConfig, "telemetry.endpoint")
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
