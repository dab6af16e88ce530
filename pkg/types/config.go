package types

import "gopkg.in/yaml.v3"

// Config is the top-level chia-monitor configuration file.
type Config struct {
	ExporterPort   int                  `yaml:"exporter_port"`
	LogLevel       string               `yaml:"log_level,omitempty"`
	Chia           ChiaConfig           `yaml:"chia"`
	RPCCollector   RPCCollectorConfig   `yaml:"rpc_collector,omitempty"`
	WSCollector    WSCollectorConfig    `yaml:"ws_collector,omitempty"`
	PriceCollector PriceCollectorConfig `yaml:"price_collector,omitempty"`
	Bus            BusConfig            `yaml:"bus,omitempty"`
	History        HistoryConfig        `yaml:"history"`
	Notifier       NotifierConfig       `yaml:"notifier,omitempty"`
	Telemetry      *TelemetryConfig     `yaml:"telemetry,omitempty"`
	Server         *ServerConfig        `yaml:"server,omitempty"`
}

// ChiaConfig locates the Chia installation whose services are monitored.
type ChiaConfig struct {
	Root         string `yaml:"root"`                    // e.g. "~/.chia/mainnet"
	ConfigFile   string `yaml:"config_file,omitempty"`   // default "<root>/config/config.yaml"
	SelfHostname string `yaml:"self_hostname,omitempty"` // overrides self_hostname from the Chia config
}

// RPCCollectorConfig configures the polling RPC collector.
type RPCCollectorConfig struct {
	Enable   *bool  `yaml:"enable,omitempty"`   // default true
	Interval string `yaml:"interval,omitempty"` // default "10s"
	Timeout  string `yaml:"timeout,omitempty"`  // per-request, default "10s"
}

// WSCollectorConfig configures the daemon websocket collector.
type WSCollectorConfig struct {
	Enable    *bool `yaml:"enable,omitempty"`     // default true
	CacheSize int   `yaml:"cache_size,omitempty"` // recent signage points kept for lookup time, default 64
}

// PriceCollectorConfig configures the XCH price collector.
type PriceCollectorConfig struct {
	Enable   bool   `yaml:"enable"`
	Interval string `yaml:"interval,omitempty"` // default "10s"
	URL      string `yaml:"url,omitempty"`      // default CoinGecko simple price API
}

// BusConfig configures the event bus.
type BusConfig struct {
	Capacity int `yaml:"capacity,omitempty"` // default 1024
}

// HistoryConfig configures the history store.
type HistoryConfig struct {
	Driver         string `yaml:"driver"` // "sqlite3" or "postgres"
	DSN            string `yaml:"dsn"`
	MigrateOnStart *bool  `yaml:"migrate_on_start,omitempty"` // default true
}

// NotifierConfig configures the notification engine and its two channels.
type NotifierConfig struct {
	Enable                  bool        `yaml:"enable"`
	Interval                string      `yaml:"interval,omitempty"` // check tick, default "1s"
	StatusServiceURL        URLList     `yaml:"status_service_url,omitempty"`
	AlertServiceURL         URLList     `yaml:"alert_service_url,omitempty"`
	StatusIntervalMinutes   int         `yaml:"status_interval_minutes,omitempty"`
	LostPlotsAlertThreshold int64       `yaml:"lost_plots_alert_threshold,omitempty"`
	DisableProofFoundAlert  bool        `yaml:"disable_proof_found_alert,omitempty"`
	DisablePaymentAlert     bool        `yaml:"disable_payment_alert,omitempty"`
	RateLimit               *RateConfig `yaml:"rate_limit,omitempty"`
	State                   StateConfig `yaml:"state,omitempty"`
}

// RateConfig caps how often a channel may deliver.
type RateConfig struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst,omitempty"` // default 1
}

// StateConfig selects where check state lives between restarts.
type StateConfig struct {
	Backend string       `yaml:"backend,omitempty"` // "memory" (default) or "redis"
	Redis   *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds Redis/Valkey connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"key_prefix,omitempty"` // default "chia-monitor:"
}

// TelemetryConfig configures OTLP export of the monitor's own traces and metrics.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // host:port of the OTLP gRPC collector
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"service_name,omitempty"` // default "chia-monitor"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"` // overrides ":<exporter_port>"
}

// URLList accepts either a single URL or a list of URLs.
type URLList []string

// UnmarshalYAML decodes a scalar or a sequence into the list.
func (l *URLList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s != "" {
			*l = URLList{s}
		}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}
