// Configuration structure definitions
//
// Defines all configuration options as structured Go types
// with yaml tags and defaults.
//
// Main sections:
// - ServerConfig: HTTP server settings
// - OriginConfig: origin playlist server connection settings
// - InsertionConfig: ad-break scheduling behaviour
// - VASTConfig: ad-server endpoint and asset overrides
// - SessionStoreConfig: optional persisted session store (Redis)
// - LogConfig: logging parameters
// - MetricsConfig: telemetry settings
package config

import "time"

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Origin    OriginConfig    `yaml:"origin"`
	Insertion InsertionConfig `yaml:"insertion"`
	VAST      VASTConfig      `yaml:"vast"`
	Session   SessionStoreConfig `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address            string        `yaml:"address" default:"0.0.0.0"`
	Port               int           `yaml:"port" default:"8080"`
	InterstitialsBase  string        `yaml:"interstitials_base"`
	ReadTimeout        time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout       time.Duration `yaml:"write_timeout" default:"15s"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" default:"15s"`
	RequestDeadline    time.Duration `yaml:"request_deadline" default:"8s"`
}

// OriginConfig controls the connection to the upstream HLS origin.
type OriginConfig struct {
	MasterPlaylistURL     string        `yaml:"master_playlist_url"`
	Timeout               time.Duration `yaml:"timeout" default:"5s"`
	MaxRetries            int           `yaml:"max_retries" default:"3"`
	RetryBaseDelay        time.Duration `yaml:"retry_base_delay" default:"200ms"`
	MaxIdleConns          int           `yaml:"max_idle_conns" default:"100"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host" default:"20"`
	MaxConnsPerHost       int           `yaml:"max_conns_per_host" default:"50"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout" default:"90s"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout" default:"5s"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout" default:"1s"`
	StaleAfterMultiple    float64       `yaml:"stale_after_multiple" default:"4"`
}

// InsertionConfig controls the ad-break scheduler.
type InsertionConfig struct {
	Mode                 string        `yaml:"mode" default:"static"`
	DefaultAdDuration     float64      `yaml:"default_ad_duration" default:"13"`
	DefaultRepeatingCycle float64      `yaml:"default_repeating_cycle" default:"30"`
	DefaultAdNumber       int          `yaml:"default_ad_number" default:"1000"`
	DefaultPodCount       int          `yaml:"default_pod_count" default:"1"`
	RetentionSlackMultiple float64     `yaml:"retention_slack_multiple" default:"2"`
	EmitResumeOffset      bool         `yaml:"emit_resume_offset" default:"false"`
	GCInterval            time.Duration `yaml:"gc_interval" default:"30s"`
}

// VASTConfig controls the ad-server request and creative selection.
type VASTConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Timeout       time.Duration `yaml:"timeout" default:"3s"`
	TestAssetURL  string        `yaml:"test_asset_url"`
}

// SessionStoreConfig controls the optional persisted asset-list session store.
type SessionStoreConfig struct {
	Enabled  bool          `yaml:"enabled" default:"false"`
	Address  string        `yaml:"address" default:"127.0.0.1"`
	Port     int           `yaml:"port" default:"6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" default:"0"`
	TTL      time.Duration `yaml:"ttl" default:"6h"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}
