package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Remote      RemoteConfig     `yaml:"remote"`
	Poller      PollerConfig     `yaml:"poller"`
	Database    DatabaseConfig   `yaml:"database"`
	Push        PushConfig       `yaml:"push"`
	WorkerPool  WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push degradation alerts.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	AllowedOrigin   string  `yaml:"allowed_origin"`
}

// RemoteConfig describes the upstream device-reporting service and the fetch
// policy applied to it.
type RemoteConfig struct {
	URL                 string        `yaml:"url"`
	APIKey              string        `yaml:"api_key"`
	DeviceCode          string        `yaml:"device_code"`
	TimeoutMs           int           `yaml:"timeout_ms"`
	MaxAttempts         int           `yaml:"max_attempts"`
	BackoffMs           int           `yaml:"backoff_ms"`
	AllowQueryAuth      bool          `yaml:"allow_query_auth"`
	QueryAuthParam      string        `yaml:"query_auth_param"`
	CacheTimeoutSeconds int           `yaml:"cache_timeout_seconds"`
	HTTPProxy           string        `yaml:"http_proxy"`
	Timeout             time.Duration `yaml:"-"` // Derived from TimeoutMs
	Backoff             time.Duration `yaml:"-"` // Derived from BackoffMs
	CacheTimeout        time.Duration `yaml:"-"` // Derived from CacheTimeoutSeconds
}

// PollerConfig controls the background read cycle.
type PollerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Limit           int           `yaml:"limit"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in documented defaults for anything the YAML left
// unset. Exported so tests can build configs without a file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Remote.TimeoutMs <= 0 {
		cfg.Remote.TimeoutMs = 10000
	}
	if cfg.Remote.MaxAttempts <= 0 {
		cfg.Remote.MaxAttempts = 2
	}
	if cfg.Remote.BackoffMs <= 0 {
		cfg.Remote.BackoffMs = 300
	}
	if cfg.Remote.QueryAuthParam == "" {
		cfg.Remote.QueryAuthParam = "api_key"
	}
	if cfg.Remote.CacheTimeoutSeconds <= 0 {
		cfg.Remote.CacheTimeoutSeconds = 10
	}
	cfg.Remote.Timeout = time.Duration(cfg.Remote.TimeoutMs) * time.Millisecond
	cfg.Remote.Backoff = time.Duration(cfg.Remote.BackoffMs) * time.Millisecond
	cfg.Remote.CacheTimeout = time.Duration(cfg.Remote.CacheTimeoutSeconds) * time.Second

	if cfg.Poller.IntervalSeconds <= 0 {
		cfg.Poller.IntervalSeconds = 10
	}
	cfg.Poller.Interval = time.Duration(cfg.Poller.IntervalSeconds) * time.Second
	if cfg.Poller.Limit <= 0 {
		cfg.Poller.Limit = 50
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}

// IsProduction reports whether the process runs in production mode. Sample
// seeding of an empty store is disabled in production.
func (cfg *Config) IsProduction() bool {
	return cfg.Environment == "production"
}
