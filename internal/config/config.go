package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loaded from a YAML file with
// environment variable overrides.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	ListenAddress  string        `yaml:"listen_address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DatabaseConfig points at the definition store. An empty URL selects the
// in-memory store, which is only useful for local development.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	TenantID string `yaml:"tenant_id"`
}

// AuthConfig holds the shared client credentials workflow runtimes present
// on every request. These identify the calling system, not an end user.
type AuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// MetricsConfig controls the Prometheus exposition.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ApplyDefaults fills unset fields with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Database.TenantID == "" {
		cfg.Database.TenantID = "default"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "decision"
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = "engine"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
}

// Validate rejects configurations the server cannot run with.
func Validate(cfg *Config) error {
	if cfg.Auth.ClientID == "" || cfg.Auth.ClientSecret == "" {
		return fmt.Errorf("auth.client_id and auth.client_secret are required")
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	return nil
}

// Load reads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result. An empty path skips the
// file and builds the configuration from defaults and environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies DECISION_SECTION_FIELD environment variables,
// which always take precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("DECISION_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("DECISION_SERVER_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if val := os.Getenv("DECISION_DATABASE_URL"); val != "" {
		cfg.Database.URL = val
	}
	if val := os.Getenv("DECISION_DATABASE_TENANT_ID"); val != "" {
		cfg.Database.TenantID = val
	}
	if val := os.Getenv("DECISION_AUTH_CLIENT_ID"); val != "" {
		cfg.Auth.ClientID = val
	}
	if val := os.Getenv("DECISION_AUTH_CLIENT_SECRET"); val != "" {
		cfg.Auth.ClientSecret = val
	}
	if val := os.Getenv("DECISION_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}
