package config

import "time"

// Config represents the complete application configuration, layered as
// defaults < config file < environment.
type Config struct {
	SafeMode SafeModeConfig           `mapstructure:"safe_mode"`
	Global   GlobalConfig             `mapstructure:"global"`
	Limiters map[string]LimiterConfig `mapstructure:"limiters"`
	Server   ServerConfig             `mapstructure:"server"`
	Store    StoreConfig              `mapstructure:"store"`
	Logging  LoggingConfig            `mapstructure:"logging"`
	Metrics  MetricsConfig            `mapstructure:"metrics"`
	Health   HealthConfig             `mapstructure:"health"`
}

// SafeModeConfig is the startup state of the process-wide emergency throttle.
type SafeModeConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// GlobalConfig controls the global-domain ledger.
type GlobalConfig struct {
	// Policy is "minimum" (slowest declared rate governs) or "most-recent"
	// (each caller's own rate governs).
	Policy string `mapstructure:"policy"`
}

// LimiterConfig declares one named limiter.
type LimiterConfig struct {
	Rate   float64 `mapstructure:"rate"`
	Domain string  `mapstructure:"domain"`
}

// ServerConfig contains admin HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AdminToken, when set, is required as a bearer token on mutating routes.
	AdminToken string `mapstructure:"admin_token"`

	// AdminRate and AdminBurst throttle mutating admin calls per client.
	AdminRate  float64 `mapstructure:"admin_rate"`
	AdminBurst int     `mapstructure:"admin_burst"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: simple, structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
