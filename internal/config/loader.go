// Package config loads guardian configuration from defaults, an optional
// YAML file and GUARDIAN_* environment variables, and applies it to the
// limiter coordinator.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/guardianhq/guardian/internal/limiter"
)

const appName = "guardian"

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("safe_mode.enabled", false)
	v.SetDefault("safe_mode.rate_limit", limiter.DefaultSafeModeRate)

	v.SetDefault("global.policy", string(limiter.PolicyMinimum))

	v.SetDefault("limiters", map[string]any{
		"search-agent":  map[string]any{"rate": 2.0, "domain": "global"},
		"diagnostics":   map[string]any{"rate": 5.0, "domain": "shared"},
		"export-engine": map[string]any{"rate": 3.0, "domain": "global"},
	})

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.admin_rate", 1.0)
	v.SetDefault("server.admin_burst", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)
}

// Load decodes the settings held by v, layering environment overrides for
// the given prefix on top, validates them and makes them the current config.
func Load(v *viper.Viper, envPrefix string) (*Config, error) {
	overrides, err := gfconfig.LoadEnvOverrides(EnvSpecs(envPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if len(overrides) > 0 {
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to merge environment overrides: %w", err)
		}
	}

	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode converts a raw settings map into a Config.
func Decode(raw map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	return cfg, nil
}

// Validate rejects settings the limiter layer cannot honour.
func (c *Config) Validate() error {
	if c.SafeMode.RateLimit <= 0 {
		return fmt.Errorf("safe_mode.rate_limit must be positive, got %v", c.SafeMode.RateLimit)
	}
	if _, err := limiter.ParseGlobalPolicy(c.Global.Policy); err != nil {
		return err
	}
	for _, name := range c.limiterNames() {
		lc := c.Limiters[name]
		if lc.Rate <= 0 {
			return fmt.Errorf("limiters.%s.rate must be positive, got %v", name, lc.Rate)
		}
		if _, err := limiter.ParseDomain(lc.Domain); err != nil {
			return fmt.Errorf("limiters.%s: %w", name, err)
		}
	}
	if c.Server.AdminRate < 0 || c.Server.AdminBurst < 0 {
		return fmt.Errorf("server.admin_rate and server.admin_burst must not be negative")
	}
	return nil
}

// LimiterSpecs returns the declared limiters sorted by name.
func (c *Config) LimiterSpecs() ([]limiter.Spec, error) {
	specs := make([]limiter.Spec, 0, len(c.Limiters))
	for _, name := range c.limiterNames() {
		lc := c.Limiters[name]
		domain, err := limiter.ParseDomain(lc.Domain)
		if err != nil {
			return nil, fmt.Errorf("limiters.%s: %w", name, err)
		}
		specs = append(specs, limiter.Spec{Name: name, Rate: lc.Rate, Domain: domain})
	}
	return specs, nil
}

// Apply sets the coordinator's global policy and safe-mode state and
// returns the safe-mode state it replaced. Nothing changes when either
// setting is invalid. Startup and SIGHUP reload both go through here.
func (c *Config) Apply(coord *limiter.Coordinator) (limiter.SafeModeState, error) {
	policy, err := limiter.ParseGlobalPolicy(c.Global.Policy)
	if err != nil {
		return coord.SafeMode().State(), err
	}
	prev, err := coord.SafeMode().Swap(c.SafeModeState())
	if err != nil {
		return prev, err
	}
	if err := coord.SetPolicy(policy); err != nil {
		return prev, err
	}
	return prev, nil
}

// SafeModeState is the configured safe-mode setting.
func (c *Config) SafeModeState() limiter.SafeModeState {
	return limiter.SafeModeState{Enabled: c.SafeMode.Enabled, Rate: c.SafeMode.RateLimit}
}

// BuildRegistry applies c to coord and registers every declared limiter.
func (c *Config) BuildRegistry(coord *limiter.Coordinator, opts ...limiter.Option) (*limiter.Registry, error) {
	if _, err := c.Apply(coord); err != nil {
		return nil, err
	}
	specs, err := c.LimiterSpecs()
	if err != nil {
		return nil, err
	}
	reg := limiter.NewRegistry(coord, opts...)
	for _, spec := range specs {
		if _, err := reg.Register(spec); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (c *Config) limiterNames() []string {
	names := make([]string, 0, len(c.Limiters))
	for name := range c.Limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// EnvSpecs maps {PREFIX}{NAME} environment variables to config paths.
func EnvSpecs(prefix string) []EnvVarSpec {
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	return []EnvVarSpec{
		// Safe mode
		{Name: prefix + "SAFE_MODE", Path: []string{"safe_mode", "enabled"}, Type: EnvBool},
		{Name: prefix + "SAFE_MODE_RATE_LIMIT", Path: []string{"safe_mode", "rate_limit"}, Type: EnvString},
		{Name: prefix + "GLOBAL_POLICY", Path: []string{"global", "policy"}, Type: EnvString},

		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "ADMIN_TOKEN", Path: []string{"server", "admin_token"}, Type: EnvString},
		{Name: prefix + "ADMIN_RATE", Path: []string{"server", "admin_rate"}, Type: EnvString},
		{Name: prefix + "ADMIN_BURST", Path: []string{"server", "admin_burst"}, Type: EnvInt},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
	}
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appName)
}

// DefaultStorePath returns the XDG-compliant path to the audit database.
func DefaultStorePath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + appName + ".db"
	}
	return filepath.Join(dataDir, appName+".db")
}
