package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig             `mapstructure:"server"`
	Database DatabaseConfig           `mapstructure:"database"`
	Governor GovernorConfig           `mapstructure:"governor"`
	Alerting AlertingConfig           `mapstructure:"alerting"`
	Reports  ReportsConfig            `mapstructure:"reports"`
	Services map[string]ServiceConfig `mapstructure:"services"`
	Logging  LoggingConfig            `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// GovernorConfig holds call governor defaults
type GovernorConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// AlertingConfig holds alert engine defaults and sweep cadence
type AlertingConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// Defaults applied to services without explicit thresholds
	ErrorRateThreshold  float64       `mapstructure:"error_rate_threshold"` // failures / window calls, e.g. 0.2
	ErrorRateWindow     int           `mapstructure:"error_rate_window"`    // trailing call count
	LatencyP95CeilingMs int64         `mapstructure:"latency_p95_ceiling_ms"`
	LatencyWindow       time.Duration `mapstructure:"latency_window"`
	QuotaFloorPct       float64       `mapstructure:"quota_floor_pct"` // alert below this remaining fraction
	ResolveCooldown     time.Duration `mapstructure:"resolve_cooldown"`
}

// ReportsConfig holds report scheduler configuration
type ReportsConfig struct {
	ScheduleEnabled bool          `mapstructure:"schedule_enabled"`
	CheckInterval   time.Duration `mapstructure:"check_interval"`
}

// ServiceConfig holds per-service governance configuration.
// New integrations are added here as data, not as new code paths.
type ServiceConfig struct {
	DisplayName  string  `mapstructure:"display_name"`
	Enabled      bool    `mapstructure:"enabled"`
	DailyLimit   int     `mapstructure:"daily_limit"`
	WeeklyLimit  int     `mapstructure:"weekly_limit"`
	MonthlyLimit int     `mapstructure:"monthly_limit"`
	RatePerSec   float64 `mapstructure:"rate_per_sec"`

	Timeout time.Duration `mapstructure:"timeout"` // 0 = governor default

	// Optional per-service alert threshold overrides (0 = global default)
	ErrorRateThreshold  float64 `mapstructure:"error_rate_threshold"`
	LatencyP95CeilingMs int64   `mapstructure:"latency_p95_ceiling_ms"`
	QuotaFloorPct       float64 `mapstructure:"quota_floor_pct"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration primarily from environment variables
func LoadFromEnv() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from .env file if it exists
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Database defaults
	v.SetDefault("database.path", "./data/apigov.db")

	// Governor defaults
	v.SetDefault("governor.default_timeout", 30*time.Second)

	// Alerting defaults
	v.SetDefault("alerting.sweep_interval", time.Minute)
	v.SetDefault("alerting.error_rate_threshold", 0.2)
	v.SetDefault("alerting.error_rate_window", 50)
	v.SetDefault("alerting.latency_p95_ceiling_ms", 5000)
	v.SetDefault("alerting.latency_window", 15*time.Minute)
	v.SetDefault("alerting.quota_floor_pct", 0.05)
	v.SetDefault("alerting.resolve_cooldown", 10*time.Minute)

	// Report scheduler defaults
	v.SetDefault("reports.schedule_enabled", true)
	v.SetDefault("reports.check_interval", time.Hour)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	// Helper to bind and log errors (BindEnv errors are non-fatal but should be logged)
	bindEnv := func(key string, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			slog.Warn("failed to bind environment variable",
				slog.String("key", key),
				slog.String("env_var", envVar),
				slog.String("error", err.Error()))
		}
	}

	// Database path
	bindEnv("database.path", "DATABASE_PATH")

	// Server config
	bindEnv("server.host", "SERVER_HOST")
	bindEnv("server.port", "SERVER_PORT")

	// Logging
	bindEnv("logging.level", "LOG_LEVEL")
	bindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	enabled := 0
	for name, svc := range c.Services {
		if name == "" {
			return fmt.Errorf("service with empty name configured")
		}
		if svc.Enabled {
			enabled++
		}
		if svc.DailyLimit < 0 || svc.WeeklyLimit < 0 || svc.MonthlyLimit < 0 {
			return fmt.Errorf("service %q has a negative quota limit", name)
		}
		if svc.RatePerSec < 0 {
			return fmt.Errorf("service %q has a negative rate_per_sec", name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one service must be enabled")
	}

	if c.Alerting.ErrorRateThreshold <= 0 || c.Alerting.ErrorRateThreshold > 1 {
		return fmt.Errorf("alerting.error_rate_threshold must be in (0, 1]")
	}
	if c.Alerting.ErrorRateWindow <= 0 {
		return fmt.Errorf("alerting.error_rate_window must be positive")
	}
	if c.Alerting.QuotaFloorPct < 0 || c.Alerting.QuotaFloorPct >= 1 {
		return fmt.Errorf("alerting.quota_floor_pct must be in [0, 1)")
	}

	return nil
}
