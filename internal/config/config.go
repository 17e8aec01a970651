package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Secret       string        `mapstructure:"secret"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type UpstreamConfig struct {
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type SyncConfig struct {
	CursorID          string        `mapstructure:"cursor_id"`
	BatchSize         int           `mapstructure:"batch_size"`
	ChunkSize         int           `mapstructure:"chunk_size"`
	MaxPages          int           `mapstructure:"max_pages"`
	TimeBudget        time.Duration `mapstructure:"time_budget"`
	BatchDelay        time.Duration `mapstructure:"batch_delay"`
	ExcludedCampaign  string        `mapstructure:"excluded_campaign"`
	Timezone          string        `mapstructure:"timezone"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	RefreshViews      []string      `mapstructure:"refresh_views"`
	ScheduleInterval  time.Duration `mapstructure:"schedule_interval"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Required keys.
const (
	KeyUpstreamURL   = "upstream.url"
	KeyUpstreamToken = "upstream.token"
	KeyDatabaseURL   = "database.url"
)

// legacyEnv lists the environment names accepted besides LEADSYNC_*.
var legacyEnv = map[string]string{
	KeyUpstreamURL:   "DIRECTUS_URL",
	KeyUpstreamToken: "DIRECTUS_TOKEN",
	KeyDatabaseURL:   "DATABASE_URL",
	"redis.url":      "REDIS_URL",
	"nats.url":       "NATS_URL",
	"server.secret":  "SYNC_SECRET",
	"server.port":    "PORT",
}

// ConfigurationError reports required settings that are missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// Load reads configuration from the optional file at configPath, then from
// the environment (LEADSYNC_SYNC_BATCH_SIZE etc., plus the legacy names).
// Missing required keys are not an error here; see Require.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.secret", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("upstream.collection", "Databowl_lead_events")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("nats.subject", "leadsync.run.finished")
	v.SetDefault("sync.cursor_id", "directus-events")
	v.SetDefault("sync.batch_size", 1000)
	v.SetDefault("sync.chunk_size", 500)
	v.SetDefault("sync.max_pages", 0)
	v.SetDefault("sync.time_budget", "50s")
	v.SetDefault("sync.batch_delay", "120ms")
	v.SetDefault("sync.excluded_campaign", "925")
	v.SetDefault("sync.timezone", "Europe/Amsterdam")
	v.SetDefault("sync.requests_per_second", 0)
	v.SetDefault("sync.refresh_views", []string{"lead_metrics_day"})
	v.SetDefault("sync.schedule_interval", "0s")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("leadsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/leadsync")
	}

	v.SetEnvPrefix("LEADSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, legacy := range legacyEnv {
		envName := "LEADSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Sync.Timezone); err != nil {
		return nil, fmt.Errorf("invalid sync.timezone %q: %w", cfg.Sync.Timezone, err)
	}

	return &cfg, nil
}

// Require returns a *ConfigurationError listing every key that is empty.
func (c *Config) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if c.value(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// RequireSync checks the settings a sync run needs.
func (c *Config) RequireSync() error {
	return c.Require(KeyUpstreamURL, KeyUpstreamToken, KeyDatabaseURL)
}

// Location returns the timezone used for daily buckets.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) value(key string) string {
	switch key {
	case KeyUpstreamURL:
		return c.Upstream.URL
	case KeyUpstreamToken:
		return c.Upstream.Token
	case KeyDatabaseURL:
		return c.Database.URL
	case "redis.url":
		return c.Redis.URL
	case "nats.url":
		return c.NATS.URL
	}
	return ""
}
