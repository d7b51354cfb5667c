// Package config loads process configuration from PHARMACORE_* environment
// variables. cmd/pharmacore loads a .env file into the environment first.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pharmacore/internal/blob"
	"pharmacore/internal/core"
	"pharmacore/internal/settings"
)

// EnvPrefix prefixes every variable read by Load.
const EnvPrefix = "PHARMACORE"

// Config is the resolved process configuration.
type Config struct {
	ServiceName     string        `mapstructure:"service_name"`
	Environment     string        `mapstructure:"environment"`
	LogLevel        string        `mapstructure:"log_level"`
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	JaegerEndpoint  string        `mapstructure:"jaeger_endpoint"`
	TraceLogPath    string        `mapstructure:"trace_log_path"`

	StorageDriver string `mapstructure:"storage_driver"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`

	SettingsDriver string `mapstructure:"settings_driver"`
	SettingsPath   string `mapstructure:"settings_path"`
	SettingsKey    string `mapstructure:"settings_key"`
	RedisURL       string `mapstructure:"redis_url"`

	BlobDriver string `mapstructure:"blob_driver"`
	BlobFSRoot string `mapstructure:"blob_fs_root"`

	LegacyDir            string `mapstructure:"legacy_dir"`
	RestoreStockOnDelete bool   `mapstructure:"restore_stock_on_delete"`
	AssistantMaxInFlight int    `mapstructure:"assistant_max_in_flight"`
	ExportQueueSize      int    `mapstructure:"export_queue_size"`
}

var defaults = map[string]any{
	"service_name":            "pharmacore",
	"environment":             "development",
	"log_level":               "info",
	"http_addr":               ":8080",
	"shutdown_timeout":        "10s",
	"cors_origins":            []string{"*"},
	"jaeger_endpoint":         "",
	"trace_log_path":          "",
	"storage_driver":          string(core.StorageSQLite),
	"sqlite_path":             "pharmacore.db",
	"postgres_dsn":            "",
	"settings_driver":         string(settings.DriverFile),
	"settings_path":           "pharmacore-settings.json",
	"settings_key":            "pharmacore:settings",
	"redis_url":               "redis://localhost:6379/0",
	"blob_driver":             string(blob.DriverFilesystem),
	"blob_fs_root":            "./backups",
	"legacy_dir":              "",
	"restore_stock_on_delete": false,
	"assistant_max_in_flight": 4,
	"export_queue_size":       16,
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Development reports whether console logging should be used.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Validate checks enumerations and bounds.
func (c *Config) Validate() error {
	switch core.StorageDriver(c.StorageDriver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s_POSTGRES_DSN required for postgres storage", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if !settings.Driver(c.SettingsDriver).Valid() {
		return fmt.Errorf("unknown settings driver %q", c.SettingsDriver)
	}
	switch blob.Driver(c.BlobDriver) {
	case blob.DriverFilesystem, blob.DriverS3, blob.DriverMemory:
	default:
		return fmt.Errorf("unknown blob driver %q", c.BlobDriver)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%s_HTTP_ADDR must not be empty", EnvPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if c.AssistantMaxInFlight < 1 || c.ExportQueueSize < 1 {
		return fmt.Errorf("assistant in-flight limit and export queue size must be at least 1")
	}
	return nil
}

// splitList flattens comma separated entries coming from a single env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
