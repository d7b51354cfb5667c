package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.StorageDriver != "sqlite" || cfg.BlobDriver != "fs" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.RestoreStockOnDelete {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
	if cfg.SettingsDriver != "file" || cfg.SettingsPath != "pharmacore-settings.json" || cfg.SettingsKey != "pharmacore:settings" {
		t.Fatalf("unexpected settings defaults %+v", cfg)
	}
	if !cfg.Development() {
		t.Fatalf("default environment should be development")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PHARMACORE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("PHARMACORE_STORAGE_DRIVER", "memory")
	t.Setenv("PHARMACORE_RESTORE_STOCK_ON_DELETE", "true")
	t.Setenv("PHARMACORE_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("PHARMACORE_CORS_ORIGINS", "http://localhost:5173, https://pos.example")
	t.Setenv("PHARMACORE_ASSISTANT_MAX_IN_FLIGHT", "2")
	t.Setenv("PHARMACORE_ENVIRONMENT", "production")
	t.Setenv("PHARMACORE_SETTINGS_DRIVER", "redis")
	t.Setenv("PHARMACORE_REDIS_URL", "redis://cache:6379/3")
	t.Setenv("PHARMACORE_SETTINGS_KEY", "branch-2:settings")
	t.Setenv("PHARMACORE_TRACE_LOG_PATH", "/var/log/pharmacore/traces.jsonl")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.StorageDriver != "memory" || !cfg.RestoreStockOnDelete {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 3*time.Second || cfg.AssistantMaxInFlight != 2 || cfg.Development() {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.SettingsDriver != "redis" || cfg.RedisURL != "redis://cache:6379/3" || cfg.SettingsKey != "branch-2:settings" {
		t.Fatalf("settings env not applied: %+v", cfg)
	}
	if cfg.TraceLogPath != "/var/log/pharmacore/traces.jsonl" {
		t.Fatalf("trace log path not applied: %q", cfg.TraceLogPath)
	}
	if strings.Join(cfg.CORSOrigins, "|") != "http://localhost:5173|https://pos.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"storage":      {"PHARMACORE_STORAGE_DRIVER", "mongo"},
		"postgres dsn": {"PHARMACORE_STORAGE_DRIVER", "postgres"},
		"blob":         {"PHARMACORE_BLOB_DRIVER", "gcs"},
		"settings":     {"PHARMACORE_SETTINGS_DRIVER", "etcd"},
		"log level":    {"PHARMACORE_LOG_LEVEL", "loud"},
		"queue":        {"PHARMACORE_EXPORT_QUEUE_SIZE", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
