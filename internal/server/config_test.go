package server

import (
	"testing"
	"time"

	"github.com/openjobspec/ojs-retry/internal/state"
)

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("OJS_PORT", "9999")
	t.Setenv("OJS_STORE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/ojs")
	t.Setenv("OJS_LOG_FORMAT", "TEXT")
	t.Setenv("OJS_SQS_EVENTS", "true")
	t.Setenv("OJS_SIDE_CHANNEL_TIMEOUT", "500ms")
	t.Setenv("OJS_SHUTDOWN_TIMEOUT", "5")

	cfg := LoadConfig()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.Store != state.BackendPostgres {
		t.Errorf("Store = %q, want %q", cfg.Store, state.BackendPostgres)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if !cfg.SQSEvents {
		t.Error("SQSEvents = false, want true")
	}
	if cfg.SideChannelTimeout != 500*time.Millisecond {
		t.Errorf("SideChannelTimeout = %v, want 500ms", cfg.SideChannelTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	base := Config{Store: state.BackendMemory, LogFormat: "json", CatalogReloadCron: "@every 1m"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown store", func(c *Config) { c.Store = "etcd" }, true},
		{"postgres without url", func(c *Config) { c.Store = state.BackendPostgres }, true},
		{"redis", func(c *Config) { c.Store = state.BackendRedis }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"bad cron ignored without catalog", func(c *Config) { c.CatalogReloadCron = "nope" }, false},
		{"bad cron with catalog", func(c *Config) {
			c.CatalogPath = "catalog.yaml"
			c.CatalogReloadCron = "nope"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{"30", 30 * time.Second},
		{"soon", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("OJS_TEST_DURATION", tt.val)
			if got := getEnvDuration("OJS_TEST_DURATION", time.Second); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestGetEnvBool_InvalidFallsBack(t *testing.T) {
	t.Setenv("OJS_TEST_BOOL", "maybe")
	if !getEnvBool("OJS_TEST_BOOL", true) {
		t.Error("expected default for unparsable bool")
	}
}
