package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
)

func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range append([]string{"CONFIG_FILE"}, keys...) {
		t.Setenv(envPrefix+key, "")
	}
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mindfolk.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnvironment(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if diff := cmp.Diff(Default(), cfg, cmp.Comparer(func(a, b *time.Location) bool { return a.String() == b.String() })); diff != "" {
			t.Fatalf("unexpected defaults (-want +got):\n%s", diff)
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("MINDFOLK_HTTP_PORT", "9090")
		t.Setenv("MINDFOLK_SQLITE_DSN", "/tmp/mindfolk.db")
		t.Setenv("MINDFOLK_TOKEN_TTL", "12h")
		t.Setenv("MINDFOLK_VIEW_TTL", "5m")
		t.Setenv("MINDFOLK_MAX_VIEWS", "16")
		t.Setenv("MINDFOLK_REFRESH_INTERVAL", "0s")
		t.Setenv("MINDFOLK_DISPLAY_TZ", "Asia/Tokyo")
		t.Setenv("MINDFOLK_ALLOWED_ORIGINS", "app.example.com, *.example.org")
		t.Setenv("MINDFOLK_LOG_LEVEL", "DEBUG")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "/tmp/mindfolk.db" {
			t.Fatalf("unexpected port or dsn: %+v", cfg)
		}
		if cfg.TokenTTL != 12*time.Hour || cfg.ViewTTL != 5*time.Minute || cfg.RefreshInterval != 0 {
			t.Fatalf("unexpected durations: %+v", cfg)
		}
		if cfg.MaxViews != 16 || cfg.DisplayLocation.String() != "Asia/Tokyo" || cfg.LogLevel != "debug" {
			t.Fatalf("unexpected values: %+v", cfg)
		}
		if diff := cmp.Diff([]string{"app.example.com", "*.example.org"}, cfg.AllowedOrigins); diff != "" {
			t.Fatalf("unexpected origins (-want +got):\n%s", diff)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("MINDFOLK_HTTP_PORT", "eighty")
		t.Setenv("MINDFOLK_VIEW_TTL", "0s")
		t.Setenv("MINDFOLK_DISPLAY_TZ", "Mars/Olympus")
		t.Setenv("MINDFOLK_LOG_LEVEL", "loud")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid configuration values: MINDFOLK_HTTP_PORT, MINDFOLK_VIEW_TTL, MINDFOLK_DISPLAY_TZ, MINDFOLK_LOG_LEVEL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	t.Run("environment overrides file values", func(t *testing.T) {
		clearEnvironment(t)
		path := writeConfigFile(t, strings.Join([]string{
			"http_port: 7070",
			"view_ttl: 10m",
			"max_views: 8",
			"allowed_origins:",
			"  - app.example.com",
			"  - admin.example.com",
		}, "\n"))
		t.Setenv(FileEnv, path)
		t.Setenv("MINDFOLK_MAX_VIEWS", "32")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7070 || cfg.ViewTTL != 10*time.Minute {
			t.Fatalf("expected file values to apply, got %+v", cfg)
		}
		if cfg.MaxViews != 32 {
			t.Fatalf("expected environment to win, got %d", cfg.MaxViews)
		}
		if diff := cmp.Diff([]string{"app.example.com", "admin.example.com"}, cfg.AllowedOrigins); diff != "" {
			t.Fatalf("unexpected origins (-want +got):\n%s", diff)
		}
	})

	t.Run("validates file values", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(FileEnv, writeConfigFile(t, "token_ttl: forever\n"))

		_, err := Load()
		if err == nil || err.Error() != "invalid configuration values: MINDFOLK_TOKEN_TTL" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(FileEnv, writeConfigFile(t, "session_secret: hunter2\n"))

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
			t.Fatalf("expected parse error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(FileEnv, filepath.Join(t.TempDir(), "absent.yaml"))

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "open config file") {
			t.Fatalf("expected open error, got %v", err)
		}
	})
}
