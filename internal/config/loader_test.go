package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	envHTTPPort,
	envSQLiteDSN,
	envSessionTTL,
	envKeepAliveInterval,
	envSubscriberBuffer,
	envStrictProposals,
	envLogLevel,
	envConfigFile,
}

func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnvironment(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg != Defaults() {
			t.Fatalf("expected defaults, got %#v", cfg)
		}
		if cfg.HTTPPort != 8080 || cfg.SQLiteDSN != "swapmarket.db" || cfg.SessionTTL != time.Hour {
			t.Fatalf("unexpected defaults: %#v", cfg)
		}
		if cfg.KeepAliveInterval != 25*time.Second || cfg.SubscriberBuffer != 16 || !cfg.StrictProposals {
			t.Fatalf("unexpected realtime defaults: %#v", cfg)
		}
	})

	t.Run("parses overrides", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(envHTTPPort, "9090")
		t.Setenv(envSQLiteDSN, "/tmp/market.db")
		t.Setenv(envSessionTTL, "30m")
		t.Setenv(envKeepAliveInterval, "5s")
		t.Setenv(envSubscriberBuffer, "4")
		t.Setenv(envStrictProposals, "false")
		t.Setenv(envLogLevel, "DEBUG")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		want := Config{
			HTTPPort:          9090,
			SQLiteDSN:         "/tmp/market.db",
			SessionTTL:        30 * time.Minute,
			KeepAliveInterval: 5 * time.Second,
			SubscriberBuffer:  4,
			StrictProposals:   false,
			LogLevel:          "debug",
		}
		if cfg != want {
			t.Fatalf("unexpected config: %#v", cfg)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(envHTTPPort, "abc")
		t.Setenv(envSessionTTL, "-1h")
		t.Setenv(envStrictProposals, "maybe")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "環境変数の値が不正です: SWAPMARKET_HTTP_PORT, SWAPMARKET_SESSION_TTL, SWAPMARKET_STRICT_PROPOSALS"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "swapmarket.yaml")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}
		return path
	}

	t.Run("environment overrides file", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(envConfigFile, writeFile(t, "http_port: 7000\nsession_ttl: 2h\nstrict_proposals: false\n"))
		t.Setenv(envHTTPPort, "7001")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7001 {
			t.Fatalf("expected environment port, got %d", cfg.HTTPPort)
		}
		if cfg.SessionTTL != 2*time.Hour || cfg.StrictProposals {
			t.Fatalf("expected file values, got %#v", cfg)
		}
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(envConfigFile, writeFile(t, ""))

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg != Defaults() {
			t.Fatalf("expected defaults, got %#v", cfg)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(envConfigFile, writeFile(t, "http_prot: 7000\n"))

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "設定ファイルの形式が不正です") {
			t.Fatalf("expected format error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv(envConfigFile, filepath.Join(t.TempDir(), "absent.yaml"))

		if _, err := Load(); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})
}
