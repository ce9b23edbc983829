package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envHTTPPort          = "SWAPMARKET_HTTP_PORT"
	envSQLiteDSN         = "SWAPMARKET_SQLITE_DSN"
	envSessionTTL        = "SWAPMARKET_SESSION_TTL"
	envKeepAliveInterval = "SWAPMARKET_KEEPALIVE_INTERVAL"
	envSubscriberBuffer  = "SWAPMARKET_SUBSCRIBER_BUFFER"
	envStrictProposals   = "SWAPMARKET_STRICT_PROPOSALS"
	envLogLevel          = "SWAPMARKET_LOG_LEVEL"
	envConfigFile        = "SWAPMARKET_CONFIG_FILE"
)

// Config captures configuration values for the swap marketplace service.
type Config struct {
	HTTPPort          int
	SQLiteDSN         string
	SessionTTL        time.Duration
	KeepAliveInterval time.Duration
	SubscriberBuffer  int
	StrictProposals   bool
	LogLevel          string
}

// fileConfig mirrors the optional YAML overlay. Values are kept as text so
// that file and environment go through the same validation.
type fileConfig struct {
	HTTPPort          string `yaml:"http_port"`
	SQLiteDSN         string `yaml:"sqlite_dsn"`
	SessionTTL        string `yaml:"session_ttl"`
	KeepAliveInterval string `yaml:"keepalive_interval"`
	SubscriberBuffer  string `yaml:"subscriber_buffer"`
	StrictProposals   string `yaml:"strict_proposals"`
	LogLevel          string `yaml:"log_level"`
}

func (f fileConfig) values() map[string]string {
	return map[string]string{
		envHTTPPort:          f.HTTPPort,
		envSQLiteDSN:         f.SQLiteDSN,
		envSessionTTL:        f.SessionTTL,
		envKeepAliveInterval: f.KeepAliveInterval,
		envSubscriberBuffer:  f.SubscriberBuffer,
		envStrictProposals:   f.StrictProposals,
		envLogLevel:          f.LogLevel,
	}
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		HTTPPort:          8080,
		SQLiteDSN:         "swapmarket.db",
		SessionTTL:        time.Hour,
		KeepAliveInterval: 25 * time.Second,
		SubscriberBuffer:  16,
		StrictProposals:   true,
		LogLevel:          "info",
	}
}

// Load parses configuration from the optional YAML file named by
// SWAPMARKET_CONFIG_FILE and then from the process environment.
//
// Environment variables take precedence over the file. Every invalid value
// is reported in a single localized error.
func Load() (Config, error) {
	values := make(map[string]string)

	if path := strings.TrimSpace(os.Getenv(envConfigFile)); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		for key, value := range file.values() {
			if strings.TrimSpace(value) != "" {
				values[key] = value
			}
		}
	}

	for _, key := range []string{
		envHTTPPort,
		envSQLiteDSN,
		envSessionTTL,
		envKeepAliveInterval,
		envSubscriberBuffer,
		envStrictProposals,
		envLogLevel,
	} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			values[key] = value
		}
	}

	return parse(values)
}

func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("設定ファイルを読み込めません: %w", err)
	}

	var file fileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, fmt.Errorf("設定ファイルの形式が不正です: %w", err)
	}
	return file, nil
}

func parse(values map[string]string) (Config, error) {
	cfg := Defaults()
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(values[envHTTPPort]); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, envHTTPPort)
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(values[envSQLiteDSN]); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(values[envSessionTTL]); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, envSessionTTL)
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if intervalValue := strings.TrimSpace(values[envKeepAliveInterval]); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, envKeepAliveInterval)
		} else {
			cfg.KeepAliveInterval = interval
		}
	}

	if bufferValue := strings.TrimSpace(values[envSubscriberBuffer]); bufferValue != "" {
		buffer, err := strconv.Atoi(bufferValue)
		if err != nil || buffer <= 0 {
			invalid = append(invalid, envSubscriberBuffer)
		} else {
			cfg.SubscriberBuffer = buffer
		}
	}

	if strictValue := strings.TrimSpace(values[envStrictProposals]); strictValue != "" {
		strict, err := strconv.ParseBool(strictValue)
		if err != nil {
			invalid = append(invalid, envStrictProposals)
		} else {
			cfg.StrictProposals = strict
		}
	}

	if level := strings.ToLower(strings.TrimSpace(values[envLogLevel])); level != "" {
		switch level {
		case "debug", "info", "warn", "warning", "error":
			cfg.LogLevel = level
		default:
			invalid = append(invalid, envLogLevel)
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
