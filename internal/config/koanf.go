// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/locus/config.yaml",
	"/etc/locus/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			Mode:               ModePush,
			Enabled:            true,
			All:                true,
			Heartbeat:          10,
			Limit:              100,
			HistoryCapacity:    1000,
			LivenessMultiplier: 3,
		},
		LocationAPI: LocationAPIConfig{
			Timeout:             15 * time.Second,
			RequestsPerSecond:   5,
			Burst:               5,
			UsersCacheTTL:       time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerFailureRatio: 0.6,
		},
		Reconnect: ReconnectConfig{
			Enabled:         true,
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			MaxElapsedTime:  0, // retry forever
		},
		CursorStore: CursorStoreConfig{
			Enabled:    true,
			Path:       "/data/cursors",
			TTL:        7 * 24 * time.Hour,
			GCInterval: 30 * time.Minute,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			Topic:         "locus.points",
			JetStream:     true,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			QueueSize:     1024,
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			AllowedOrigins: []string{},
		},
		Server: ServerConfig{
			Port:            8473,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        AuthModeNone,
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// STREAM_URL -> stream.url, LOCATION_API_TOKEN -> location_api.token
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"stream.users",
	"stream.devices",
	"websocket.allowed_origins",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			// unset, or already a slice from YAML/defaults
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Stream
	"stream_url":                 "stream.url",
	"stream_mode":                "stream.mode",
	"stream_enabled":             "stream.enabled",
	"stream_all":                 "stream.all",
	"stream_users":               "stream.users",
	"stream_devices":             "stream.devices",
	"stream_heartbeat":           "stream.heartbeat",
	"stream_limit":               "stream.limit",
	"stream_history_capacity":    "stream.history_capacity",
	"stream_liveness_multiplier": "stream.liveness_multiplier",
	"stream_poll_interval":       "stream.poll_interval",
	"stream_max_line_bytes":      "stream.max_line_bytes",
	"stream_resume_on_start":     "stream.resume_on_start",

	// Location API
	"location_api_url":                   "location_api.base_url",
	"location_api_token":                 "location_api.token",
	"location_api_timeout":               "location_api.timeout",
	"location_api_rps":                   "location_api.requests_per_second",
	"location_api_burst":                 "location_api.burst",
	"location_api_users_cache_ttl":       "location_api.users_cache_ttl",
	"location_api_breaker_timeout":       "location_api.breaker_timeout",
	"location_api_breaker_failure_ratio": "location_api.breaker_failure_ratio",

	// Reconnect
	"reconnect_enabled":          "reconnect.enabled",
	"reconnect_initial_interval": "reconnect.initial_interval",
	"reconnect_max_interval":     "reconnect.max_interval",
	"reconnect_max_elapsed_time": "reconnect.max_elapsed_time",

	// Cursor store
	"cursor_store_enabled":     "cursor_store.enabled",
	"cursor_store_path":        "cursor_store.path",
	"cursor_store_in_memory":   "cursor_store.in_memory",
	"cursor_store_sync_writes": "cursor_store.sync_writes",
	"cursor_store_ttl":         "cursor_store.ttl",
	"cursor_store_gc_interval": "cursor_store.gc_interval",

	// NATS
	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_topic":          "nats.topic",
	"nats_jetstream":      "nats.jetstream",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",
	"nats_queue_size":     "nats.queue_size",

	// WebSocket
	"ws_enabled":         "websocket.enabled",
	"ws_allowed_origins": "websocket.allowed_origins",

	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Security
	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped so the process environment
// cannot pollute the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the config file at path changes.
// The caller is responsible for synchronising access to anything it reloads.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}

// ConfigFilePath returns the config file LoadWithKoanf would read, or "".
func ConfigFilePath() string {
	return findConfigFile()
}
