// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package config

import (
	"net"
	"strconv"
	"time"
)

// Stream transport modes.
const (
	ModePush = "push"
	ModePoll = "poll"
)

// Auth modes for the local HTTP API.
const (
	AuthModeNone = "none"
	AuthModeJWT  = "jwt"
)

// Config holds all application configuration.
type Config struct {
	Stream      StreamConfig      `koanf:"stream"`
	LocationAPI LocationAPIConfig `koanf:"location_api"`
	Reconnect   ReconnectConfig   `koanf:"reconnect"`
	CursorStore CursorStoreConfig `koanf:"cursor_store"`
	NATS        NATSConfig        `koanf:"nats"`
	WebSocket   WebSocketConfig   `koanf:"websocket"`
	Server      ServerConfig      `koanf:"server"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// StreamConfig describes the live subscription and how it is delivered.
//
// Environment Variables:
//   - STREAM_URL: event stream endpoint (required in push mode)
//   - STREAM_MODE: push or poll (default: push)
//   - STREAM_ENABLED: connect at startup (default: true)
//   - STREAM_ALL / STREAM_USERS / STREAM_DEVICES: subscription scope
//   - STREAM_HEARTBEAT: heartbeat seconds requested from the server (default: 10)
//   - STREAM_LIMIT: max points per cycle, 1..500 (default: 100)
//   - STREAM_RESUME_ON_START: resume from the stored cursor (default: false)
type StreamConfig struct {
	URL     string `koanf:"url"`
	Mode    string `koanf:"mode"`
	Enabled bool   `koanf:"enabled"`

	All     bool     `koanf:"all"`
	Users   []string `koanf:"users"`
	Devices []string `koanf:"devices"`

	Heartbeat int `koanf:"heartbeat"`
	Limit     int `koanf:"limit"`

	// HistoryCapacity bounds the rolling point buffer.
	HistoryCapacity int `koanf:"history_capacity"`

	// LivenessMultiplier times the heartbeat gives the idle timeout.
	// Negative disables the watchdog.
	LivenessMultiplier int `koanf:"liveness_multiplier"`

	// PollInterval overrides the heartbeat as the delay between polls.
	PollInterval time.Duration `koanf:"poll_interval"`

	// MaxLineBytes bounds a single SSE line; 0 uses the transport default.
	MaxLineBytes int `koanf:"max_line_bytes"`

	ResumeOnStart bool `koanf:"resume_on_start"`
}

// LocationAPIConfig configures the REST client used for polling, the user
// list and route history.
type LocationAPIConfig struct {
	// BaseURL is the directory holding locations.php and users.php.
	BaseURL string `koanf:"base_url"`

	// Token is the bearer credential for both the API and the stream.
	Token string `koanf:"token"`

	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	UsersCacheTTL     time.Duration `koanf:"users_cache_ttl"`

	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// ReconnectConfig controls automatic resumption after stream failures.
type ReconnectConfig struct {
	Enabled         bool          `koanf:"enabled"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`

	// MaxElapsedTime gives up after this long without a connection.
	// Zero retries forever.
	MaxElapsedTime time.Duration `koanf:"max_elapsed_time"`
}

// CursorStoreConfig configures persistence of the resume cursor in BadgerDB.
type CursorStoreConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"`
	SyncWrites bool          `koanf:"sync_writes"`
	TTL        time.Duration `koanf:"ttl"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// NATSConfig configures relaying received points to NATS.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Topic         string        `koanf:"topic"`
	JetStream     bool          `koanf:"jetstream"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	QueueSize     int           `koanf:"queue_size"`
}

// WebSocketConfig configures the live UI feed.
type WebSocketConfig struct {
	Enabled bool `koanf:"enabled"`

	// AllowedOrigins limits browser origins; empty allows same host only.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SecurityConfig holds settings for the local HTTP API.
type SecurityConfig struct {
	// AuthMode is none or jwt.
	AuthMode       string        `koanf:"auth_mode"`
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
