// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package config

import (
	"fmt"
	"strings"
	"time"
)

// Stream bounds accepted by the server.
const (
	maxStreamLimit = 500
	maxHeartbeat   = 3600
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateStream,
		c.validateLocationAPI,
		c.validateReconnect,
		c.validateCursorStore,
		c.validateNATS,
		c.validateServer,
		c.validateSecurity,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return c.validateLogging()
}

// validateStream validates the subscription and transport selection
func (c *Config) validateStream() error {
	switch c.Stream.Mode {
	case ModePush:
		if c.Stream.URL == "" {
			return fmt.Errorf("STREAM_URL is required when STREAM_MODE is push")
		}
		if err := validateHTTPURL(c.Stream.URL, "STREAM_URL"); err != nil {
			return err
		}
	case ModePoll:
		if c.LocationAPI.BaseURL == "" {
			return fmt.Errorf("LOCATION_API_URL is required when STREAM_MODE is poll")
		}
	default:
		return fmt.Errorf("STREAM_MODE must be one of: push, poll")
	}

	if c.Stream.Heartbeat < 1 || c.Stream.Heartbeat > maxHeartbeat {
		return fmt.Errorf("STREAM_HEARTBEAT must be between 1 and %d seconds", maxHeartbeat)
	}
	if c.Stream.Limit < 1 || c.Stream.Limit > maxStreamLimit {
		return fmt.Errorf("STREAM_LIMIT must be between 1 and %d", maxStreamLimit)
	}
	if c.Stream.HistoryCapacity < 1 {
		return fmt.Errorf("STREAM_HISTORY_CAPACITY must be positive")
	}
	if c.Stream.PollInterval < 0 {
		return fmt.Errorf("STREAM_POLL_INTERVAL must not be negative")
	}

	if c.Stream.All && (hasNonBlank(c.Stream.Users) || hasNonBlank(c.Stream.Devices)) {
		return fmt.Errorf("STREAM_ALL must be false when STREAM_USERS or STREAM_DEVICES is set")
	}
	if c.Stream.Enabled && !c.Stream.All && !hasNonBlank(c.Stream.Users) && !hasNonBlank(c.Stream.Devices) {
		return fmt.Errorf("STREAM_USERS or STREAM_DEVICES is required when STREAM_ALL=false")
	}
	return nil
}

// validateLocationAPI validates the REST client (only if configured)
func (c *Config) validateLocationAPI() error {
	if c.LocationAPI.BaseURL == "" {
		return nil
	}
	if err := validateHTTPURL(c.LocationAPI.BaseURL, "LOCATION_API_URL"); err != nil {
		return err
	}
	if c.LocationAPI.RequestsPerSecond < 0 {
		return fmt.Errorf("LOCATION_API_RPS must not be negative")
	}
	if r := c.LocationAPI.BreakerFailureRatio; r <= 0 || r > 1 {
		return fmt.Errorf("LOCATION_API_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	return nil
}

// validateReconnect validates the retry policy (only if enabled)
func (c *Config) validateReconnect() error {
	if !c.Reconnect.Enabled {
		return nil
	}
	if c.Reconnect.InitialInterval <= 0 {
		return fmt.Errorf("RECONNECT_INITIAL_INTERVAL must be positive")
	}
	if c.Reconnect.MaxInterval < c.Reconnect.InitialInterval {
		return fmt.Errorf("RECONNECT_MAX_INTERVAL must not be less than RECONNECT_INITIAL_INTERVAL")
	}
	return nil
}

// validateCursorStore validates cursor persistence (only if enabled)
func (c *Config) validateCursorStore() error {
	if !c.CursorStore.Enabled || c.CursorStore.InMemory {
		return nil
	}
	if strings.TrimSpace(c.CursorStore.Path) == "" {
		return fmt.Errorf("CURSOR_STORE_PATH is required when the cursor store is enabled")
	}
	return nil
}

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL: %w", err)
	}
	if strings.TrimSpace(c.NATS.Topic) == "" {
		return fmt.Errorf("NATS_TOPIC is required when NATS is enabled")
	}
	if c.NATS.QueueSize < 1 {
		return fmt.Errorf("NATS_QUEUE_SIZE must be positive")
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case AuthModeNone:
	case AuthModeJWT:
		if err := c.validateJWTSecret(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}
	return c.validateRateLimits()
}

// validateJWTSecret validates the JWT secret configuration
func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != AuthModeNone && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates the logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}

func hasNonBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
