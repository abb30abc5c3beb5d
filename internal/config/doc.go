// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package config provides centralized configuration management for Locus.

Configuration is layered with Koanf v2, later sources overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml or /etc/locus/config.yaml
 3. Environment variables

# Sections

  - stream: endpoint, push or poll mode, subscription scope, heartbeat, limit
  - location_api: REST base URL, bearer token, rate limit, circuit breaker
  - reconnect: exponential backoff after stream failures
  - cursor_store: BadgerDB persistence of the resume cursor
  - nats: optional relay of received points
  - websocket, server, security: the local HTTP API and live feed
  - logging: zerolog level and format

# Environment Variables

Only mapped names are read (see envMappings). Common ones:

  - STREAM_URL, STREAM_MODE, STREAM_USERS, STREAM_DEVICES, STREAM_HEARTBEAT
  - LOCATION_API_URL, LOCATION_API_TOKEN
  - CURSOR_STORE_PATH, STREAM_RESUME_ON_START
  - NATS_ENABLED, NATS_URL, NATS_TOPIC
  - HTTP_PORT, AUTH_MODE, JWT_SECRET, CORS_ORIGINS
  - LOG_LEVEL, LOG_FORMAT

List values (STREAM_USERS, CORS_ORIGINS, ...) are comma-separated.

# Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(cfg.Server.Addr())
*/
package config
