// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package main is the entry point for the Locus server.

Locus follows live device positions from a location service, either over
its Server-Sent Events stream (push) or by polling its REST API (poll),
keeps a bounded history in memory and republishes every point to
WebSocket clients and, optionally, a NATS subject.

# Application Architecture

	RootSupervisor ("locus")
	├── DataSupervisor ("data-layer")
	│   └── Cursor store GC (BadgerDB, optional)
	├── StreamSupervisor ("stream-layer")
	│   └── Binding (session manager + point buffer)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub
	│   └── NATS relay (optional)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON/console output
 3. Location API client and credential holder
 4. Transport: push (SSE) or poll
 5. Cursor store and binding
 6. WebSocket hub and NATS relay, subscribed to the binding
 7. Chi router and HTTP server
 8. Supervisor tree

# Configuration

	# Stream
	STREAM_URL=https://loc.example.com/api/stream.php
	STREAM_MODE=push             # push or poll
	STREAM_ALL=true              # or STREAM_USERS / STREAM_DEVICES
	STREAM_HEARTBEAT=10          # seconds

	# Location API (users, history, poll mode)
	LOCATION_API_URL=https://loc.example.com/api
	LOCATION_API_TOKEN=<token>

	# Optional
	CURSOR_STORE_PATH=/data/cursors
	NATS_ENABLED=true
	NATS_URL=nats://nats:4222
	AUTH_MODE=jwt
	JWT_SECRET=<32+ chars>

	# Server
	HTTP_PORT=8473
	LOG_LEVEL=info
	LOG_FORMAT=json

When a config file is in use, edits to location_api.token are applied
without a restart. The new token is used from the next request or
reconnect.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server (bounded by HTTP_SHUTDOWN_TIMEOUT), the binding saves its cursor,
the relay drains its queue and the cursor store is closed last.
*/
package main
