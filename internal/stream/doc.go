// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package stream implements the location event stream transports.

A Transport opens exactly one connection per Open call and reports what
happens on it through a single typed Handler. The set of event kinds is
closed:

  - EventConnected: the server accepted the connection (once per connection)
  - EventPoint: a validated models.LocationPoint plus its protocol event id
  - EventKeepAlive: a comment-only frame or an empty poll; carries no id or data
  - EventError: the connection failed; exactly once, after which nothing else
    is delivered

Transports never reconnect on their own. Retry policy belongs to the caller.

# Implementations

PushTransport speaks text/event-stream over a long-lived HTTP GET. Frames
named "point" are decoded through models.ParsePoint; payloads that fail are
logged, counted and dropped without affecting the connection. Frames named
"open" or "connected" are acknowledgements only. A liveness watchdog fails
the connection with ErrLivenessTimeout when no bytes arrive within the idle
timeout (normally three heartbeat intervals). HTTP 410 means the server no
longer holds history back to the requested cursor and is reported as
ErrCursorExpired.

PollTransport runs a cursor-based poll loop against a PointSource (the
Location API REST client) using the same query contract, advancing its own
cursor after each batch.

# Query contract

Query describes the subscription on the wire:

	all=true | users=<name>... devices=<id>...
	since=<ms-epoch>   (optional resume cursor, exclusive)
	heartbeat=<seconds>
	limit=<1..500>
*/
package stream
