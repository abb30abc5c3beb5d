// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package stream

import (
	"time"

	"github.com/tomtom215/locus/internal/models"
)

// EventKind enumerates the events a transport can deliver.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventPoint
	EventKeepAlive
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventPoint:
		return "point"
	case EventKeepAlive:
		return "keepalive"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one delivery from a transport. Point and ID are set only for
// EventPoint, Err only for EventError.
type Event struct {
	Kind  EventKind
	ID    string
	Point models.LocationPoint
	Err   error
}

// Handler receives the events of one connection, in order, from the
// transport's goroutine.
type Handler func(Event)

// OpenOptions tune a single connection.
type OpenOptions struct {
	// IdleTimeout fails the connection when nothing arrives for this long.
	// Zero disables the watchdog.
	IdleTimeout time.Duration

	// LastEventID is sent as Last-Event-ID on push connections.
	LastEventID string
}

// Transport opens connections. Open never blocks; all I/O happens on a
// goroutine owned by the returned Conn.
type Transport interface {
	Name() string
	Open(rawURL string, opts OpenOptions, h Handler) Conn
}

// Conn is a handle on one open connection.
type Conn interface {
	// ID is a short identifier for logs.
	ID() string

	// Close tears the connection down without waiting for the I/O goroutine.
	// It is idempotent and may be called from inside the handler. Events
	// racing with Close are suppressed on a best-effort basis; callers that
	// need a hard guarantee must also check connection identity (as the
	// session manager does).
	Close()

	// LastEventID is the id of the last successfully parsed point, or "".
	LastEventID() string
}
