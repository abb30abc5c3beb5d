// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/locus/internal/eventloop"
	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/metrics"
	"github.com/tomtom215/locus/internal/models"
	"github.com/tomtom215/locus/internal/stream"
)

// DefaultLivenessMultiplier is how many heartbeat intervals may pass
// without traffic before a connection is failed.
const DefaultLivenessMultiplier = 3

// Config configures a Manager.
type Config struct {
	// StreamURL is the event stream endpoint. Subscription parameters are
	// appended as query parameters.
	StreamURL string

	// LivenessMultiplier times the heartbeat gives the idle timeout.
	// Zero uses DefaultLivenessMultiplier; negative disables the watchdog.
	LivenessMultiplier int
}

// Handlers receive the lifecycle of the current connection. Any may be nil.
type Handlers struct {
	OnConnected func()
	OnPoint     func(models.LocationPoint)
	OnKeepAlive func()
	OnError     func(error)
}

// Manager turns subscriptions into transport connections and holds at
// most one open at a time.
//
// A Manager is not safe for concurrent use. All methods, and all handler
// callbacks, run on the scheduler's goroutine.
type Manager struct {
	cfg       Config
	transport stream.Transport
	sched     eventloop.Scheduler
	log       zerolog.Logger

	conn     stream.Conn
	gen      uint64
	handlers Handlers
	state    State
	lastID   string
	current  Subscription
	openedAt time.Time
}

// NewManager creates a Manager. Transport events are posted to sched.
func NewManager(cfg Config, transport stream.Transport, sched eventloop.Scheduler) *Manager {
	if cfg.LivenessMultiplier == 0 {
		cfg.LivenessMultiplier = DefaultLivenessMultiplier
	}
	return &Manager{
		cfg:       cfg,
		transport: transport,
		sched:     sched,
		log:       logging.WithComponent("session"),
	}
}

// Connect validates sub and opens a new connection, closing any prior one
// first. An invalid subscription is rejected with ErrInvalidSubscription and
// leaves the current connection untouched.
func (m *Manager) Connect(sub Subscription, h Handlers) error {
	sub = sub.WithDefaults()
	if err := sub.Validate(); err != nil {
		return err
	}
	lastEventID := ""
	if sub.ResumeCursor != nil {
		lastEventID = strconv.FormatInt(*sub.ResumeCursor, 10)
	}
	return m.open(sub, h, lastEventID)
}

// Resume reconnects from the last observed event id. Without one it is
// identical to Connect. Any cursor already on sub is replaced.
func (m *Manager) Resume(sub Subscription, h Handlers) error {
	sub = sub.WithDefaults().WithoutCursor()
	if err := sub.Validate(); err != nil {
		return err
	}
	if m.lastID == "" {
		return m.open(sub, h, "")
	}

	if cursor, err := strconv.ParseInt(m.lastID, 10, 64); err == nil {
		sub = sub.WithCursor(cursor)
	} else {
		m.log.Warn().Str("last_event_id", m.lastID).Msg("Last event id is not a timestamp, resuming by header only")
	}
	return m.open(sub, h, m.lastID)
}

func (m *Manager) open(sub Subscription, h Handlers, lastEventID string) error {
	m.closeConn()

	rawURL, err := sub.Query().URL(m.cfg.StreamURL)
	if err != nil {
		m.state = State{Phase: PhaseFailed, Err: err}
		return fmt.Errorf("build stream url: %w", err)
	}

	opts := stream.OpenOptions{LastEventID: lastEventID}
	if m.cfg.LivenessMultiplier > 0 {
		opts.IdleTimeout = time.Duration(m.cfg.LivenessMultiplier) * sub.Heartbeat()
	}

	m.gen++
	gen := m.gen
	m.handlers = h
	m.current = sub
	m.state = State{Phase: PhaseConnecting}

	resume := sub.ResumeCursor != nil || lastEventID != ""
	metrics.RecordConnectAttempt(m.transport.Name(), resume)

	m.conn = m.transport.Open(rawURL, opts, func(ev stream.Event) {
		m.sched.Post(func() { m.handle(gen, ev) })
	})

	m.log.Info().
		Str("conn_id", m.conn.ID()).
		Str("transport", m.transport.Name()).
		Str("scope", sub.Scope.String()).
		Bool("resume", resume).
		Str("last_event_id", lastEventID).
		Msg("Stream connecting")
	return nil
}

func (m *Manager) handle(gen uint64, ev stream.Event) {
	if gen != m.gen || m.conn == nil {
		return
	}
	h := m.handlers

	switch ev.Kind {
	case stream.EventConnected:
		m.state = State{Phase: PhaseConnected}
		m.openedAt = time.Now()
		metrics.SetStreamConnected(true)
		m.log.Info().Str("conn_id", m.conn.ID()).Msg("Stream connected")
		if h.OnConnected != nil {
			h.OnConnected()
		}

	case stream.EventPoint:
		if ev.ID != "" {
			m.lastID = ev.ID
		}
		if h.OnPoint != nil {
			h.OnPoint(ev.Point)
		}

	case stream.EventKeepAlive:
		if h.OnKeepAlive != nil {
			h.OnKeepAlive()
		}

	case stream.EventError:
		m.closeConn()
		if errors.Is(ev.Err, stream.ErrStreamClosed) {
			m.state = State{Phase: PhaseDisconnected, Reason: ev.Err.Error()}
		} else {
			m.state = State{Phase: PhaseFailed, Err: ev.Err}
		}
		m.log.Warn().Err(ev.Err).Str("reason", stream.Reason(ev.Err)).Msg("Stream connection lost")
		if h.OnError != nil {
			h.OnError(ev.Err)
		}
	}
}

// Disconnect closes the transport and returns to Idle. It is idempotent and
// may be called from inside a handler; no callback from the closed
// connection is delivered afterwards.
func (m *Manager) Disconnect() {
	if m.conn != nil {
		m.log.Info().Str("conn_id", m.conn.ID()).Msg("Stream disconnected")
	}
	m.closeConn()
	m.state = State{}
}

func (m *Manager) closeConn() {
	m.gen++
	if m.conn == nil {
		return
	}
	m.conn.Close()
	m.conn = nil
	if !m.openedAt.IsZero() {
		metrics.RecordConnectionClosed(m.openedAt)
		m.openedAt = time.Time{}
	}
	metrics.SetStreamConnected(false)
}

// State returns the connection state.
func (m *Manager) State() State {
	return m.state
}

// LastEventID returns the id of the last delivered point, or "".
func (m *Manager) LastEventID() string {
	return m.lastID
}

// SeedCursor sets the id Resume starts from, typically one restored from
// storage. It does not touch an open connection.
func (m *Manager) SeedCursor(id string) {
	m.lastID = id
}

// Subscription returns the subscription of the most recent connection.
func (m *Manager) Subscription() Subscription {
	return m.current
}

// TransportName names the configured transport.
func (m *Manager) TransportName() string {
	return m.transport.Name()
}
