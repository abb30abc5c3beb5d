// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package testinfra

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/locus/internal/models"
	"github.com/tomtom215/locus/internal/stream"
)

// FakeTransport records every Open and hands back scriptable connections.
type FakeTransport struct {
	name string

	mu    sync.Mutex
	conns []*FakeConn
}

// NewFakeTransport creates a FakeTransport reporting name from Name().
func NewFakeTransport(name string) *FakeTransport {
	if name == "" {
		name = "fake"
	}
	return &FakeTransport{name: name}
}

// Name implements stream.Transport.
func (t *FakeTransport) Name() string { return t.name }

// Open implements stream.Transport.
func (t *FakeTransport) Open(rawURL string, opts stream.OpenOptions, h stream.Handler) stream.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &FakeConn{
		id:      fmt.Sprintf("fake-%d", len(t.conns)+1),
		URL:     rawURL,
		Opts:    opts,
		handler: h,
	}
	c.lastID.Store(opts.LastEventID)
	t.conns = append(t.conns, c)
	return c
}

// Conns returns every connection opened so far, oldest first.
func (t *FakeTransport) Conns() []*FakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*FakeConn(nil), t.conns...)
}

// OpenCount returns the number of Open calls.
func (t *FakeTransport) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// Last returns the most recent connection, or nil.
func (t *FakeTransport) Last() *FakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

// LiveCount returns the number of connections not yet closed.
func (t *FakeTransport) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.conns {
		if !c.Closed() {
			n++
		}
	}
	return n
}

// FakeConn is one scripted connection.
type FakeConn struct {
	id      string
	URL     string
	Opts    stream.OpenOptions
	handler stream.Handler

	closed atomic.Bool
	lastID atomic.Value // string
}

// ID implements stream.Conn.
func (c *FakeConn) ID() string { return c.id }

// Close implements stream.Conn.
func (c *FakeConn) Close() { c.closed.Store(true) }

// LastEventID implements stream.Conn.
func (c *FakeConn) LastEventID() string {
	s, _ := c.lastID.Load().(string)
	return s
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool { return c.closed.Load() }

// Query returns the parsed query of the opened URL.
func (c *FakeConn) Query() url.Values {
	u, err := url.Parse(c.URL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

// Emit delivers ev to the handler, even after Close.
func (c *FakeConn) Emit(ev stream.Event) {
	c.handler(ev)
}

// Connected emits EventConnected.
func (c *FakeConn) Connected() {
	c.Emit(stream.Event{Kind: stream.EventConnected})
}

// Point emits p with its server timestamp as the event id.
func (c *FakeConn) Point(p models.LocationPoint) {
	c.PointWithID(p, strconv.FormatInt(p.ServerTimestamp, 10))
}

// PointWithID emits p with an explicit event id.
func (c *FakeConn) PointWithID(p models.LocationPoint, id string) {
	c.lastID.Store(id)
	c.Emit(stream.Event{Kind: stream.EventPoint, ID: id, Point: p})
}

// KeepAlive emits EventKeepAlive.
func (c *FakeConn) KeepAlive() {
	c.Emit(stream.Event{Kind: stream.EventKeepAlive})
}

// Fail emits EventError.
func (c *FakeConn) Fail(err error) {
	c.Emit(stream.Event{Kind: stream.EventError, Err: err})
}
