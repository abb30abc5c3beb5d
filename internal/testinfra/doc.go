// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

// Package testinfra provides test doubles for the location backend.
//
// # Fake Transport
//
// FakeTransport implements stream.Transport without any I/O. Each Open
// returns a FakeConn the test drives by hand:
//
//	tr := testinfra.NewFakeTransport("push")
//	mgr := session.NewManager(cfg, tr, sched)
//	mgr.Connect(sub, handlers)
//	conn := tr.Last()
//	conn.Connected()
//	conn.Point(p)
//
// FakeConn delivers events even after Close so callers' stale-event
// handling can be exercised.
//
// # Mock Location Server
//
// MockLocationServer is an httptest server speaking the Location API:
// the text/event-stream endpoint, locations.php and users.php. It captures
// every request for verification.
package testinfra
