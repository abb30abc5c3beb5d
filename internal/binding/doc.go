// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

// Package binding exposes a live location stream as observable state.
//
// A Binding owns one session.Manager, one buffer.Buffer and the event loop
// both run on. Consumers describe what they want with a Descriptor; any
// change to it (filter sets compare as sets) disconnects, clears the buffer
// and connects fresh. Disabling leaves no connection open and an empty
// state. Re-enabling is a fresh connect, never an implicit resume.
//
// Every change publishes a new immutable State, readable from any goroutine
// through Snapshot and pushed to Subscribe observers.
//
// Optional behavior:
//   - Reconnect: after a failure, Resume is scheduled with exponential backoff.
//   - Gap handling: when the server no longer holds history back to the
//     resume cursor (HTTP 410), the gap is flagged in State and a fresh
//     connection is opened immediately.
//   - Cursor persistence: with a CursorStore the last event id survives
//     restarts, and ResumeOnStart resumes the first connection from it.
package binding
