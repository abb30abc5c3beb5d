// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

// Package session manages the lifecycle of a single location stream.
//
// A Manager validates a Subscription, encodes it as stream query parameters
// and opens one connection on its Transport. It never reconnects on its
// own: after an error the caller decides whether to Connect again or Resume
// from the last event id.
//
// State machine:
//
//	Idle -> Connecting -> Connected -> Disconnected | Failed
//
// Disconnect is valid from every state and lands on Idle.
package session
