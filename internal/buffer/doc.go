// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

// Package buffer keeps the point history and current positions derived from
// a location stream.
//
// Points are deduplicated on (device id, server timestamp) before anything
// else happens, so a replayed resume window changes neither the history nor
// any aggregate computed from it. History is kept sorted by server
// timestamp and bounded; once full, the chronologically oldest point is
// evicted. The latest point per subject (username, else device id) is the
// one with the greatest server timestamp regardless of arrival order.
package buffer
