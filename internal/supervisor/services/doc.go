// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

// Package services adapts components whose lifecycle does not already match
// suture.Service. Today that is only *http.Server, whose blocking
// ListenAndServe and separate Shutdown are folded into one Serve(ctx).
package services
