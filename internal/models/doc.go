// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package models defines the data structures shared by the streaming client.

Key Components:

  - LocationPoint: immutable, fully typed location report with optional telemetry
  - PointRecord: wire shape of a point as served by the event stream and the
    Location API; converted to LocationPoint through a validation step
  - EventKey: (device_id, server_timestamp) identity used for deduplication
  - TrackableUser: user directory entry from the Location API

Wire payloads are loosely typed (numbers may arrive as strings, timestamps
as either RFC3339 or "2006-01-02 15:04:05"). Everything past the parse
boundary works with LocationPoint only.

Usage Example:

	point, err := models.ParsePoint(frame.Data)
	if err != nil {
	    // errors.Is(err, models.ErrInvalidPoint)
	    return
	}
	key := point.SubjectKey() // username, else device id
*/
package models
