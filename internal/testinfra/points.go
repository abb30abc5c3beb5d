// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package testinfra

import (
	"time"

	"github.com/tomtom215/locus/internal/models"
)

// Point builds a LocationPoint for device at ts (ms) with a fix at lat/lon.
func Point(device string, ts int64, lat, lon float64) models.LocationPoint {
	return models.LocationPoint{
		DeviceID:        device,
		Latitude:        &lat,
		Longitude:       &lon,
		ServerTime:      time.UnixMilli(ts).UTC(),
		ServerTimestamp: ts,
	}
}

// UserPoint is Point with a username.
func UserPoint(user, device string, ts int64, lat, lon float64) models.LocationPoint {
	p := Point(device, ts, lat, lon)
	p.Username = &user
	return p
}
