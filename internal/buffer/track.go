// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package buffer

import (
	"math"
	"time"
)

// TrackStats summarizes one subject's retained route.
type TrackStats struct {
	Subject        string        `json:"subject"`
	Points         int           `json:"points"`
	Fixes          int           `json:"fixes"`
	DistanceMeters float64       `json:"distance_meters"`
	Duration       time.Duration `json:"duration"`
	First          *time.Time    `json:"first,omitempty"`
	Last           *time.Time    `json:"last,omitempty"`
}

// Track computes route statistics for subject over the retained history.
// Distance is summed between consecutive points that carry a fix.
func (b *Buffer) Track(subject string) TrackStats {
	st := TrackStats{Subject: subject}

	var prevLat, prevLon float64
	havePrev := false
	for _, p := range b.history {
		if p.SubjectKey() != subject {
			continue
		}
		st.Points++
		t := p.ServerTime
		if st.First == nil {
			st.First = &t
		}
		st.Last = &t

		if !p.HasFix() {
			continue
		}
		st.Fixes++
		lat, lon := *p.Latitude, *p.Longitude
		if havePrev {
			st.DistanceMeters += haversineMeters(prevLat, prevLon, lat, lon)
		}
		prevLat, prevLon, havePrev = lat, lon, true
	}

	if st.First != nil {
		st.Duration = st.Last.Sub(*st.First)
	}
	return st
}

// haversineMeters returns the great-circle distance between two points.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0

	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
