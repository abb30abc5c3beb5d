// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package models

import (
	"strconv"
	"time"
)

// TrackableUser is a Location API user that can be selected for tracking.
type TrackableUser struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	DisplayName   string     `json:"display_name,omitempty"`
	LocationCount *int64     `json:"location_count,omitempty"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
}

// Name returns the display name, falling back to the username.
func (u TrackableUser) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// UserRecord is the wire shape of a users.php entry.
type UserRecord struct {
	ID            FlexInt   `json:"id"`
	Username      string    `json:"username"`
	DisplayName   *string   `json:"display_name"`
	LocationCount FlexInt   `json:"location_count"`
	LastLocation  Timestamp `json:"last_location_time"`
}

// User converts the record to a TrackableUser.
func (r UserRecord) User() TrackableUser {
	u := TrackableUser{
		Username:      r.Username,
		LocationCount: r.LocationCount.Ptr(),
	}
	if r.ID.Valid {
		u.ID = strconv.FormatInt(r.ID.Value, 10)
	}
	if r.DisplayName != nil {
		u.DisplayName = *r.DisplayName
	}
	if r.LastLocation.Valid {
		t := r.LastLocation.Time
		u.LastSeen = &t
	}
	return u
}

// RouteHistory is a subject's route over a time window, oldest first.
type RouteHistory struct {
	Subject string          `json:"subject"`
	Points  []LocationPoint `json:"points"`
	From    *time.Time      `json:"from,omitempty"`
	To      *time.Time      `json:"to,omitempty"`
}
