// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package api

import (
	"github.com/tomtom215/locus/internal/binding"
	"github.com/tomtom215/locus/internal/session"
)

// SubscriptionRequest is the body of PUT /api/v1/subscription.
//
// Fields:
//   - All: track every subject; mutually exclusive with Users and Devices
//   - Users, Devices: filter sets, combined as a union
//   - Heartbeat: keep-alive seconds requested from the server (default 10)
//   - Limit: max points per cycle (1-500, default 100)
//   - Enabled: false disconnects and stops tracking (default true)
type SubscriptionRequest struct {
	All       bool     `json:"all"`
	Users     []string `json:"users" validate:"omitempty,max=100,dive,notblank,max=128"`
	Devices   []string `json:"devices" validate:"omitempty,max=100,dive,notblank,max=128"`
	Heartbeat int      `json:"heartbeat" validate:"omitempty,min=1,max=3600"`
	Limit     int      `json:"limit" validate:"omitempty,min=1,max=500"`
	Enabled   *bool    `json:"enabled"`
}

// Descriptor converts the request into a normalized binding descriptor.
func (r SubscriptionRequest) Descriptor() binding.Descriptor {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	scope := session.Scope{All: r.All, Users: r.Users, Devices: r.Devices}
	return binding.Descriptor{
		Scope:            scope,
		HeartbeatSeconds: r.Heartbeat,
		Limit:            r.Limit,
		Enabled:          enabled,
	}.Normalize()
}

// History sources.
const (
	SourceBuffer = "buffer"
	SourceAPI    = "api"
)

// HistoryRequest represents the validated query parameters for /history.
//
// Fields:
//   - Subject: username or device; required for the api source
//   - Limit: maximum points (1-500)
//   - From, To: RFC3339 bounds, api source only
//   - Source: buffer (live points) or api (Location API)
type HistoryRequest struct {
	Subject string `validate:"omitempty,max=128"`
	Limit   int    `validate:"min=1,max=500"`
	From    string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To      string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Source  string `validate:"oneof=buffer api"`
}
