// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package binding

import (
	"time"

	"github.com/tomtom215/locus/internal/models"
)

// State is the read-only view a consumer renders. A new State is published
// after every change; published values are never modified.
type State struct {
	Version     uint64                          `json:"version"`
	Descriptor  Descriptor                      `json:"descriptor"`
	Transport   string                          `json:"transport"`
	Phase       string                          `json:"phase"`
	Connected   bool                            `json:"connected"`
	LastEventID string                          `json:"last_event_id,omitempty"`
	History     []models.LocationPoint          `json:"history"`
	Latest      map[string]models.LocationPoint `json:"latest"`
	Err         error                           `json:"-"`
	Error       string                          `json:"error,omitempty"`
	Gap         bool                            `json:"gap"`
	Reconnects  int                             `json:"reconnects"`
	UpdatedAt   time.Time                       `json:"updated_at"`
}

// LatestFor returns the current position of subject.
func (s *State) LatestFor(subject string) (models.LocationPoint, bool) {
	p, ok := s.Latest[subject]
	return p, ok
}

// Summary is State without the point data, for frequent change
// notifications.
type Summary struct {
	Version     uint64    `json:"version"`
	Transport   string    `json:"transport"`
	Phase       string    `json:"phase"`
	Connected   bool      `json:"connected"`
	Enabled     bool      `json:"enabled"`
	LastEventID string    `json:"last_event_id,omitempty"`
	Points      int       `json:"points"`
	Subjects    int       `json:"subjects"`
	Error       string    `json:"error,omitempty"`
	Gap         bool      `json:"gap"`
	Reconnects  int       `json:"reconnects"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary returns the compact form of s.
func (s *State) Summary() Summary {
	return Summary{
		Version:     s.Version,
		Transport:   s.Transport,
		Phase:       s.Phase,
		Connected:   s.Connected,
		Enabled:     s.Descriptor.Enabled,
		LastEventID: s.LastEventID,
		Points:      len(s.History),
		Subjects:    len(s.Latest),
		Error:       s.Error,
		Gap:         s.Gap,
		Reconnects:  s.Reconnects,
		UpdatedAt:   s.UpdatedAt,
	}
}
