// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status        string     `json:"status"`
	Version       string     `json:"version"`
	Transport     string     `json:"transport"`
	Phase         string     `json:"phase"`
	Connected     bool       `json:"connected"`
	Enabled       bool       `json:"enabled"`
	LastEventID   string     `json:"last_event_id,omitempty"`
	LastPointAt   *time.Time `json:"last_point_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	Uptime        float64    `json:"uptime_seconds"`
	DirectoryUsed bool       `json:"location_api"`
}

// Health reports stream health. Tracking that is disabled on purpose is
// healthy; an enabled but disconnected stream is degraded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.health())
}

// HealthLive always answers 200 while the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "alive"})
}

// HealthReady answers 503 while an enabled stream is not connected.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	hs := h.health()
	if hs.Status != "healthy" {
		NewResponseWriter(w, r).ServiceUnavailable("stream " + hs.Phase)
		return
	}
	WriteSuccess(w, r, hs)
}

func (h *Handler) health() HealthStatus {
	st := h.tracker.Snapshot()
	enabled := st.Descriptor.Enabled

	status := "healthy"
	if enabled && !st.Connected {
		status = "degraded"
	}

	var lastPoint *time.Time
	if n := len(st.History); n > 0 {
		t := st.History[n-1].ServerTime
		lastPoint = &t
	}

	return HealthStatus{
		Status:        status,
		Version:       h.version,
		Transport:     st.Transport,
		Phase:         st.Phase,
		Connected:     st.Connected,
		Enabled:       enabled,
		LastEventID:   st.LastEventID,
		LastPointAt:   lastPoint,
		Error:         st.Error,
		Uptime:        time.Since(h.startTime).Seconds(),
		DirectoryUsed: h.directory != nil,
	}
}
