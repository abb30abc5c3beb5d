// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/locus/internal/logging"
)

// SnapshotFunc returns the payload of the initial snapshot message.
type SnapshotFunc func() interface{}

// Handler upgrades requests and attaches them to a hub.
type Handler struct {
	hub      *Hub
	snapshot SnapshotFunc
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. allowedOrigins lists accepted Origin
// values; "*" accepts any. Requests without an Origin header (non-browser
// clients) are always accepted.
func NewHandler(hub *Hub, snapshot SnapshotFunc, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub, snapshot: snapshot}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		// same host is always fine
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return false
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn)
	if h.snapshot != nil {
		client.send <- Message{Type: MessageTypeSnapshot, Data: h.snapshot()}
	}
	h.hub.Register <- client
	client.Start()
}
