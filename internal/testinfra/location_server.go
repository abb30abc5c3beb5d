// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package testinfra

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// Request paths served by MockLocationServer.
const (
	StreamPath    = "/stream"
	LocationsPath = "/locations.php"
	UsersPath     = "/users.php"
)

// RequestCapture is one captured request.
type RequestCapture struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
}

// MockLocationServer is an httptest server speaking the Location API.
type MockLocationServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []RequestCapture

	// Token, when set, must arrive as a bearer token or X-API-Token.
	Token string

	// Locations holds location rows per user, newest first, as the API
	// returns them. Rows are raw JSON objects.
	Locations map[string][]map[string]any

	// Users is the users.php payload.
	Users []map[string]any

	// StreamFrames is written to stream clients, which are then held open
	// until they disconnect.
	StreamFrames string

	// StreamFunc, when set, replaces the default stream handler.
	StreamFunc http.HandlerFunc

	// Status, when non-zero, is returned for every request.
	Status int
}

// NewMockLocationServer starts a server and closes it on test cleanup.
func NewMockLocationServer(t *testing.T) *MockLocationServer {
	t.Helper()

	m := &MockLocationServer{Locations: make(map[string][]map[string]any)}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Server.Close)
	return m
}

// URL returns the server base URL.
func (m *MockLocationServer) URL() string {
	return m.Server.URL
}

// StreamURL returns the stream endpoint URL.
func (m *MockLocationServer) StreamURL() string {
	return m.Server.URL + StreamPath
}

// Captures returns all captured requests.
func (m *MockLocationServer) Captures() []RequestCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RequestCapture(nil), m.captures...)
}

// CapturesFor returns captured requests for path.
func (m *MockLocationServer) CapturesFor(path string) []RequestCapture {
	var out []RequestCapture
	for _, c := range m.Captures() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// SetLocations replaces the rows for user.
func (m *MockLocationServer) SetLocations(user string, rows ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locations[user] = rows
}

// LocationRow builds a locations.php row the way the API formats it.
func LocationRow(userID int, ts int64, lat, lon float64) map[string]any {
	return map[string]any{
		"user_id":     userID,
		"latitude":    lat,
		"longitude":   lon,
		"server_time": time.UnixMilli(ts).UTC().Format("2006-01-02 15:04:05"),
		"speed":       "1.5",
		"bearing":     nil,
	}
}

func (m *MockLocationServer) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.captures = append(m.captures, RequestCapture{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: r.Header.Clone(),
	})
	status := m.Status
	token := m.Token
	m.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if token != "" && !authorized(r, token) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case StreamPath:
		m.serveStream(w, r)
	case LocationsPath:
		m.serveLocations(w, r)
	case UsersPath:
		m.serveUsers(w)
	default:
		http.NotFound(w, r)
	}
}

func authorized(r *http.Request, token string) bool {
	if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") == token {
		return true
	}
	return r.Header.Get("X-API-Token") == token
}

func (m *MockLocationServer) serveStream(w http.ResponseWriter, r *http.Request) {
	if m.StreamFunc != nil {
		m.StreamFunc(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, m.StreamFrames) //nolint:errcheck
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
}

func (m *MockLocationServer) serveLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	from := q.Get("date_from")

	m.mu.Lock()
	var rows []map[string]any
	for _, row := range m.Locations[q.Get("user")] {
		if from != "" {
			if st, _ := row["server_time"].(string); st < from {
				continue
			}
		}
		rows = append(rows, row)
	}
	m.mu.Unlock()

	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, map[string]any{"success": true, "data": rows})
}

func (m *MockLocationServer) serveUsers(w http.ResponseWriter) {
	m.mu.Lock()
	users := m.Users
	m.mu.Unlock()
	if users == nil {
		users = []map[string]any{}
	}
	writeJSON(w, map[string]any{"status": "success", "data": map[string]any{"users": users}})
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck
}
