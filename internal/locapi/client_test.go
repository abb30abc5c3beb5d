// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package locapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/locus/internal/credential"
	"github.com/tomtom215/locus/internal/models"
	"github.com/tomtom215/locus/internal/stream"
	"github.com/tomtom215/locus/internal/testinfra"
)

const testToken = "secret-token"

func newTestClient(t *testing.T, srv *testinfra.MockLocationServer) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:     srv.URL(),
		Credentials: credential.NewHolder(testToken),
		Breaker:     BreakerConfig{MinRequests: 3, Timeout: time.Minute},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func newServer(t *testing.T) *testinfra.MockLocationServer {
	t.Helper()
	srv := testinfra.NewMockLocationServer(t)
	srv.Token = testToken
	return srv
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("New(%q) error = nil, want error", base)
		}
	}
}

func TestClient_Users(t *testing.T) {
	srv := newServer(t)
	srv.Users = []map[string]any{
		{"id": 7, "username": "adar", "display_name": "Adar", "location_count": "12", "last_location_time": "2026-01-02 03:04:05"},
		{"id": "8", "username": "bob", "display_name": nil},
		{"id": 9, "username": ""},
	}
	c := newTestClient(t, srv)

	users, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Users() len = %d, want 2", len(users))
	}
	if users[0].ID != "7" || users[0].Name() != "Adar" {
		t.Errorf("users[0] = %+v", users[0])
	}
	if users[0].LocationCount == nil || *users[0].LocationCount != 12 {
		t.Errorf("LocationCount = %v, want 12", users[0].LocationCount)
	}
	if users[0].LastSeen == nil || !users[0].LastSeen.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("LastSeen = %v", users[0].LastSeen)
	}
	if users[1].Name() != "bob" {
		t.Errorf("users[1].Name() = %q, want bob", users[1].Name())
	}

	reqs := srv.CapturesFor(testinfra.UsersPath)
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	h := reqs[0].Headers
	if h.Get("Authorization") != "Bearer "+testToken || h.Get("X-API-Token") != testToken {
		t.Errorf("auth headers = %q / %q", h.Get("Authorization"), h.Get("X-API-Token"))
	}
	q, _ := url.ParseQuery(reqs[0].Query)
	if q.Get("with_location_data") != "true" {
		t.Errorf("with_location_data = %q, want true", q.Get("with_location_data"))
	}

	// cached
	if _, err := c.Users(context.Background()); err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if n := len(srv.CapturesFor(testinfra.UsersPath)); n != 1 {
		t.Errorf("requests after cached call = %d, want 1", n)
	}
	c.InvalidateUsers()
	if _, err := c.Users(context.Background()); err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if n := len(srv.CapturesFor(testinfra.UsersPath)); n != 2 {
		t.Errorf("requests after invalidate = %d, want 2", n)
	}
}

func TestClient_Locations(t *testing.T) {
	srv := newServer(t)
	bad := testinfra.LocationRow(7, 3_000, 95, 0) // latitude out of range
	srv.SetLocations("adar",
		testinfra.LocationRow(7, 2_000, 1.5, 2.5),
		bad,
		testinfra.LocationRow(7, 1_000, 1, 2),
	)
	c := newTestClient(t, srv)

	points, err := c.Locations(context.Background(), LocationsRequest{User: "adar", Limit: 10})
	if err != nil {
		t.Fatalf("Locations() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Locations() len = %d, want 2 (invalid row skipped)", len(points))
	}

	p := points[0]
	if p.ServerTimestamp != 2_000 {
		t.Errorf("ServerTimestamp = %d, want 2000 (newest first)", p.ServerTimestamp)
	}
	if p.DeviceID != "user:7" {
		t.Errorf("DeviceID = %q, want user:7", p.DeviceID)
	}
	if p.SubjectKey() != "adar" {
		t.Errorf("SubjectKey() = %q, want adar", p.SubjectKey())
	}
	if p.Speed == nil || *p.Speed != 1.5 {
		t.Errorf("Speed = %v, want 1.5", p.Speed)
	}
	if p.Bearing != nil {
		t.Errorf("Bearing = %v, want nil", *p.Bearing)
	}

	q, _ := url.ParseQuery(srv.CapturesFor(testinfra.LocationsPath)[0].Query)
	if q.Get("user") != "adar" || q.Get("limit") != "10" || q.Get("offset") != "0" {
		t.Errorf("query = %v", q)
	}
}

func TestClient_LocationsRequiresUser(t *testing.T) {
	c := newTestClient(t, newServer(t))
	if _, err := c.Locations(context.Background(), LocationsRequest{User: " "}); err == nil {
		t.Error("Locations() without user should fail")
	}
}

func TestLocationsRequest_Values(t *testing.T) {
	from := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	tests := []struct {
		name string
		req  LocationsRequest
		want map[string]string
	}{
		{"defaults", LocationsRequest{User: "adar"}, map[string]string{"limit": "500", "offset": "0"}},
		{"clamped", LocationsRequest{User: "adar", Limit: 9000, Offset: -3}, map[string]string{"limit": "500", "offset": "0"}},
		{"window", LocationsRequest{User: "adar", Limit: 5, From: &from, To: &to},
			map[string]string{"limit": "5", "date_from": "2026-03-01 08:00:00", "date_to": "2026-03-01 09:00:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.req.values()
			for k, want := range tt.want {
				if got := v.Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestClient_LatestAndHistory(t *testing.T) {
	srv := newServer(t)
	srv.SetLocations("adar",
		testinfra.LocationRow(7, 3_000, 3, 3),
		testinfra.LocationRow(7, 2_000, 2, 2),
		testinfra.LocationRow(7, 1_000, 1, 1),
	)
	c := newTestClient(t, srv)
	ctx := context.Background()

	latest, err := c.Latest(ctx, "adar")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ServerTimestamp != 3_000 {
		t.Errorf("Latest().ServerTimestamp = %d, want 3000", latest.ServerTimestamp)
	}

	if _, err := c.Latest(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest(nobody) error = %v, want %v", err, ErrNotFound)
	}

	hist, err := c.History(ctx, "adar", 10, nil, nil)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if hist.Subject != "adar" || len(hist.Points) != 3 {
		t.Fatalf("History() = %+v", hist)
	}
	for i, want := range []int64{1_000, 2_000, 3_000} {
		if hist.Points[i].ServerTimestamp != want {
			t.Errorf("Points[%d] = %d, want %d", i, hist.Points[i].ServerTimestamp, want)
		}
	}
}

func TestClient_APIErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		token      string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, testToken, 500},
		{"unauthorized", 0, "wrong", 401},
		{"gone", http.StatusGone, testToken, 410},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t)
			srv.Status = tt.status
			c, err := New(Config{BaseURL: srv.URL(), Credentials: credential.NewHolder(tt.token)})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			_, err = c.Latest(context.Background(), "adar")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.HTTPStatus() != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", apiErr.HTTPStatus(), tt.wantStatus)
			}
			var sc stream.StatusCoder
			if !errors.As(err, &sc) {
				t.Error("APIError does not satisfy stream.StatusCoder")
			}
		})
	}
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	srv := newServer(t)
	srv.Status = http.StatusBadGateway
	c := newTestClient(t, srv)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Latest(ctx, "adar"); err == nil {
			t.Fatal("Latest() error = nil, want failure")
		}
	}
	_, err := c.Latest(ctx, "adar")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error after trips = %v, want %v", err, gobreaker.ErrOpenState)
	}
	if n := len(srv.CapturesFor(testinfra.LocationsPath)); n != 3 {
		t.Errorf("requests reaching server = %d, want 3", n)
	}
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	srv := newServer(t)
	srv.Status = http.StatusNotFound
	c := newTestClient(t, srv)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := c.Latest(ctx, "adar")
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("breaker opened after %d client errors", i)
		}
	}
}

func TestClient_UnexpectedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(*Client) error
	}{
		{"users status", `{"status":"error","message":"db down"}`, func(c *Client) error {
			_, err := c.Users(context.Background())
			return err
		}},
		{"locations success false", `{"success":false,"error":"bad user"}`, func(c *Client) error {
			_, err := c.Locations(context.Background(), LocationsRequest{User: "adar"})
			return err
		}},
		{"not json", `<html>`, func(c *Client) error {
			_, err := c.Locations(context.Background(), LocationsRequest{User: "adar"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			c, err := New(Config{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := tt.call(c); !errors.Is(err, ErrUnexpectedResponse) {
				t.Errorf("error = %v, want %v", err, ErrUnexpectedResponse)
			}
		})
	}
}

func TestClient_RateLimit(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{
		BaseURL:           srv.URL(),
		Credentials:       credential.NewHolder(testToken),
		RequestsPerSecond: 20,
		Burst:             1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, _ = c.Locations(context.Background(), LocationsRequest{User: "adar"})
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 paced requests took %v, want >= ~100ms", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Locations(ctx, LocationsRequest{User: "adar"}); err == nil {
		t.Error("Locations() with canceled context should fail")
	}
}

func TestParseRow_KeepsDeviceAndUsername(t *testing.T) {
	raw := []byte(`{"device_id":"phone-1","username":"carol","latitude":1,"longitude":2,"server_timestamp":1005}`)
	p, err := parseRow(raw, "adar")
	if err != nil {
		t.Fatalf("parseRow() error = %v", err)
	}
	if p.DeviceID != "phone-1" || p.SubjectKey() != "carol" {
		t.Errorf("parseRow() = %s / %s, want phone-1 / carol", p.DeviceID, p.SubjectKey())
	}

	p, err = parseRow([]byte(`{"latitude":1,"longitude":2,"server_timestamp":1005}`), "adar")
	if err != nil {
		t.Fatalf("parseRow() error = %v", err)
	}
	if p.DeviceID != "user:adar" {
		t.Errorf("DeviceID = %q, want user:adar", p.DeviceID)
	}

	if _, err := parseRow([]byte(`{"latitude":1}`), "adar"); !errors.Is(err, models.ErrInvalidPoint) {
		t.Errorf("parseRow(no timestamp) error = %v, want %v", err, models.ErrInvalidPoint)
	}
}
