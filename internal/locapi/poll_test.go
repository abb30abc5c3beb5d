// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package locapi

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/tomtom215/locus/internal/stream"
	"github.com/tomtom215/locus/internal/testinfra"
)

func pollServer(t *testing.T) *testinfra.MockLocationServer {
	t.Helper()
	srv := newServer(t)
	srv.Users = []map[string]any{
		{"id": 7, "username": "adar"},
		{"id": 8, "username": "bob"},
	}
	srv.SetLocations("adar",
		testinfra.LocationRow(7, 5_000, 1, 1),
		testinfra.LocationRow(7, 1_000, 1, 1),
	)
	srv.SetLocations("bob",
		testinfra.LocationRow(8, 3_000, 2, 2),
	)
	return srv
}

func timestamps(t *testing.T, c *Client, q stream.Query) []int64 {
	t.Helper()
	points, err := c.Poll(context.Background(), q)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.ServerTimestamp
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestClient_Poll(t *testing.T) {
	tests := []struct {
		name      string
		q         stream.Query
		want      []int64
		wantUsers int // users.php requests
	}{
		{"users fan out", stream.Query{Users: []string{"adar", "bob"}}, []int64{1_000, 3_000, 5_000}, 0},
		{"single user", stream.Query{Users: []string{"bob"}}, []int64{3_000}, 0},
		{"all", stream.Query{All: true}, []int64{1_000, 3_000, 5_000}, 1},
		{"device filter", stream.Query{Devices: []string{"user:8"}}, []int64{3_000}, 1},
		{"unknown device", stream.Query{Devices: []string{"phone-9"}}, []int64{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := pollServer(t)
			c := newTestClient(t, srv)

			if got := timestamps(t, c, tt.q); !equalInts(got, tt.want) {
				t.Errorf("Poll() = %v, want %v", got, tt.want)
			}
			if n := len(srv.CapturesFor(testinfra.UsersPath)); n != tt.wantUsers {
				t.Errorf("users.php requests = %d, want %d", n, tt.wantUsers)
			}
		})
	}
}

func TestClient_PollSinceAndLimit(t *testing.T) {
	srv := pollServer(t)
	c := newTestClient(t, srv)

	since := int64(3_500)
	got := timestamps(t, c, stream.Query{Users: []string{"adar"}, Since: &since, Limit: 50})
	if !equalInts(got, []int64{5_000}) {
		t.Errorf("Poll() = %v, want [5000]", got)
	}

	q, _ := url.ParseQuery(srv.CapturesFor(testinfra.LocationsPath)[0].Query)
	if q.Get("date_from") != "1970-01-01 00:00:03" {
		t.Errorf("date_from = %q, want second-truncated cursor", q.Get("date_from"))
	}
	if q.Get("limit") != "50" {
		t.Errorf("limit = %q, want 50", q.Get("limit"))
	}
}

func TestClient_PollTransportEndToEnd(t *testing.T) {
	srv := pollServer(t)
	c := newTestClient(t, srv)

	events := make(chan stream.Event, 16)
	tr := stream.NewPollTransport(stream.PollConfig{Source: c, Interval: time.Hour})
	u, err := stream.Query{Users: []string{"adar", "bob"}, Limit: 100}.URL("https://unused.example.com/stream")
	if err != nil {
		t.Fatalf("URL() error = %v", err)
	}
	conn := tr.Open(u, stream.OpenOptions{}, func(ev stream.Event) { events <- ev })
	defer conn.Close()

	next := func() stream.Event {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for event")
			return stream.Event{}
		}
	}

	if ev := next(); ev.Kind != stream.EventConnected {
		t.Fatalf("first event = %v, want connected", ev.Kind)
	}
	for _, want := range []int64{1_000, 3_000, 5_000} {
		ev := next()
		if ev.Kind != stream.EventPoint || ev.Point.ServerTimestamp != want {
			t.Fatalf("event = %v %d, want point %d", ev.Kind, ev.Point.ServerTimestamp, want)
		}
	}
	if conn.LastEventID() != "5000" {
		t.Errorf("LastEventID() = %q, want 5000", conn.LastEventID())
	}
}
