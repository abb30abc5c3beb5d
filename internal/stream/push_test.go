// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package stream

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/locus/internal/credential"
)

// eventRecorder collects events from a transport goroutine.
type eventRecorder struct {
	ch chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan Event, 64)}
}

func (r *eventRecorder) handle(ev Event) {
	r.ch <- ev
}

func (r *eventRecorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (r *eventRecorder) expect(t *testing.T, kind EventKind) Event {
	t.Helper()
	ev := r.next(t)
	if ev.Kind != kind {
		t.Fatalf("event kind = %v (err=%v), want %v", ev.Kind, ev.Err, kind)
	}
	return ev
}

func (r *eventRecorder) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected event %v (err=%v)", ev.Kind, ev.Err)
	case <-time.After(d):
	}
}

// sseServer writes frames and then holds the connection open until the
// client goes away or hold is closed.
func sseServer(t *testing.T, frames string, hold chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, frames)
		w.(http.Flusher).Flush()
		if hold == nil {
			return
		}
		select {
		case <-hold:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pointFrame(device string, ts int64) string {
	return fmt.Sprintf("event: point\nid: %d\ndata: {\"device_id\":%q,\"server_timestamp\":%d,\"latitude\":1.5,\"longitude\":2.5}\n\n", ts, device, ts)
}

func TestPushTransport_DeliversPointsInOrder(t *testing.T) {
	frames := "event: open\ndata: {}\n\n" +
		pointFrame("d1", 1000) +
		": keep-alive\n\n" +
		pointFrame("d2", 1001)
	srv := sseServer(t, frames, nil)

	rec := newEventRecorder()
	conn := NewPushTransport(PushConfig{}).Open(srv.URL, OpenOptions{}, rec.handle)
	defer conn.Close()

	rec.expect(t, EventConnected)
	ev := rec.expect(t, EventPoint)
	if ev.Point.DeviceID != "d1" || ev.ID != "1000" {
		t.Errorf("first point = %s/%s, want d1/1000", ev.Point.DeviceID, ev.ID)
	}
	rec.expect(t, EventKeepAlive)
	ev = rec.expect(t, EventPoint)
	if ev.Point.DeviceID != "d2" || ev.Point.ServerTimestamp != 1001 {
		t.Errorf("second point = %s/%d, want d2/1001", ev.Point.DeviceID, ev.Point.ServerTimestamp)
	}

	ev = rec.expect(t, EventError)
	if !errors.Is(ev.Err, ErrStreamClosed) {
		t.Errorf("error = %v, want %v", ev.Err, ErrStreamClosed)
	}
	if got := conn.LastEventID(); got != "1001" {
		t.Errorf("LastEventID() = %q, want %q", got, "1001")
	}
}

func TestPushTransport_MalformedPayloadDropped(t *testing.T) {
	frames := "event: point\ndata: {not json\n\n" +
		"event: point\ndata: {\"latitude\":1}\n\n" +
		pointFrame("d1", 2000)
	srv := sseServer(t, frames, nil)

	rec := newEventRecorder()
	conn := NewPushTransport(PushConfig{}).Open(srv.URL, OpenOptions{}, rec.handle)
	defer conn.Close()

	rec.expect(t, EventConnected)
	ev := rec.expect(t, EventPoint)
	if ev.Point.ServerTimestamp != 2000 {
		t.Errorf("ServerTimestamp = %d, want 2000", ev.Point.ServerTimestamp)
	}
	rec.expect(t, EventError)
}

func TestPushTransport_IDFallsBackToServerTimestamp(t *testing.T) {
	frames := "event: point\ndata: {\"device_id\":\"d1\",\"server_timestamp\":4242}\n\n"
	srv := sseServer(t, frames, nil)

	rec := newEventRecorder()
	conn := NewPushTransport(PushConfig{}).Open(srv.URL, OpenOptions{}, rec.handle)
	defer conn.Close()

	rec.expect(t, EventConnected)
	ev := rec.expect(t, EventPoint)
	if ev.ID != "4242" {
		t.Errorf("ID = %q, want %q", ev.ID, "4242")
	}
}

func TestPushTransport_RequestHeaders(t *testing.T) {
	got := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Clone(r.Context())
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewPushTransport(PushConfig{Credentials: credential.NewHolder("tok")})
	rec := newEventRecorder()
	conn := tr.Open(srv.URL+"?all=true", OpenOptions{LastEventID: "1234"}, rec.handle)
	defer conn.Close()

	var r *http.Request
	select {
	case r = <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("server saw no request")
	}

	tests := []struct {
		header string
		want   string
	}{
		{"Accept", "text/event-stream"},
		{"Last-Event-ID", "1234"},
		{"Authorization", "Bearer tok"},
		{"X-API-Token", "tok"},
	}
	for _, tt := range tests {
		if v := r.Header.Get(tt.header); v != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, v, tt.want)
		}
	}
	if r.URL.Query().Get("all") != "true" {
		t.Errorf("query all = %q, want true", r.URL.Query().Get("all"))
	}
	if conn.LastEventID() != "1234" {
		t.Errorf("LastEventID() = %q, want seeded %q", conn.LastEventID(), "1234")
	}
}

func TestPushTransport_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
		reason  string
	}{
		{"gone means cursor expired", http.StatusGone, ErrCursorExpired, "cursor_expired"},
		{"unauthorized", http.StatusUnauthorized, nil, "status"},
		{"server error", http.StatusInternalServerError, nil, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			rec := newEventRecorder()
			conn := NewPushTransport(PushConfig{}).Open(srv.URL, OpenOptions{}, rec.handle)
			defer conn.Close()

			ev := rec.expect(t, EventError)
			var te *TransportError
			if !errors.As(ev.Err, &te) {
				t.Fatalf("error %v is not a *TransportError", ev.Err)
			}
			if te.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", te.StatusCode, tt.status)
			}
			if tt.wantErr != nil && !errors.Is(ev.Err, tt.wantErr) {
				t.Errorf("error = %v, want %v", ev.Err, tt.wantErr)
			}
			if got := Reason(ev.Err); got != tt.reason {
				t.Errorf("Reason() = %q, want %q", got, tt.reason)
			}
			rec.expectNone(t, 50*time.Millisecond)
		})
	}
}

func TestPushTransport_WrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	rec := newEventRecorder()
	conn := NewPushTransport(PushConfig{}).Open(srv.URL, OpenOptions{}, rec.handle)
	defer conn.Close()

	ev := rec.expect(t, EventError)
	if !strings.Contains(ev.Err.Error(), "content type") {
		t.Errorf("error = %v, want content type error", ev.Err)
	}
}

func TestPushTransport_LivenessTimeout(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := sseServer(t, "event: open\n\n", hold)

	rec := newEventRecorder()
	conn := NewPushTransport(PushConfig{}).Open(srv.URL, OpenOptions{IdleTimeout: 100 * time.Millisecond}, rec.handle)
	defer conn.Close()

	rec.expect(t, EventConnected)
	ev := rec.expect(t, EventError)
	if !errors.Is(ev.Err, ErrLivenessTimeout) {
		t.Errorf("error = %v, want %v", ev.Err, ErrLivenessTimeout)
	}
	if got := Reason(ev.Err); got != "liveness" {
		t.Errorf("Reason() = %q, want liveness", got)
	}
}

func TestPushTransport_CloseSuppressesEvents(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := sseServer(t, "event: open\n\n", hold)

	rec := newEventRecorder()
	conn := NewPushTransport(PushConfig{}).Open(srv.URL, OpenOptions{}, rec.handle)
	rec.expect(t, EventConnected)

	conn.Close()
	conn.Close() // idempotent
	rec.expectNone(t, 100*time.Millisecond)
}

func TestPushTransport_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := newEventRecorder()
	conn := NewPushTransport(PushConfig{}).Open(url, OpenOptions{}, rec.handle)
	defer conn.Close()

	ev := rec.expect(t, EventError)
	var te *TransportError
	if !errors.As(ev.Err, &te) || te.Op != "connect" {
		t.Errorf("error = %v, want connect TransportError", ev.Err)
	}
	if conn.ID() == "" {
		t.Error("ID() is empty")
	}
}

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		err  *TransportError
		want string
	}{
		{&TransportError{Transport: "push", Op: "read", Err: errors.New("boom")}, "push transport read: boom"},
		{&TransportError{Transport: "poll", Op: "connect", StatusCode: 503, Err: errors.New("down")}, "poll transport connect: HTTP 503: down"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
