// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/locus/internal/binding"
	"github.com/tomtom215/locus/internal/buffer"
	"github.com/tomtom215/locus/internal/locapi"
	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/models"
	"github.com/tomtom215/locus/internal/session"
	"github.com/tomtom215/locus/internal/testinfra"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type fakeTracker struct {
	mu        sync.Mutex
	state     *binding.State
	updates   []binding.Descriptor
	updateErr error
	resumes   int
	resumeErr error
	track     buffer.TrackStats
	trackErr  error
}

func (f *fakeTracker) Snapshot() *binding.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTracker) Update(_ context.Context, d binding.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, d)
	return f.updateErr
}

func (f *fakeTracker) Resume(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return f.resumeErr
}

func (f *fakeTracker) Track(_ context.Context, subject string) (buffer.TrackStats, error) {
	st := f.track
	st.Subject = subject
	return st, f.trackErr
}

type fakeDirectory struct {
	users    []models.TrackableUser
	err      error
	gotUser  string
	gotLimit int
	gotFrom  *time.Time
}

func (f *fakeDirectory) Users(context.Context) ([]models.TrackableUser, error) {
	return f.users, f.err
}

func (f *fakeDirectory) History(_ context.Context, user string, limit int, from, _ *time.Time) (models.RouteHistory, error) {
	f.gotUser, f.gotLimit, f.gotFrom = user, limit, from
	if f.err != nil {
		return models.RouteHistory{}, f.err
	}
	return models.RouteHistory{Subject: user, Points: []models.LocationPoint{testinfra.UserPoint(user, "d1", 1000, 1, 1)}}, nil
}

func testState() *binding.State {
	h := []models.LocationPoint{
		testinfra.UserPoint("adar", "d1", 1000, 1, 1),
		testinfra.UserPoint("bob", "d2", 2000, 2, 2),
		testinfra.UserPoint("adar", "d1", 3000, 3, 3),
	}
	return &binding.State{
		Version:     4,
		Descriptor:  binding.Descriptor{Scope: session.AllSubjects(), Enabled: true}.Normalize(),
		Transport:   "push",
		Phase:       "connected",
		Connected:   true,
		LastEventID: "3000",
		History:     h,
		Latest:      map[string]models.LocationPoint{"adar": h[2], "bob": h[1]},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
		}
	}
	return rec, env
}

func newTestRouter(tr Tracker, dir Directory, opts ...RouterOption) http.Handler {
	return NewRouter(NewHandler(tr, dir, "test"), nil, opts...).SetupChi()
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*binding.State)
		wantStatus string
		wantReady  int
	}{
		{"connected", func(*binding.State) {}, "healthy", http.StatusOK},
		{"disabled on purpose", func(s *binding.State) {
			s.Descriptor.Enabled = false
			s.Connected = false
			s.Phase = "idle"
		}, "healthy", http.StatusOK},
		{"enabled but failed", func(s *binding.State) {
			s.Connected = false
			s.Phase = "failed"
			s.Error = "stream closed by server"
		}, "degraded", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testState()
			tt.mutate(st)
			h := newTestRouter(&fakeTracker{state: st}, nil)

			rec, env := do(t, h, http.MethodGet, "/api/v1/health", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("health status = %d, want 200", rec.Code)
			}
			var hs HealthStatus
			if err := json.Unmarshal(env.Data, &hs); err != nil {
				t.Fatalf("decode health: %v", err)
			}
			if hs.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", hs.Status, tt.wantStatus)
			}
			if hs.Version != "test" || hs.DirectoryUsed {
				t.Errorf("Version/DirectoryUsed = %q/%v", hs.Version, hs.DirectoryUsed)
			}

			if rec, _ := do(t, h, http.MethodGet, "/api/v1/health/ready", ""); rec.Code != tt.wantReady {
				t.Errorf("ready status = %d, want %d", rec.Code, tt.wantReady)
			}
			if rec, _ := do(t, h, http.MethodGet, "/api/v1/health/live", ""); rec.Code != http.StatusOK {
				t.Errorf("live status = %d, want 200", rec.Code)
			}
		})
	}
}

func TestState(t *testing.T) {
	h := newTestRouter(&fakeTracker{state: testState()}, nil)

	rec, env := do(t, h, http.MethodGet, "/api/v1/state", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d success = %v", rec.Code, env.Success)
	}
	var full struct {
		History []models.LocationPoint `json:"history"`
		Latest  map[string]models.LocationPoint `json:"latest"`
	}
	if err := json.Unmarshal(env.Data, &full); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(full.History) != 3 || len(full.Latest) != 2 {
		t.Errorf("history/latest = %d/%d, want 3/2", len(full.History), len(full.Latest))
	}
	if env.Meta == nil || env.Meta.RequestID == "" {
		t.Fatal("meta.request_id missing")
	}
	if rec.Header().Get("X-Request-ID") != env.Meta.RequestID {
		t.Errorf("X-Request-ID = %q, meta = %q", rec.Header().Get("X-Request-ID"), env.Meta.RequestID)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/state?summary=true", "")
	var sum binding.Summary
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Points != 3 || sum.Subjects != 2 || sum.LastEventID != "3000" || !sum.Enabled {
		t.Errorf("summary = %+v", sum)
	}
}

func TestLatest(t *testing.T) {
	h := newTestRouter(&fakeTracker{state: testState()}, nil)

	rec, env := do(t, h, http.MethodGet, "/api/v1/latest/adar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var p models.LocationPoint
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode point: %v", err)
	}
	if p.ServerTimestamp != 3000 {
		t.Errorf("ServerTimestamp = %d, want 3000", p.ServerTimestamp)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/latest/nobody", "")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown subject: status = %d error = %+v", rec.Code, env.Error)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/latest", "")
	if env.Meta == nil || env.Meta.Count == nil || *env.Meta.Count != 2 {
		t.Errorf("latest count meta = %+v", env.Meta)
	}
}

func TestHistory_Buffer(t *testing.T) {
	h := newTestRouter(&fakeTracker{state: testState()}, nil)

	tests := []struct {
		name   string
		query  string
		status int
		want   []int64
	}{
		{"all", "", http.StatusOK, []int64{1000, 2000, 3000}},
		{"subject", "?subject=adar", http.StatusOK, []int64{1000, 3000}},
		{"newest within limit", "?limit=2", http.StatusOK, []int64{2000, 3000}},
		{"subject and limit", "?subject=adar&limit=1", http.StatusOK, []int64{3000}},
		{"limit zero", "?limit=0", http.StatusBadRequest, nil},
		{"limit too big", "?limit=501", http.StatusBadRequest, nil},
		{"unknown source", "?source=disk", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, "/api/v1/history"+tt.query, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.want == nil {
				if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
					t.Errorf("error = %+v, want VALIDATION_FAILED", env.Error)
				}
				return
			}
			var pts []models.LocationPoint
			if err := json.Unmarshal(env.Data, &pts); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(pts) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(pts), len(tt.want))
			}
			for i, ts := range tt.want {
				if pts[i].ServerTimestamp != ts {
					t.Errorf("pts[%d] = %d, want %d", i, pts[i].ServerTimestamp, ts)
				}
			}
		})
	}
}

func TestHistory_API(t *testing.T) {
	t.Run("no directory", func(t *testing.T) {
		h := newTestRouter(&fakeTracker{state: testState()}, nil)
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/history?source=api&subject=adar", ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("forwards parameters", func(t *testing.T) {
		dir := &fakeDirectory{}
		h := newTestRouter(&fakeTracker{state: testState()}, dir)
		rec, env := do(t, h, http.MethodGet, "/api/v1/history?source=api&subject=adar&limit=50&from=2026-10-01T00:00:00Z", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		if dir.gotUser != "adar" || dir.gotLimit != 50 {
			t.Errorf("History(user, limit) = %q, %d", dir.gotUser, dir.gotLimit)
		}
		if dir.gotFrom == nil || !dir.gotFrom.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("from = %v", dir.gotFrom)
		}
		if env.Meta.Count == nil || *env.Meta.Count != 1 {
			t.Errorf("count = %v, want 1", env.Meta.Count)
		}
	})

	t.Run("requires subject", func(t *testing.T) {
		h := newTestRouter(&fakeTracker{state: testState()}, &fakeDirectory{})
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/history?source=api", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("bad time", func(t *testing.T) {
		h := newTestRouter(&fakeTracker{state: testState()}, &fakeDirectory{})
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/history?source=api&subject=adar&from=yesterday", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		h := newTestRouter(&fakeTracker{state: testState()}, &fakeDirectory{err: locapi.ErrNotFound})
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/history?source=api&subject=ghost", ""); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		h := newTestRouter(&fakeTracker{state: testState()}, &fakeDirectory{err: errors.New("boom")})
		rec, env := do(t, h, http.MethodGet, "/api/v1/history?source=api&subject=adar", "")
		if rec.Code != http.StatusBadGateway || env.Error.Code != ErrCodeExternalServiceFail {
			t.Errorf("status = %d error = %+v, want 502", rec.Code, env.Error)
		}
	})
}

func TestUpdateSubscription(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		status    int
		wantCalls int
	}{
		{"filtered", `{"users":["bob"," adar ","bob"],"heartbeat":30}`, http.StatusAccepted, 1},
		{"all", `{"all":true}`, http.StatusAccepted, 1},
		{"disable", `{"enabled":false}`, http.StatusAccepted, 1},
		{"all with users", `{"all":true,"users":["adar"]}`, http.StatusBadRequest, 0},
		{"empty scope", `{}`, http.StatusBadRequest, 0},
		{"blank user", `{"users":[" "]}`, http.StatusBadRequest, 0},
		{"limit too big", `{"all":true,"limit":501}`, http.StatusBadRequest, 0},
		{"unknown field", `{"all":true,"since":5}`, http.StatusBadRequest, 0},
		{"empty body", ``, http.StatusBadRequest, 0},
		{"not json", `all=true`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTracker{state: testState()}
			h := newTestRouter(tr, nil)

			rec, _ := do(t, h, http.MethodPut, "/api/v1/subscription", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if len(tr.updates) != tt.wantCalls {
				t.Errorf("Update calls = %d, want %d", len(tr.updates), tt.wantCalls)
			}
		})
	}
}

func TestUpdateSubscription_Normalized(t *testing.T) {
	tr := &fakeTracker{state: testState()}
	h := newTestRouter(tr, nil)

	do(t, h, http.MethodPut, "/api/v1/subscription", `{"users":["bob"," adar ","bob"],"heartbeat":30}`)
	if len(tr.updates) != 1 {
		t.Fatalf("Update calls = %d, want 1", len(tr.updates))
	}
	got := tr.updates[0]
	want := binding.Descriptor{Scope: session.Filtered([]string{"adar", "bob"}, nil), HeartbeatSeconds: 30, Enabled: true}
	if !got.Equal(want) {
		t.Errorf("descriptor = %+v, want %+v", got, want)
	}
	if got.Limit != session.DefaultMaxPointsPerCycle {
		t.Errorf("Limit = %d, want default %d", got.Limit, session.DefaultMaxPointsPerCycle)
	}
}

func TestUpdateSubscription_BindingError(t *testing.T) {
	tr := &fakeTracker{state: testState(), updateErr: context.DeadlineExceeded}
	h := newTestRouter(tr, nil)
	if rec, _ := do(t, h, http.MethodPut, "/api/v1/subscription", `{"all":true}`); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestResume(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusAccepted},
		{"disabled", binding.ErrDisabled, http.StatusConflict},
		{"other", errors.New("loop stopped"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTracker{state: testState(), resumeErr: tt.err}
			h := newTestRouter(tr, nil)
			if rec, _ := do(t, h, http.MethodPost, "/api/v1/resume", ""); rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if tr.resumes != 1 {
				t.Errorf("Resume calls = %d, want 1", tr.resumes)
			}
		})
	}
}

func TestTrack(t *testing.T) {
	tr := &fakeTracker{state: testState(), track: buffer.TrackStats{Points: 2, Fixes: 2, DistanceMeters: 314}}
	h := newTestRouter(tr, nil)

	rec, env := do(t, h, http.MethodGet, "/api/v1/track/adar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st buffer.TrackStats
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Subject != "adar" || st.DistanceMeters != 314 {
		t.Errorf("track = %+v", st)
	}

	tr.track = buffer.TrackStats{}
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/track/nobody", ""); rec.Code != http.StatusNotFound {
		t.Errorf("empty track status = %d, want 404", rec.Code)
	}

	tr.trackErr = context.Canceled
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/track/adar", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("stopped binding status = %d, want 503", rec.Code)
	}
}

func TestUsers(t *testing.T) {
	t.Run("no directory", func(t *testing.T) {
		h := newTestRouter(&fakeTracker{state: testState()}, nil)
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/users", ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("list", func(t *testing.T) {
		dir := &fakeDirectory{users: []models.TrackableUser{{ID: "1", Username: "adar"}, {ID: "2", Username: "bob"}}}
		h := newTestRouter(&fakeTracker{state: testState()}, dir)
		rec, env := do(t, h, http.MethodGet, "/api/v1/users", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if env.Meta.Count == nil || *env.Meta.Count != 2 {
			t.Errorf("count = %v, want 2", env.Meta.Count)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		h := newTestRouter(&fakeTracker{state: testState()}, &fakeDirectory{err: &locapi.APIError{Endpoint: "users.php", StatusCode: 500}})
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/users", ""); rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})
}

func TestBufferHistory(t *testing.T) {
	all := testState().History
	if got := bufferHistory(all, "", 10); len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
	if got := bufferHistory(all, "bob", 10); len(got) != 1 || got[0].ServerTimestamp != 2000 {
		t.Errorf("bob = %+v", got)
	}
	if got := bufferHistory(nil, "", 10); len(got) != 0 {
		t.Errorf("empty = %+v", got)
	}
}
