// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/locus/internal/binding"
	"github.com/tomtom215/locus/internal/buffer"
	"github.com/tomtom215/locus/internal/locapi"
	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/models"
	"github.com/tomtom215/locus/internal/session"
)

// Tracker is the binding surface the handlers use.
type Tracker interface {
	Snapshot() *binding.State
	Update(ctx context.Context, desc binding.Descriptor) error
	Resume(ctx context.Context) error
	Track(ctx context.Context, subject string) (buffer.TrackStats, error)
}

// Directory serves users and stored routes from the Location API.
type Directory interface {
	Users(ctx context.Context) ([]models.TrackableUser, error)
	History(ctx context.Context, user string, limit int, from, to *time.Time) (models.RouteHistory, error)
}

// Handler serves the local API.
type Handler struct {
	tracker   Tracker
	directory Directory
	startTime time.Time
	version   string
}

// NewHandler creates a Handler. directory may be nil when no Location API
// is configured.
func NewHandler(tracker Tracker, directory Directory, version string) *Handler {
	return &Handler{
		tracker:   tracker,
		directory: directory,
		startTime: time.Now(),
		version:   version,
	}
}

// State returns the current binding state. ?summary=true omits points.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	st := h.tracker.Snapshot()
	if r.URL.Query().Get("summary") == "true" {
		WriteSuccess(w, r, st.Summary())
		return
	}
	WriteSuccess(w, r, st)
}

// Subscription returns the active descriptor.
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.tracker.Snapshot().Descriptor)
}

// UpdateSubscription replaces the subscription. An unchanged subscription
// keeps the current connection and buffer.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	desc := req.Descriptor()
	if desc.Enabled {
		// reject before the binding tears down the current stream
		if err := desc.Subscription().Validate(); err != nil {
			rw.ValidationError(err.Error(), nil)
			return
		}
	}

	if err := h.tracker.Update(r.Context(), desc); err != nil {
		if errors.Is(err, session.ErrInvalidSubscription) {
			rw.ValidationError(err.Error(), nil)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Subscription update failed")
		rw.InternalError("Subscription update failed")
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("scope", sanitizeLogValue(desc.Scope.String())).
		Bool("enabled", desc.Enabled).
		Msg("Subscription updated")
	rw.Accepted(h.tracker.Snapshot().Summary())
}

// Resume reconnects from the last received event.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.tracker.Resume(r.Context()); err != nil {
		switch {
		case errors.Is(err, binding.ErrDisabled):
			rw.Conflict("Tracking is disabled")
		case errors.Is(err, session.ErrInvalidSubscription):
			rw.ValidationError(err.Error(), nil)
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("Resume failed")
			rw.InternalError("Resume failed")
		}
		return
	}
	rw.Accepted(h.tracker.Snapshot().Summary())
}

// Latest returns the newest point of every subject.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	latest := h.tracker.Snapshot().Latest
	NewResponseWriter(w, r).SuccessWithCount(latest, len(latest))
}

// LatestSubject returns the newest point of one subject.
func (h *Handler) LatestSubject(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	st := h.tracker.Snapshot()
	p, ok := st.LatestFor(subject)
	if !ok {
		NewResponseWriter(w, r).NotFound("No position for subject")
		return
	}
	WriteSuccess(w, r, p)
}

// History returns recent points, from the live buffer or the Location API.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	req := HistoryRequest{
		Subject: strings.TrimSpace(q.Get("subject")),
		Limit:   getIntParam(r, "limit", 100),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Source:  q.Get("source"),
	}
	if req.Source == "" {
		req.Source = SourceBuffer
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	if req.Source == SourceAPI {
		h.apiHistory(rw, r, req)
		return
	}

	points := bufferHistory(h.tracker.Snapshot().History, req.Subject, req.Limit)
	rw.SuccessWithCount(points, len(points))
}

func (h *Handler) apiHistory(rw *ResponseWriter, r *http.Request, req HistoryRequest) {
	if h.directory == nil {
		rw.ServiceUnavailable(ErrNoDirectory.Error())
		return
	}
	if req.Subject == "" {
		rw.BadRequest("subject is required for source=api")
		return
	}

	hist, err := h.directory.History(r.Context(), req.Subject, req.Limit, parseTimeParam(req.From), parseTimeParam(req.To))
	if err != nil {
		if errors.Is(err, locapi.ErrNotFound) {
			rw.NotFound("No history for subject")
			return
		}
		rw.ExternalServiceError("location-api", err)
		return
	}
	rw.SuccessWithCount(hist, len(hist.Points))
}

// bufferHistory returns the newest limit points of subject, oldest first.
// An empty subject selects every point.
func bufferHistory(all []models.LocationPoint, subject string, limit int) []models.LocationPoint {
	out := make([]models.LocationPoint, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if subject == "" || all[i].SubjectKey() == subject {
			out = append(out, all[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Track returns route statistics for one subject over the live buffer.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := chi.URLParam(r, "subject")

	st, err := h.tracker.Track(r.Context(), subject)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Track computation failed")
		rw.ServiceUnavailable("Binding is not running")
		return
	}
	if st.Points == 0 {
		rw.NotFound("No points for subject")
		return
	}
	WriteSuccess(w, r, st)
}

// Users lists trackable users from the Location API.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.directory == nil {
		rw.ServiceUnavailable(ErrNoDirectory.Error())
		return
	}

	users, err := h.directory.Users(r.Context())
	if err != nil {
		rw.ExternalServiceError("location-api", err)
		return
	}
	rw.SuccessWithCount(users, len(users))
}
