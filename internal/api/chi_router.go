// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/locus/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	verifier      middleware.TokenVerifier
	websocket     http.Handler
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithVerifier requires a valid bearer token on data endpoints.
func WithVerifier(v middleware.TokenVerifier) RouterOption {
	return func(r *Router) { r.verifier = v }
}

// WithWebSocket mounts the live feed at /api/v1/ws.
func WithWebSocket(h http.Handler) RouterOption {
	return func(r *Router) { r.websocket = h }
}

// NewRouter creates a Router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware, opts ...RouterOption) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	r := &Router{handler: handler, chiMiddleware: mw}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to ALL routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// JSON envelopes for unmatched routes; sub-routers inherit these
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Authenticate(router.verifier))

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())

			r.Get("/state", router.handler.State)
			r.Get("/subscription", router.handler.Subscription)
			r.Get("/latest", router.handler.Latest)
			r.Get("/latest/{subject}", router.handler.LatestSubject)
			r.Get("/history", router.handler.History)
			r.Get("/track/{subject}", router.handler.Track)
			r.Get("/users", router.handler.Users)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrite())

			r.Put("/subscription", router.handler.UpdateSubscription)
			r.Post("/resume", router.handler.Resume)
		})

		if router.websocket != nil {
			r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.websocket.ServeHTTP)
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
