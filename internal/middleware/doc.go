// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package middleware provides HTTP middleware for the local API.

Key Components:

  - RequestID: UUID request IDs in the X-Request-ID header and logging context
  - PrometheusMetrics: request count and latency by route pattern
  - Authenticate: bearer token check against a credential.Verifier

All middleware has the chi signature func(http.Handler) http.Handler:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Authenticate(verifier))

Metrics are labeled with the chi route pattern (/api/v1/latest/{subject}),
not the raw path, so subject names never become label values.
*/
package middleware
