// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package api serves the local HTTP API over the consumer binding.

Routes (chi):

	GET  /api/v1/health              stream health (live, ready)
	GET  /api/v1/state               full state; ?summary=true omits points
	GET  /api/v1/subscription        active descriptor
	PUT  /api/v1/subscription        replace the subscription
	POST /api/v1/resume              reconnect from the last event id
	GET  /api/v1/latest[/{subject}]  newest point per subject
	GET  /api/v1/history             buffered points, or ?source=api for stored routes
	GET  /api/v1/track/{subject}     distance and duration over buffered points
	GET  /api/v1/users               trackable users from the Location API
	GET  /api/v1/ws                  WebSocket live feed
	GET  /metrics                    Prometheus

Every JSON response uses the APIResponse envelope:

	{"success":true,"data":{...},"meta":{"timestamp":"...","request_id":"..."}}

Middleware: request IDs, CORS (go-chi/cors), per-IP rate limits
(go-chi/httprate), Prometheus metrics by route pattern and optional bearer
authentication against a credential.Verifier. Health endpoints and
/metrics are never authenticated.

A subscription update that is rejected by validation leaves the current
stream untouched.
*/
package api
