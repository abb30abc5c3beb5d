// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package locapi is a client for the Location API REST endpoints.

It covers three needs the stream alone does not:

  - Users lists trackable users for subscription pickers (cached).
  - Latest and History query a single user's reports directly.
  - Poll implements stream.PointSource so the poll transport can stand in
    for the push stream when no event stream endpoint is available.

Endpoints:

	GET {base}/users.php?with_location_data=true
	    {"status":"success","data":{"users":[...],"count":N}}
	GET {base}/locations.php?user=&limit=&offset=&date_from=&date_to=
	    {"success":true,"data":[...]}   (newest first)

Every request carries both the Authorization bearer header and X-API-Token,
is paced by a token bucket limiter and runs through a circuit breaker.
Client errors (4xx) do not count as breaker failures.

Location rows carry no device identifier. A row without device_id is given
"user:<user_id>" so it still has a stable dedupe identity.
*/
package locapi
