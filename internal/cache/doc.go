// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package cache provides small in-memory structures for deduplication and
response caching.

# Components

  - KeySet: bounded set of recently seen keys with O(1) insert and LRU
    eviction. The point buffer uses it to drop events whose
    (device_id, server_timestamp) identity was already ingested, for example
    when a resume window overlaps points that were delivered before a
    disconnect.
  - TTL: generic time-to-live cache with lazy expiry. The Location API client
    uses it for the user directory and single-subject lookups.

# Thread Safety

Both types are safe for concurrent use. KeySet is usually confined to the
event loop, but the HTTP API reads its statistics from other goroutines.

# Usage Example

	seen := cache.NewKeySet(4096)
	if seen.Observe(point.Key().String()) {
	    return // duplicate
	}

	users := cache.NewTTL[[]models.TrackableUser](time.Minute)
	users.Set("all", list)
	if v, ok := users.Get("all"); ok {
	    ...
	}
*/
package cache
