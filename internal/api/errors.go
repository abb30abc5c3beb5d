// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package api

import "errors"

// ErrNoDirectory indicates the Location API client is not configured.
var ErrNoDirectory = errors.New("location api is not configured")
