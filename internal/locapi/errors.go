// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package locapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnexpectedResponse is returned when a 200 response does not carry
	// the documented envelope.
	ErrUnexpectedResponse = errors.New("unexpected Location API response")

	// ErrNotFound is returned by Latest when a user has no reports.
	ErrNotFound = errors.New("no location data")
)

// APIError is a non-200 Location API response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("location api %s: HTTP %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("location api %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// HTTPStatus exposes the status code to the poll transport.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// isClientError reports errors the server blamed on the request. They do
// not indicate an unhealthy API.
func isClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != http.StatusTooManyRequests
}
