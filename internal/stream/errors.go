// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package stream

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedPayload marks a point frame that could not be decoded.
	// It is logged and counted, never delivered to the handler.
	ErrMalformedPayload = errors.New("malformed point payload")

	// ErrStreamClosed is reported when the server ends the stream cleanly.
	ErrStreamClosed = errors.New("stream closed by server")

	// ErrLivenessTimeout is reported when nothing arrives within the idle timeout.
	ErrLivenessTimeout = errors.New("no stream activity within liveness timeout")

	// ErrCursorExpired is reported when the server no longer holds history
	// back to the requested resume cursor.
	ErrCursorExpired = errors.New("resume cursor no longer available")
)

// TransportError describes a connection-level failure.
type TransportError struct {
	Transport  string // "push" or "poll"
	Op         string // "connect", "read", "poll", "auth"
	StatusCode int    // HTTP status when the server answered, else 0
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s transport %s: HTTP %d: %v", e.Transport, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transport %s: %v", e.Transport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// statusError maps a non-200 response to a TransportError.
func statusError(transport string, code int, body string) *TransportError {
	var err error
	switch code {
	case http.StatusGone:
		err = ErrCursorExpired
	default:
		if body == "" {
			body = http.StatusText(code)
		}
		err = fmt.Errorf("unexpected response: %s", body)
	}
	return &TransportError{Transport: transport, Op: "connect", StatusCode: code, Err: err}
}

// Reason classifies err for metrics labels.
func Reason(err error) string {
	var te *TransportError
	switch {
	case errors.Is(err, ErrCursorExpired):
		return "cursor_expired"
	case errors.Is(err, ErrLivenessTimeout):
		return "liveness"
	case errors.Is(err, ErrStreamClosed):
		return "closed"
	case errors.As(err, &te) && te.StatusCode != 0:
		return "status"
	case errors.As(err, &te) && te.Op == "auth":
		return "auth"
	default:
		return "network"
	}
}
