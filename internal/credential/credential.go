// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

// Package credential holds the bearer credential presented to the Location
// API and its event stream, and verifies tokens presented to the local API.
//
// Tokens are issued elsewhere. When the upstream token happens to be a JWT
// its exp claim is read (without verifying the signature, which only the
// issuer can do) so an expired token fails fast instead of producing a
// stream of 401 responses.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredential is returned when no token has been configured.
	ErrNoCredential = errors.New("no credential configured")

	// ErrExpired is returned when the configured token's exp has passed.
	ErrExpired = errors.New("credential expired")
)

// Source supplies the bearer token for outgoing requests.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Holder is a thread-safe, replaceable Source.
type Holder struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewHolder creates a Holder, optionally seeded with a token.
func NewHolder(token string) *Holder {
	h := &Holder{now: time.Now}
	if token != "" {
		h.Set(token)
	}
	return h
}

// Set replaces the token. Returns the JWT expiry when one could be read.
func (h *Holder) Set(token string) time.Time {
	token = strings.TrimSpace(token)
	exp := expiryOf(token)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	h.expiresAt = exp
	return exp
}

// Token implements Source.
func (h *Holder) Token(_ context.Context) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.token == "" {
		return "", ErrNoCredential
	}
	if !h.expiresAt.IsZero() && !h.now().Before(h.expiresAt) {
		return "", fmt.Errorf("%w at %s", ErrExpired, h.expiresAt.Format(time.RFC3339))
	}
	return h.token, nil
}

// ExpiresAt returns the token expiry, if the token was a JWT with exp.
func (h *Holder) ExpiresAt() (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.expiresAt, !h.expiresAt.IsZero()
}

// expiryOf reads exp from a JWT without verifying it. Opaque tokens yield zero.
func expiryOf(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Apply sets the Location API authentication headers on req.
// The API accepts either header; both are sent.
func Apply(ctx context.Context, src Source, req *http.Request) error {
	if src == nil {
		return nil
	}
	token, err := src.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-Token", token)
	return nil
}
