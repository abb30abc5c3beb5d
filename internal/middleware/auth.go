// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package middleware

import (
	"context"
	"net/http"

	"github.com/tomtom215/locus/internal/credential"
	"github.com/tomtom215/locus/internal/logging"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenVerifier validates the bearer token on a request.
type TokenVerifier interface {
	FromRequest(r *http.Request) (*credential.Claims, error)
}

// Authenticate rejects requests without a valid bearer token. A nil
// verifier disables authentication.
//
// Browsers cannot set headers on a WebSocket handshake, so a token in the
// access_token query parameter is accepted as well.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := r.URL.Query().Get("access_token"); tok != "" && r.Header.Get("Authorization") == "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+tok)
			}

			claims, err := v.FromRequest(r)
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
				w.Header().Set("WWW-Authenticate", `Bearer realm="locus"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*credential.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*credential.Claims)
	return c, ok
}
