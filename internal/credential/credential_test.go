// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package credential

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

func signedWithExpiry(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return tok
}

func TestHolder_Token(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		if _, err := NewHolder("").Token(ctx); !errors.Is(err, ErrNoCredential) {
			t.Errorf("Token() error = %v, want ErrNoCredential", err)
		}
	})

	t.Run("opaque token", func(t *testing.T) {
		h := NewHolder("  abc123  ")
		tok, err := h.Token(ctx)
		if err != nil || tok != "abc123" {
			t.Errorf("Token() = (%q, %v), want (abc123, nil)", tok, err)
		}
		if _, ok := h.ExpiresAt(); ok {
			t.Error("ExpiresAt() ok = true for opaque token")
		}
	})

	t.Run("jwt not yet expired", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		h := NewHolder(signedWithExpiry(t, exp))
		if _, err := h.Token(ctx); err != nil {
			t.Errorf("Token() error = %v", err)
		}
		got, ok := h.ExpiresAt()
		if !ok || !got.Equal(exp) {
			t.Errorf("ExpiresAt() = (%v, %v), want (%v, true)", got, ok, exp)
		}
	})

	t.Run("jwt expired", func(t *testing.T) {
		h := NewHolder(signedWithExpiry(t, time.Now().Add(-time.Minute)))
		if _, err := h.Token(ctx); !errors.Is(err, ErrExpired) {
			t.Errorf("Token() error = %v, want ErrExpired", err)
		}
	})

	t.Run("rotation", func(t *testing.T) {
		h := NewHolder(signedWithExpiry(t, time.Now().Add(-time.Minute)))
		h.Set("fresh")
		if tok, err := h.Token(ctx); err != nil || tok != "fresh" {
			t.Errorf("Token() = (%q, %v), want (fresh, nil)", tok, err)
		}
	})
}

func TestApply(t *testing.T) {
	req := httptest.NewRequest("GET", "/locations.php", nil)
	if err := Apply(context.Background(), NewHolder("tok"), req); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
	}
	if got := req.Header.Get("X-API-Token"); got != "tok" {
		t.Errorf("X-API-Token = %q, want tok", got)
	}

	if err := Apply(context.Background(), NewHolder(""), httptest.NewRequest("GET", "/", nil)); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Apply() with empty holder = %v, want ErrNoCredential", err)
	}
}

func TestNewVerifier(t *testing.T) {
	if _, err := NewVerifier("short", time.Hour); err == nil {
		t.Error("NewVerifier() with short secret should fail")
	}
	if _, err := NewVerifier(testSecret, 0); err != nil {
		t.Errorf("NewVerifier() error = %v", err)
	}
}

func TestVerifier_IssueValidate(t *testing.T) {
	v, err := NewVerifier(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	token, err := v.Issue("adar")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.Username != "adar" {
		t.Errorf("Username = %q, want adar", claims.Username)
	}

	other, _ := NewVerifier("another_very_long_secret_key_for_testing_0000", time.Hour)
	if _, err := other.Validate(token); err == nil {
		t.Error("Validate() with wrong secret should fail")
	}
}

func TestVerifier_FromRequest(t *testing.T) {
	v, _ := NewVerifier(testSecret, time.Hour)
	token, _ := v.Issue("adar")

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"valid", "Bearer " + token, nil},
		{"missing", "", ErrMissingToken},
		{"wrong scheme", "Basic abc", ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/state", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, err := v.FromRequest(req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FromRequest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	if _, err := v.FromRequest(req); err == nil {
		t.Error("FromRequest() with garbage token should fail")
	}
}
