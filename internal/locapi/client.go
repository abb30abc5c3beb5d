// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package locapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/locus/internal/cache"
	"github.com/tomtom215/locus/internal/credential"
	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/metrics"
	"github.com/tomtom215/locus/internal/models"
)

const (
	endpointUsers     = "users.php"
	endpointLocations = "locations.php"

	// maxErrorBodySize limits how much of an error response is kept.
	maxErrorBodySize = 4 * 1024
	// maxBodySize guards against runaway responses.
	maxBodySize = 16 << 20

	defaultTimeout  = 10 * time.Second
	defaultUsersTTL = time.Minute
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://loc.example.com/api.
	BaseURL     string
	Credentials credential.Source
	Timeout     time.Duration

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// UsersCacheTTL is how long a Users result is reused.
	UsersCacheTTL time.Duration

	Breaker BreakerConfig

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client talks to the Location API. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	creds   credential.Source
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	users   *cache.TTL[[]models.TrackableUser]
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid location api base url %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	usersTTL := cfg.UsersCacheTTL
	if usersTTL <= 0 {
		usersTTL = defaultUsersTTL
	}

	return &Client{
		base:    base,
		http:    httpClient,
		creds:   cfg.Credentials,
		limiter: limiter,
		cb:      newBreaker("location-api", cfg.Breaker),
		users:   cache.NewTTL[[]models.TrackableUser](usersTTL),
	}, nil
}

// get performs a GET on endpoint and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, params)
	})
	recordBreakerResult(c.cb, err)
	metrics.RecordLocationAPIRequest(endpoint, statusLabel(err), time.Since(start))

	if err != nil {
		logging.Debug().Str("endpoint", endpoint).Err(err).Msg("Location API request failed")
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + endpoint
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if err := credential.Apply(ctx, c.creds, req); err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func statusLabel(err error) string {
	if err == nil {
		return "200"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.StatusCode)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "rejected"
	}
	return "error"
}
