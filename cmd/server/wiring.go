// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package main

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/locus/internal/api"
	"github.com/tomtom215/locus/internal/binding"
	"github.com/tomtom215/locus/internal/config"
	"github.com/tomtom215/locus/internal/credential"
	"github.com/tomtom215/locus/internal/cursorstore"
	"github.com/tomtom215/locus/internal/locapi"
	"github.com/tomtom215/locus/internal/session"
	"github.com/tomtom215/locus/internal/stream"
)

// newLocationClient returns nil when no Location API is configured.
func newLocationClient(cfg *config.Config, creds credential.Source) (*locapi.Client, error) {
	if cfg.LocationAPI.BaseURL == "" {
		return nil, nil
	}
	return locapi.New(locapi.Config{
		BaseURL:           cfg.LocationAPI.BaseURL,
		Credentials:       creds,
		Timeout:           cfg.LocationAPI.Timeout,
		RequestsPerSecond: cfg.LocationAPI.RequestsPerSecond,
		Burst:             cfg.LocationAPI.Burst,
		UsersCacheTTL:     cfg.LocationAPI.UsersCacheTTL,
		Breaker: locapi.BreakerConfig{
			Timeout:      cfg.LocationAPI.BreakerTimeout,
			FailureRatio: cfg.LocationAPI.BreakerFailureRatio,
		},
	})
}

// newTransport picks the push (SSE) or poll transport for STREAM_MODE.
func newTransport(cfg *config.Config, creds credential.Source, client *locapi.Client) (stream.Transport, error) {
	switch cfg.Stream.Mode {
	case config.ModePush:
		return stream.NewPushTransport(stream.PushConfig{
			// no client Timeout; liveness is enforced per connection
			Client:       &http.Client{},
			Credentials:  creds,
			MaxLineBytes: cfg.Stream.MaxLineBytes,
		}), nil
	case config.ModePoll:
		if client == nil {
			return nil, fmt.Errorf("poll mode requires LOCATION_API_URL")
		}
		return stream.NewPollTransport(stream.PollConfig{
			Source:   client,
			Interval: cfg.Stream.PollInterval,
		}), nil
	default:
		return nil, fmt.Errorf("unknown stream mode %q", cfg.Stream.Mode)
	}
}

// openCursorStore returns nil when cursor persistence is disabled.
func openCursorStore(cfg *config.Config) (*cursorstore.Store, error) {
	if !cfg.CursorStore.Enabled {
		return nil, nil
	}
	return cursorstore.Open(cursorstore.Config{
		Path:         cfg.CursorStore.Path,
		InMemory:     cfg.CursorStore.InMemory,
		SyncWrites:   cfg.CursorStore.SyncWrites,
		TTL:          cfg.CursorStore.TTL,
		CloseTimeout: cfg.Server.ShutdownTimeout,
		GCInterval:   cfg.CursorStore.GCInterval,
	})
}

// initialDescriptor is the subscription the binding starts with.
func initialDescriptor(cfg *config.Config) binding.Descriptor {
	scope := session.AllSubjects()
	if !cfg.Stream.All {
		scope = session.Filtered(cfg.Stream.Users, cfg.Stream.Devices)
	}
	return binding.Descriptor{
		Scope:            scope,
		HeartbeatSeconds: cfg.Stream.Heartbeat,
		Limit:            cfg.Stream.Limit,
		Enabled:          cfg.Stream.Enabled,
	}.Normalize()
}

func bindingConfig(cfg *config.Config) binding.Config {
	streamURL := cfg.Stream.URL
	if cfg.Stream.Mode == config.ModePoll {
		// the poll transport reads only the subscription query from the URL
		streamURL = cfg.LocationAPI.BaseURL
	}
	return binding.Config{
		Session: session.Config{
			StreamURL:          streamURL,
			LivenessMultiplier: cfg.Stream.LivenessMultiplier,
		},
		Initial:         initialDescriptor(cfg),
		HistoryCapacity: cfg.Stream.HistoryCapacity,
		Reconnect: binding.ReconnectConfig{
			Enabled:         cfg.Reconnect.Enabled,
			InitialInterval: cfg.Reconnect.InitialInterval,
			MaxInterval:     cfg.Reconnect.MaxInterval,
			MaxElapsedTime:  cfg.Reconnect.MaxElapsedTime,
		},
		ResumeOnStart: cfg.Stream.ResumeOnStart,
	}
}

func chiMiddlewareConfig(cfg *config.Config) *api.ChiMiddlewareConfig {
	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mw.RateLimitRequests = cfg.Security.RateLimitReqs
	mw.RateLimitWindow = cfg.Security.RateLimitWindow
	mw.RateLimitDisabled = cfg.Security.RateLimitDisabled
	return mw
}
