// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/locus/internal/api"
	"github.com/tomtom215/locus/internal/binding"
	"github.com/tomtom215/locus/internal/config"
	"github.com/tomtom215/locus/internal/credential"
	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/models"
	"github.com/tomtom215/locus/internal/supervisor"
	"github.com/tomtom215/locus/internal/supervisor/services"
	ws "github.com/tomtom215/locus/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("mode", cfg.Stream.Mode).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Starting Locus with supervisor tree")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	holder := credential.NewHolder(cfg.LocationAPI.Token)

	client, err := newLocationClient(cfg, holder)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create Location API client")
	}

	transport, err := newTransport(cfg, holder, client)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream transport")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === STATE ===

	var opts []binding.Option
	store, err := openCursorStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open cursor store")
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing cursor store")
			}
		}()
		opts = append(opts, binding.WithCursorStore(store))
		tree.AddDataService(store)
		logging.Info().Str("path", cfg.CursorStore.Path).Bool("in_memory", cfg.CursorStore.InMemory).Msg("Cursor store opened")
	} else {
		logging.Info().Msg("Cursor store disabled - streams start from live after restart")
	}

	b := binding.New(bindingConfig(cfg), transport, opts...)
	tree.AddStreamService(b)

	// === MESSAGING ===

	var hub *ws.Hub
	if cfg.WebSocket.Enabled {
		hub = ws.NewHub()
		b.OnPoint(hub.BroadcastPoint)
		b.Subscribe(func(s *binding.State) { hub.BroadcastState(s.Summary()) })
		tree.AddMessagingService(hub)
		logging.Info().Msg("WebSocket hub added to supervisor tree")
	}

	relay, err := initRelay(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS relay")
	}
	if relay != nil {
		defer func() {
			if err := relay.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing NATS relay")
			}
		}()
		b.OnPoint(func(p models.LocationPoint) { relay.Enqueue(p) })
		tree.AddMessagingService(relay)
		logging.Info().Str("topic", cfg.NATS.Topic).Msg("NATS relay added to supervisor tree")
	}

	// === API ===

	var routerOpts []api.RouterOption
	if cfg.Security.AuthMode == config.AuthModeJWT {
		verifier, err := credential.NewVerifier(cfg.Security.JWTSecret, cfg.Security.SessionTimeout)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT verifier")
		}
		routerOpts = append(routerOpts, api.WithVerifier(verifier))
		logging.Info().Msg("JWT authentication enabled")
	} else {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); the subscription can be changed by anyone who can reach the API")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*) while authentication is enabled; set explicit origins in production")
	}

	if hub != nil {
		snapshot := func() interface{} { return b.Snapshot() }
		routerOpts = append(routerOpts, api.WithWebSocket(ws.NewHandler(hub, snapshot, cfg.WebSocket.AllowedOrigins)))
	}

	// a nil *locapi.Client must not become a non-nil Directory
	var directory api.Directory
	if client != nil {
		directory = client
	}

	router := api.NewRouter(
		api.NewHandler(b, directory, version),
		api.NewChiMiddleware(chiMiddlewareConfig(cfg)),
		routerOpts...,
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	watchCredentials(holder, client)

	// === RUN ===

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within shutdown timeout")
		}
	}
	logging.Info().Msg("Locus stopped")
}
