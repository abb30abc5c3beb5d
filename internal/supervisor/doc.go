// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package supervisor runs the long-lived Locus services under a suture v4 tree.

# Layout

	RootSupervisor ("locus")
	├── DataSupervisor ("data-layer")
	│   └── cursorstore.Store (value log GC, if CURSOR_STORE_ENABLED)
	├── StreamSupervisor ("stream-layer")
	│   └── binding.Binding
	├── MessagingSupervisor ("messaging-layer")
	│   ├── websocket.Hub (if WS_ENABLED)
	│   └── eventbus.Relay (if NATS_ENABLED)
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

Each layer counts failures on its own. A relay that cannot reach NATS is
restarted with backoff while the binding keeps streaming and the API keeps
answering from the last published state.

Every component above implements suture.Service directly (Serve plus
String); only the HTTP server needs the adapter in the services package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddStreamService(b)
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

Supervisor events (restarts, backoff, panics) are logged through
sutureslog, which takes the slog bridge from the logging package so they
land in the same zerolog stream as everything else.
*/
package supervisor
