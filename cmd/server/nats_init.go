// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package main

import (
	"fmt"

	"github.com/tomtom215/locus/internal/config"
	"github.com/tomtom215/locus/internal/eventbus"
	"github.com/tomtom215/locus/internal/logging"
)

// initRelay connects the Watermill NATS publisher and wraps it in a relay.
// It returns nil when NATS is disabled.
func initRelay(cfg *config.Config) (*eventbus.Relay, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS relay disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	natsCfg := eventbus.DefaultNATSConfig(cfg.NATS.URL)
	natsCfg.JetStream = cfg.NATS.JetStream
	natsCfg.TrackMsgID = cfg.NATS.JetStream
	natsCfg.MaxReconnects = cfg.NATS.MaxReconnects
	if cfg.NATS.ReconnectWait > 0 {
		natsCfg.ReconnectWait = cfg.NATS.ReconnectWait
	}

	pub, err := eventbus.NewNATSPublisher(natsCfg, logging.NewWatermillAdapter())
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	logging.Info().
		Str("url", cfg.NATS.URL).
		Bool("jetstream", cfg.NATS.JetStream).
		Msg("NATS publisher connected")

	return eventbus.NewRelay(pub, eventbus.RelayConfig{
		Topic:     cfg.NATS.Topic,
		QueueSize: cfg.NATS.QueueSize,
	}), nil
}
