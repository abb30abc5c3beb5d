// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package main

import (
	"context"

	"github.com/tomtom215/locus/internal/config"
	"github.com/tomtom215/locus/internal/credential"
	"github.com/tomtom215/locus/internal/locapi"
	"github.com/tomtom215/locus/internal/logging"
)

// watchCredentials re-reads the config file on change and swaps in a new
// Location API token. Other settings still need a restart.
func watchCredentials(holder *credential.Holder, client *locapi.Client) {
	path := config.ConfigFilePath()
	if path == "" {
		return
	}

	err := config.WatchConfigFile(path, func() {
		reloadToken(holder, client)
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch failed; token changes need a restart")
		return
	}
	logging.Info().Str("path", path).Msg("Watching config file for token changes")
}

func reloadToken(holder *credential.Holder, client *locapi.Client) {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Warn().Err(err).Msg("Ignoring invalid config file change")
		return
	}

	// an expired token reads as "", so a refreshed one always differs
	current, _ := holder.Token(context.Background())
	if cfg.LocationAPI.Token == current {
		return
	}

	exp := holder.Set(cfg.LocationAPI.Token)
	if client != nil {
		client.InvalidateUsers()
	}

	ev := logging.Info()
	if !exp.IsZero() {
		ev = ev.Time("expires_at", exp)
	}
	ev.Msg("Location API token reloaded")
}
