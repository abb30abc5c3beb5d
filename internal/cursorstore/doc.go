// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package cursorstore persists stream resume cursors in BadgerDB.

A cursor is the last event id a binding received for one subscription scope.
Storing it lets a restarted process resume the stream where it left off
instead of reloading the whole window. Cursors older than the configured
TTL expire on their own, since the server evicts old history anyway and a
stale cursor would only produce a cursor-expired reconnect.

Usage:

	store, err := cursorstore.Open(cursorstore.Config{Path: "/data/cursors"})
	if err != nil {
	    return err
	}
	defer store.Close()

	b := binding.New(cfg, transport, binding.WithCursorStore(store))
*/
package cursorstore
