// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package websocket pushes live tracking updates to map clients.

The Hub fans messages out to connected clients. It is fed by the binding:
every accepted point becomes a "point" message and every state change a
compact "state" message. A newly connected client first receives a full
"snapshot" so it can draw history without a separate request.

Message format (server to client):

	{"type": "snapshot", "data": {...binding state...}}
	{"type": "point",    "data": {...location point...}}
	{"type": "state",    "data": {"phase": "connected", ...}}
	{"type": "pong",     "data": null}

Clients may send:

	{"type": "ping"}
	{"type": "filter", "data": {"subjects": ["adar"]}}

A filter limits point messages to the named subjects; an empty list clears
it. State messages are always delivered.

Slow clients whose send buffer fills are disconnected rather than allowed to
stall the hub.
*/
package websocket
