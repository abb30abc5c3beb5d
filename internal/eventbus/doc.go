// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

/*
Package eventbus relays accepted location points to a message bus.

The Relay is fed from the binding's point observer, which runs on the
binding event loop and must never block. Enqueue therefore only pushes onto
a bounded queue and drops (and counts) points when the queue is full. Serve
drains the queue and publishes through a circuit breaker.

Each message is keyed by the point's dedupe identity (device@timestamp),
which becomes the Nats-Msg-Id header, so JetStream discards a point that is
relayed twice after a resume.

Production uses NATS via watermill-nats; tests use Watermill's gochannel.
*/
package eventbus
