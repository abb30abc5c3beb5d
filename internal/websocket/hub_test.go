// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/testinfra"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func createTestClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %q", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RegisterAndCount(t *testing.T) {
	hub := startHub(t)
	a, b := createTestClient(hub, 8), createTestClient(hub, 8)
	hub.Register <- a
	hub.Register <- b
	hub.Unregister <- a

	// unregister of an unknown client is harmless
	hub.Unregister <- createTestClient(hub, 1)
	hub.BroadcastState(map[string]string{"phase": "idle"})
	receive(t, b)

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
	if _, ok := <-a.send; ok {
		t.Error("unregistered client channel still open")
	}
}

func TestHub_BroadcastPointAndState(t *testing.T) {
	hub := startHub(t)
	c := createTestClient(hub, 8)
	hub.Register <- c

	p := testinfra.UserPoint("adar", "d1", 1005, 1, 2)
	hub.BroadcastPoint(p)
	hub.BroadcastState(map[string]any{"phase": "connected"})

	msg := receive(t, c)
	if msg.Type != MessageTypePoint || msg.subject != "adar" {
		t.Errorf("first message = %q/%q, want point/adar", msg.Type, msg.subject)
	}
	if msg := receive(t, c); msg.Type != MessageTypeState {
		t.Errorf("second message = %q, want state", msg.Type)
	}
}

func TestHub_SubjectFilter(t *testing.T) {
	hub := startHub(t)
	all := createTestClient(hub, 8)
	onlyBob := createTestClient(hub, 8)
	onlyBob.SetFilter([]string{" bob ", ""})
	hub.Register <- all
	hub.Register <- onlyBob

	hub.BroadcastPoint(testinfra.UserPoint("adar", "d1", 1, 0, 0))
	hub.BroadcastState("s")

	if msg := receive(t, all); msg.Type != MessageTypePoint {
		t.Errorf("unfiltered client got %q, want point", msg.Type)
	}
	// state messages bypass the filter; the point does not reach onlyBob
	if msg := receive(t, onlyBob); msg.Type != MessageTypeState {
		t.Errorf("filtered client got %q, want state", msg.Type)
	}

	onlyBob.SetFilter(nil)
	if !onlyBob.wants("adar") {
		t.Error("cleared filter still excludes subjects")
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := startHub(t)
	slow := createTestClient(hub, 1)
	fast := createTestClient(hub, 8)
	hub.Register <- slow
	hub.Register <- fast

	hub.BroadcastState(1)
	hub.BroadcastState(2)
	hub.BroadcastState(3)
	for i := 0; i < 3; i++ {
		receive(t, fast)
	}

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1 after slow client dropped", got)
	}
}

func TestHub_ServeClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	c := createTestClient(hub, 1)
	hub.Register <- c
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel still open after shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestShutdownReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := shutdownReason(ctx); got != ShutdownReasonContextCanceled {
		t.Errorf("shutdownReason(canceled) = %q", got)
	}

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if got := shutdownReason(ctx); got != ShutdownReasonContextDeadline {
		t.Errorf("shutdownReason(deadline) = %q", got)
	}
}

func TestMarshalMessage(t *testing.T) {
	data, err := MarshalMessage(Message{Type: MessageTypePong, subject: "hidden"})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	if got := string(data); got != `{"type":"pong","data":null}` {
		t.Errorf("MarshalMessage() = %s", got)
	}
}
