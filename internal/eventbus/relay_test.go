// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/locus/internal/metrics"
	"github.com/tomtom215/locus/internal/testinfra"
)

func runRelay(t *testing.T, r *Relay) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRelay_PublishesPoints(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	msgs, err := pubsub.Subscribe(context.Background(), DefaultTopic)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	r := NewRelay(pubsub, RelayConfig{})
	defer r.Close()
	runRelay(t, r)

	p := testinfra.UserPoint("adar", "d1", 1005, 52.5, 13.4)
	if !r.Enqueue(p) {
		t.Fatal("Enqueue() = false, want true")
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		if msg.UUID != "d1@1005" {
			t.Errorf("UUID = %q, want d1@1005", msg.UUID)
		}
		if got := msg.Metadata.Get(natsgo.MsgIdHdr); got != "d1@1005" {
			t.Errorf("Nats-Msg-Id = %q, want d1@1005", got)
		}
		if got := msg.Metadata.Get("subject"); got != "adar" {
			t.Errorf("subject = %q, want adar", got)
		}
		decoded, err := DecodePoint(msg)
		if err != nil {
			t.Fatalf("DecodePoint() error = %v", err)
		}
		if decoded.Key() != p.Key() || *decoded.Latitude != 52.5 {
			t.Errorf("DecodePoint() = %+v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

// failingPublisher fails every publish.
type failingPublisher struct {
	mu    sync.Mutex
	calls int
}

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("nats unavailable")
}

func (f *failingPublisher) Close() error { return nil }

func (f *failingPublisher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRelay_BreakerOpens(t *testing.T) {
	pub := &failingPublisher{}
	r := NewRelay(pub, RelayConfig{FailureThreshold: 2, BreakerTimeout: time.Hour})

	for ts := int64(1); ts <= 4; ts++ {
		_ = r.publish(testinfra.Point("d1", ts, 0, 0))
	}
	if pub.Calls() != 2 {
		t.Errorf("publisher calls = %d, want 2 before the breaker opened", pub.Calls())
	}
}

func TestRelay_DropsWhenFull(t *testing.T) {
	pub := &failingPublisher{}
	r := NewRelay(pub, RelayConfig{QueueSize: 1})

	dropped := testutil.ToFloat64(metrics.EventBusPublished.WithLabelValues("dropped"))
	if !r.Enqueue(testinfra.Point("d1", 1, 0, 0)) {
		t.Fatal("first Enqueue() = false")
	}
	if r.Enqueue(testinfra.Point("d1", 2, 0, 0)) {
		t.Error("Enqueue() on full queue = true, want false")
	}
	if got := testutil.ToFloat64(metrics.EventBusPublished.WithLabelValues("dropped")) - dropped; got != 1 {
		t.Errorf("dropped delta = %v, want 1", got)
	}
}

func TestRelay_Close(t *testing.T) {
	r := NewRelay(&failingPublisher{}, RelayConfig{})
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if r.Enqueue(testinfra.Point("d1", 1, 0, 0)) {
		t.Error("Enqueue() after Close = true")
	}
	if err := r.Serve(context.Background()); !errors.Is(err, ErrRelayClosed) {
		t.Errorf("Serve() after Close error = %v, want %v", err, ErrRelayClosed)
	}
}

func TestNewNATSPublisher_RequiresURL(t *testing.T) {
	if _, err := NewNATSPublisher(NATSConfig{}, nil); err == nil {
		t.Error("NewNATSPublisher() without url should fail")
	}
}
