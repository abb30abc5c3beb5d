// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/metrics"
	"github.com/tomtom215/locus/internal/models"
)

// ErrRelayClosed is returned by Serve after Close.
var ErrRelayClosed = errors.New("relay is closed")

// DefaultTopic is the topic points are published on.
const DefaultTopic = "locus.points"

// Publish outcomes, used as metric labels.
const (
	resultSuccess = "success"
	resultError   = "error"
	resultDropped = "dropped"
)

// RelayConfig configures a Relay.
type RelayConfig struct {
	Topic     string
	QueueSize int

	// FailureThreshold consecutive publish failures open the breaker for
	// BreakerTimeout. While open, points are dropped.
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

// Relay publishes points from a bounded queue.
type Relay struct {
	pub   message.Publisher
	cfg   RelayConfig
	cb    *gobreaker.CircuitBreaker[struct{}]
	queue chan models.LocationPoint
	log   zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewRelay creates a relay over pub. The relay owns pub and closes it.
func NewRelay(pub message.Publisher, cfg RelayConfig) *Relay {
	cfg = cfg.withDefaults()
	name := "eventbus-" + cfg.Topic

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			switch to {
			case gobreaker.StateOpen:
				metrics.CircuitBreakerState.WithLabelValues(name).Set(2)
			case gobreaker.StateHalfOpen:
				metrics.CircuitBreakerState.WithLabelValues(name).Set(1)
			default:
				metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
			}
		},
	})

	return &Relay{
		pub:   pub,
		cfg:   cfg,
		cb:    cb,
		queue: make(chan models.LocationPoint, cfg.QueueSize),
		log:   logging.WithComponent("eventbus"),
		done:  make(chan struct{}),
	}
}

// Enqueue queues p for publishing without blocking. It reports false when
// the point was dropped.
func (r *Relay) Enqueue(p models.LocationPoint) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.queue <- p:
		return true
	default:
		metrics.RecordPublish(resultDropped)
		return false
	}
}

// Serve publishes queued points until ctx is canceled or Close is called.
// It implements suture.Service.
func (r *Relay) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return ErrRelayClosed
		case p := <-r.queue:
			if err := r.publish(p); err != nil {
				r.log.Debug().Err(err).Str("event", p.Key().String()).Msg("Point not relayed")
			}
		}
	}
}

func (r *Relay) String() string {
	return "eventbus-relay"
}

func (r *Relay) publish(p models.LocationPoint) error {
	msg, err := NewPointMessage(p)
	if err != nil {
		metrics.RecordPublish(resultError)
		return err
	}

	_, err = r.cb.Execute(func() (struct{}, error) {
		return struct{}{}, r.pub.Publish(r.cfg.Topic, msg)
	})
	switch {
	case err == nil:
		metrics.RecordPublish(resultSuccess)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordPublish(resultDropped)
	default:
		metrics.RecordPublish(resultError)
	}
	return err
}

// Close stops Serve and closes the publisher.
func (r *Relay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.pub.Close()
	})
	return err
}

// NewPointMessage encodes p as a Watermill message keyed by its event key.
func NewPointMessage(p models.LocationPoint) (*message.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal point: %w", err)
	}
	key := p.Key().String()
	msg := message.NewMessage(key, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, key)
	msg.Metadata.Set("device_id", p.DeviceID)
	msg.Metadata.Set("subject", p.SubjectKey())
	msg.Metadata.Set("server_timestamp", strconv.FormatInt(p.ServerTimestamp, 10))
	return msg, nil
}

// DecodePoint decodes a message produced by NewPointMessage.
func DecodePoint(msg *message.Message) (models.LocationPoint, error) {
	return models.ParsePoint(msg.Payload)
}
