// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package stream

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/metrics"
	"github.com/tomtom215/locus/internal/models"
)

// TransportPoll is the Name of PollTransport.
const TransportPoll = "poll"

const (
	defaultPollInterval = 10 * time.Second
	minPollInterval     = time.Second
)

// PointSource answers one poll for the points matching q. Since, when set,
// is an exclusive lower bound; the source may return points at or below it
// and in any order.
type PointSource interface {
	Poll(ctx context.Context, q Query) ([]models.LocationPoint, error)
}

// StatusCoder is implemented by source errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// PollConfig configures a PollTransport.
type PollConfig struct {
	Source PointSource

	// Interval overrides the query heartbeat as the delay between polls.
	Interval time.Duration
}

// PollTransport delivers points by polling a PointSource. It emulates the
// push contract: EventConnected after the first successful poll, one
// EventPoint per new point in server timestamp order and EventKeepAlive for
// empty polls.
type PollTransport struct {
	source   PointSource
	interval time.Duration
}

// NewPollTransport creates a poll transport.
func NewPollTransport(cfg PollConfig) *PollTransport {
	return &PollTransport{source: cfg.Source, interval: cfg.Interval}
}

// Name implements Transport.
func (t *PollTransport) Name() string { return TransportPoll }

// Open implements Transport.
func (t *PollTransport) Open(rawURL string, opts OpenOptions, h Handler) Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &pollConn{
		id:      logging.GenerateCorrelationID(),
		t:       t,
		opts:    opts,
		handler: h,
		cancel:  cancel,
	}
	c.log = logging.WithConnection(c.id).With().Str("transport", TransportPoll).Logger()
	c.lastID.Store(opts.LastEventID)

	q, err := parseURLQuery(rawURL)
	go func() {
		defer cancel()
		if err != nil {
			c.fail(&TransportError{Transport: TransportPoll, Op: "connect", Err: err})
			return
		}
		c.run(ctx, q)
	}()
	return c
}

func parseURLQuery(rawURL string) (Query, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Query{}, err
	}
	return ParseQuery(u.Query())
}

type pollConn struct {
	id      string
	t       *PollTransport
	opts    OpenOptions
	handler Handler
	cancel  context.CancelFunc
	log     zerolog.Logger

	lastID  atomic.Value // string
	closed  atomic.Bool
	errOnce sync.Once
}

func (c *pollConn) ID() string { return c.id }

func (c *pollConn) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
	}
}

func (c *pollConn) LastEventID() string {
	s, _ := c.lastID.Load().(string)
	return s
}

func (c *pollConn) deliver(ev Event) {
	if c.closed.Load() {
		return
	}
	metrics.RecordStreamEvent(TransportPoll, ev.Kind.String())
	c.handler(ev)
}

func (c *pollConn) fail(err error) {
	c.errOnce.Do(func() {
		if c.closed.Load() {
			return
		}
		metrics.RecordStreamError(TransportPoll, Reason(err))
		c.log.Debug().Err(err).Msg("Poll connection failed")
		c.deliver(Event{Kind: EventError, Err: err})
	})
}

func (c *pollConn) interval(q Query) time.Duration {
	d := c.t.interval
	if d <= 0 {
		d = q.Heartbeat
	}
	if d <= 0 {
		d = defaultPollInterval
	}
	if d < minPollInterval {
		d = minPollInterval
	}
	return d
}

func (c *pollConn) run(ctx context.Context, q Query) {
	if q.Since == nil && c.opts.LastEventID != "" {
		if ts, err := strconv.ParseInt(c.opts.LastEventID, 10, 64); err == nil {
			q.Since = &ts
		}
	}

	// devices already delivered at the current cursor millisecond; an
	// inherited cursor was fully processed before, so it excludes them all
	boundary := make(map[string]struct{})
	inherited := q.Since != nil
	connected := false
	wait := c.interval(q)

	for {
		points, err := c.poll(ctx, q)
		if err != nil {
			if ctx.Err() != nil && c.closed.Load() {
				return
			}
			c.fail(c.pollError(err))
			return
		}

		if !connected {
			connected = true
			c.deliver(Event{Kind: EventConnected})
		}

		sort.SliceStable(points, func(i, j int) bool {
			return points[i].ServerTimestamp < points[j].ServerTimestamp
		})

		delivered := 0
		for _, p := range points {
			if c.closed.Load() {
				return
			}
			if q.Since != nil {
				if p.ServerTimestamp < *q.Since {
					continue
				}
				if p.ServerTimestamp == *q.Since {
					if _, seen := boundary[p.DeviceID]; seen || inherited {
						continue
					}
				}
			}
			if q.Since == nil || p.ServerTimestamp > *q.Since {
				ts := p.ServerTimestamp
				q.Since = &ts
				clear(boundary)
				inherited = false
			}
			boundary[p.DeviceID] = struct{}{}

			id := strconv.FormatInt(p.ServerTimestamp, 10)
			c.lastID.Store(id)
			metrics.RecordPointTimestamp(p.ServerTimestamp)
			c.deliver(Event{Kind: EventPoint, ID: id, Point: p})
			delivered++
		}

		if delivered == 0 {
			c.deliver(Event{Kind: EventKeepAlive})
		}

		// a full page means the source may be holding more
		if q.Limit > 0 && len(points) >= q.Limit && delivered > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (c *pollConn) poll(ctx context.Context, q Query) ([]models.LocationPoint, error) {
	if c.t.source == nil {
		return nil, errors.New("no point source configured")
	}
	return c.t.source.Poll(ctx, q)
}

func (c *pollConn) pollError(err error) error {
	var sc StatusCoder
	if errors.As(err, &sc) {
		te := statusError(TransportPoll, sc.HTTPStatus(), err.Error())
		te.Op = "poll"
		return te
	}
	return &TransportError{Transport: TransportPoll, Op: "poll", Err: err}
}
