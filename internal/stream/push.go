// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/locus/internal/credential"
	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/metrics"
	"github.com/tomtom215/locus/internal/models"
)

// TransportPush is the Name of PushTransport.
const TransportPush = "push"

// SSE event names sent by the location server.
const (
	sseEventPoint     = "point"
	sseEventOpen      = "open"
	sseEventConnected = "connected"
)

// maxErrorBody caps how much of a non-200 body ends up in an error message.
const maxErrorBody = 512

// PushConfig configures a PushTransport.
type PushConfig struct {
	// Client performs the GET. It must not carry a Timeout; the stream is
	// long-lived and liveness is enforced per connection instead.
	Client *http.Client

	// Credentials supplies the bearer token. Nil sends no Authorization header.
	Credentials credential.Source

	// MaxLineBytes bounds a single SSE line. Zero uses DefaultMaxFrameBytes.
	MaxLineBytes int
}

// PushTransport speaks text/event-stream over HTTP.
type PushTransport struct {
	client       *http.Client
	creds        credential.Source
	maxLineBytes int
}

// NewPushTransport creates a push transport.
func NewPushTransport(cfg PushConfig) *PushTransport {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &PushTransport{
		client:       client,
		creds:        cfg.Credentials,
		maxLineBytes: cfg.MaxLineBytes,
	}
}

// Name implements Transport.
func (t *PushTransport) Name() string { return TransportPush }

// Open implements Transport.
func (t *PushTransport) Open(rawURL string, opts OpenOptions, h Handler) Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &pushConn{
		id:      logging.GenerateCorrelationID(),
		t:       t,
		url:     rawURL,
		opts:    opts,
		handler: h,
		cancel:  cancel,
	}
	c.log = logging.WithConnection(c.id).With().Str("transport", TransportPush).Logger()
	c.lastID.Store(opts.LastEventID)
	go c.run(ctx)
	return c
}

type pushConn struct {
	id      string
	t       *PushTransport
	url     string
	opts    OpenOptions
	handler Handler
	cancel  context.CancelFunc
	log     zerolog.Logger

	lastID   atomic.Value // string
	closed   atomic.Bool
	timedOut atomic.Bool
	errOnce  sync.Once
}

func (c *pushConn) ID() string { return c.id }

func (c *pushConn) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
	}
}

func (c *pushConn) LastEventID() string {
	s, _ := c.lastID.Load().(string)
	return s
}

func (c *pushConn) deliver(ev Event) {
	if c.closed.Load() {
		return
	}
	metrics.RecordStreamEvent(TransportPush, ev.Kind.String())
	c.handler(ev)
}

func (c *pushConn) fail(err error) {
	c.errOnce.Do(func() {
		if c.closed.Load() {
			return
		}
		metrics.RecordStreamError(TransportPush, Reason(err))
		c.log.Debug().Err(err).Msg("Stream connection failed")
		c.deliver(Event{Kind: EventError, Err: err})
	})
}

func (c *pushConn) run(ctx context.Context) {
	defer c.cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		c.fail(&TransportError{Transport: TransportPush, Op: "connect", Err: err})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.opts.LastEventID != "" {
		req.Header.Set("Last-Event-ID", c.opts.LastEventID)
	}
	if c.t.creds != nil {
		if err := credential.Apply(ctx, c.t.creds, req); err != nil {
			c.fail(&TransportError{Transport: TransportPush, Op: "auth", Err: err})
			return
		}
	}

	var watchdog *time.Timer
	if c.opts.IdleTimeout > 0 {
		watchdog = time.AfterFunc(c.opts.IdleTimeout, func() {
			c.timedOut.Store(true)
			c.cancel()
		})
		defer watchdog.Stop()
	}

	c.log.Debug().Str("url", c.url).Bool("resume", c.opts.LastEventID != "").Msg("Opening event stream")

	resp, err := c.t.client.Do(req)
	if err != nil {
		c.fail(c.readError("connect", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.fail(statusError(TransportPush, resp.StatusCode, strings.TrimSpace(string(body))))
		return
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "text/event-stream" {
			c.fail(&TransportError{
				Transport:  TransportPush,
				Op:         "connect",
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("unexpected content type %q", ct),
			})
			return
		}
	}

	c.deliver(Event{Kind: EventConnected})

	var body io.Reader = resp.Body
	if watchdog != nil {
		body = &activityReader{r: resp.Body, onRead: func() { watchdog.Reset(c.opts.IdleTimeout) }}
	}

	dec := NewDecoder(body, c.t.maxLineBytes)
	for {
		frame, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) && !c.timedOut.Load() {
				c.fail(ErrStreamClosed)
				return
			}
			c.fail(c.readError("read", err))
			return
		}
		if c.closed.Load() {
			return
		}
		c.dispatch(&frame)
	}
}

// readError converts an I/O failure, accounting for watchdog cancellation.
func (c *pushConn) readError(op string, err error) error {
	if c.timedOut.Load() {
		return ErrLivenessTimeout
	}
	return &TransportError{Transport: TransportPush, Op: op, Err: err}
}

func (c *pushConn) dispatch(f *Frame) {
	if f.IsKeepAlive() {
		c.deliver(Event{Kind: EventKeepAlive})
		return
	}

	switch f.Event {
	case sseEventPoint:
		p, err := models.ParsePoint(f.Data)
		if err != nil {
			metrics.RecordMalformedPayload(TransportPush)
			c.log.Warn().
				Err(fmt.Errorf("%w: %w", ErrMalformedPayload, err)).
				Int("bytes", len(f.Data)).
				Msg("Dropping malformed point")
			return
		}
		id := f.ID
		if !f.HasID || id == "" {
			id = strconv.FormatInt(p.ServerTimestamp, 10)
		}
		c.lastID.Store(id)
		metrics.RecordPointTimestamp(p.ServerTimestamp)
		c.deliver(Event{Kind: EventPoint, ID: id, Point: p})
	case sseEventOpen, sseEventConnected:
		c.log.Debug().Str("event", f.Event).Msg("Stream acknowledged")
	default:
		if f.Event != "" {
			c.log.Debug().Str("event", f.Event).Msg("Ignoring unknown stream event")
		}
	}
}

// activityReader calls onRead after every read that returned bytes.
type activityReader struct {
	r      io.Reader
	onRead func()
}

func (a *activityReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n > 0 {
		a.onRead()
	}
	return n, err
}
