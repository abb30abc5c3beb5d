// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/locus/internal/buffer"
	"github.com/tomtom215/locus/internal/eventloop"
	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/metrics"
	"github.com/tomtom215/locus/internal/models"
	"github.com/tomtom215/locus/internal/session"
	"github.com/tomtom215/locus/internal/stream"
)

// ErrDisabled is returned by Resume while the descriptor is disabled.
var ErrDisabled = errors.New("tracking is disabled")

// Retry modes, also used as metric labels.
const (
	retryResume = "resume"
	retryFresh  = "fresh"
)

const (
	cursorSaveInterval = time.Second
	cursorIOTimeout    = 2 * time.Second
)

// CursorStore persists resume cursors across restarts.
type CursorStore interface {
	LoadCursor(ctx context.Context, key string) (string, error)
	SaveCursor(ctx context.Context, key, id string) error
}

// ReconnectConfig controls automatic resumption after a stream failure.
type ReconnectConfig struct {
	Enabled         bool
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// MaxElapsedTime stops retrying after this long without a successful
	// connection. Zero retries forever.
	MaxElapsedTime time.Duration
}

// Config configures a Binding.
type Config struct {
	Session         session.Config
	Initial         Descriptor
	HistoryCapacity int
	Reconnect       ReconnectConfig

	// ResumeOnStart resumes the first connection from the stored cursor.
	ResumeOnStart bool

	// QueueSize is the event loop buffer. Zero uses the loop default.
	QueueSize int
}

// Option customizes a Binding.
type Option func(*Binding)

// WithCursorStore persists the last event id in cs.
func WithCursorStore(cs CursorStore) Option {
	return func(b *Binding) { b.cursors = cs }
}

// Binding ties one Session Manager and Buffer to a consumer. It owns the
// event loop they run on; every exported method is safe for concurrent use.
type Binding struct {
	cfg     Config
	loop    *eventloop.Loop
	mgr     *session.Manager
	buf     *buffer.Buffer
	cursors CursorStore
	log     zerolog.Logger

	// loop-owned
	desc        Descriptor
	applied     bool
	restarting  bool
	lastErr     error
	gap         bool
	reconnects  int
	version     uint64
	handlers    session.Handlers
	bo          *backoff.ExponentialBackOff
	retryGen    uint64
	retryTimer  *time.Timer
	savedCursor string
	lastSave    time.Time

	serving  atomic.Bool
	snapshot atomic.Pointer[State]

	obsMu    sync.Mutex
	obsNext  int
	stateObs map[int]func(*State)
	pointObs map[int]func(models.LocationPoint)
}

// New creates a Binding over transport. Nothing connects until Serve runs.
func New(cfg Config, transport stream.Transport, opts ...Option) *Binding {
	loop := eventloop.New("binding", cfg.QueueSize)
	b := &Binding{
		cfg:      cfg,
		loop:     loop,
		mgr:      session.NewManager(cfg.Session, transport, loop),
		buf:      buffer.New(cfg.HistoryCapacity),
		log:      logging.WithComponent("binding"),
		desc:     cfg.Initial.Normalize(),
		stateObs: make(map[int]func(*State)),
		pointObs: make(map[int]func(models.LocationPoint)),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.bo = backoff.NewExponentialBackOff()
	if cfg.Reconnect.InitialInterval > 0 {
		b.bo.InitialInterval = cfg.Reconnect.InitialInterval
	}
	if cfg.Reconnect.MaxInterval > 0 {
		b.bo.MaxInterval = cfg.Reconnect.MaxInterval
	}
	b.bo.MaxElapsedTime = cfg.Reconnect.MaxElapsedTime
	b.bo.Reset()

	b.handlers = session.Handlers{
		OnConnected: b.onConnected,
		OnPoint:     b.onPoint,
		OnError:     b.onError,
	}
	b.publish()
	return b
}

// Serve runs the binding until ctx is canceled. It implements
// suture.Service. The stream is disconnected on every exit path; a later
// Serve resumes the current descriptor from the last event id.
func (b *Binding) Serve(ctx context.Context) error {
	if !b.serving.CompareAndSwap(false, true) {
		return eventloop.ErrAlreadyRunning
	}
	defer b.serving.Store(false)
	defer b.shutdown()

	// a restart reconnects the current descriptor from where it stopped;
	// loop state is written before Reopen lets tasks in
	b.restarting = b.applied
	b.applied = false
	b.loop.Reopen()

	if !b.loop.Post(b.start) {
		return eventloop.ErrStopped
	}
	return b.loop.Serve(ctx)
}

// String names the service for supervisor logs.
func (b *Binding) String() string {
	return "binding"
}

// Update applies a new descriptor. An unchanged descriptor is a no-op; any
// change disconnects, clears the buffer and connects fresh.
func (b *Binding) Update(ctx context.Context, desc Descriptor) error {
	errc := make(chan error, 1)
	if err := b.loop.Do(ctx, func() { errc <- b.apply(desc, false, false) }); err != nil {
		return err
	}
	return <-errc
}

// Resume reconnects from the last event id, or connects fresh without one.
func (b *Binding) Resume(ctx context.Context) error {
	errc := make(chan error, 1)
	if err := b.loop.Do(ctx, func() { errc <- b.resume() }); err != nil {
		return err
	}
	return <-errc
}

// Track computes route statistics for subject from the buffer.
func (b *Binding) Track(ctx context.Context, subject string) (buffer.TrackStats, error) {
	var st buffer.TrackStats
	if err := b.loop.Do(ctx, func() { st = b.buf.Track(subject) }); err != nil {
		return buffer.TrackStats{}, err
	}
	return st, nil
}

// Sync waits until every event posted before the call has been handled.
func (b *Binding) Sync(ctx context.Context) error {
	return b.loop.Do(ctx, func() {})
}

// Snapshot returns the current state. The result must not be modified.
func (b *Binding) Snapshot() *State {
	return b.snapshot.Load()
}

// Subscribe calls fn with every new State until the returned function is
// called. fn runs on the event loop and must not block.
func (b *Binding) Subscribe(fn func(*State)) (unsubscribe func()) {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	id := b.obsNext
	b.obsNext++
	b.stateObs[id] = fn
	return func() {
		b.obsMu.Lock()
		defer b.obsMu.Unlock()
		delete(b.stateObs, id)
	}
}

// OnPoint calls fn for every newly accepted point. fn runs on the event
// loop and must not block.
func (b *Binding) OnPoint(fn func(models.LocationPoint)) (unsubscribe func()) {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	id := b.obsNext
	b.obsNext++
	b.pointObs[id] = fn
	return func() {
		b.obsMu.Lock()
		defer b.obsMu.Unlock()
		delete(b.pointObs, id)
	}
}

func (b *Binding) start() {
	if b.applied {
		return
	}
	desc := b.desc
	resume := b.restarting && desc.Enabled && b.mgr.LastEventID() != ""
	if !resume && b.cfg.ResumeOnStart && b.cursors != nil && desc.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), cursorIOTimeout)
		id, err := b.cursors.LoadCursor(ctx, desc.cursorKey())
		cancel()
		switch {
		case err != nil:
			b.log.Warn().Err(err).Msg("Failed to load resume cursor, connecting fresh")
		case id != "":
			b.mgr.SeedCursor(id)
			b.savedCursor = id
			resume = true
			b.log.Info().Str("last_event_id", id).Msg("Resuming from stored cursor")
		}
	}
	if err := b.apply(desc, resume, true); err != nil {
		b.log.Error().Err(err).Msg("Initial subscription rejected")
	}
}

func (b *Binding) shutdown() {
	// the loop has exited; this goroutine now owns binding state
	b.cancelRetry()
	b.saveCursor(true)
	b.mgr.Disconnect()
	b.publish()
	b.loop.Stop()
	b.log.Info().Msg("Binding stopped")
}

func (b *Binding) apply(desc Descriptor, resume, force bool) error {
	desc = desc.Normalize()
	if !force && b.applied && desc.Equal(b.desc) {
		return nil
	}
	b.applied = true

	b.cancelRetry()
	b.saveCursor(true)
	b.mgr.Disconnect()
	if !resume {
		// the cursor belongs to the previous subscription
		b.buf.Clear()
		b.mgr.SeedCursor("")
		b.savedCursor = ""
	}
	b.desc = desc
	b.gap = false
	b.lastErr = nil
	b.bo.Reset()

	if !desc.Enabled {
		b.log.Info().Msg("Tracking disabled")
		b.publish()
		return nil
	}

	var err error
	if resume {
		err = b.mgr.Resume(desc.Subscription(), b.handlers)
	} else {
		err = b.mgr.Connect(desc.Subscription(), b.handlers)
	}
	if err != nil {
		b.lastErr = err
	}
	b.publish()
	return err
}

func (b *Binding) resume() error {
	if !b.desc.Enabled {
		return ErrDisabled
	}
	b.cancelRetry()
	err := b.mgr.Resume(b.desc.Subscription(), b.handlers)
	if err != nil {
		b.lastErr = err
	}
	b.publish()
	return err
}

func (b *Binding) onConnected() {
	b.lastErr = nil
	b.bo.Reset()
	b.publish()
}

func (b *Binding) onPoint(p models.LocationPoint) {
	if !b.buf.Ingest(p) {
		return
	}

	b.obsMu.Lock()
	observers := make([]func(models.LocationPoint), 0, len(b.pointObs))
	for _, fn := range b.pointObs {
		observers = append(observers, fn)
	}
	b.obsMu.Unlock()
	for _, fn := range observers {
		fn(p)
	}

	b.saveCursor(false)
	b.publish()
}

func (b *Binding) onError(err error) {
	b.lastErr = err
	b.saveCursor(true)

	if errors.Is(err, stream.ErrCursorExpired) {
		// history before the cursor is gone; start over and say so
		b.gap = true
		metrics.BindingGaps.Inc()
		b.mgr.SeedCursor("")
		b.log.Warn().Msg("Resume cursor expired, reconnecting fresh with a gap")
		b.scheduleRetry(retryFresh, 0)
		b.publish()
		return
	}

	if b.cfg.Reconnect.Enabled {
		if d := b.bo.NextBackOff(); d != backoff.Stop {
			b.scheduleRetry(retryResume, d)
		} else {
			b.log.Error().Err(err).Msg("Giving up on stream reconnection")
		}
	}
	b.publish()
}

func (b *Binding) scheduleRetry(mode string, delay time.Duration) {
	b.cancelRetry()
	gen := b.retryGen
	b.log.Debug().Str("mode", mode).Dur("delay", delay).Msg("Scheduling reconnect")
	b.retryTimer = time.AfterFunc(delay, func() {
		b.loop.Post(func() {
			if gen == b.retryGen {
				b.reconnect(mode)
			}
		})
	})
}

func (b *Binding) cancelRetry() {
	b.retryGen++
	if b.retryTimer != nil {
		b.retryTimer.Stop()
		b.retryTimer = nil
	}
}

func (b *Binding) reconnect(mode string) {
	b.retryTimer = nil
	if !b.desc.Enabled {
		return
	}
	b.reconnects++
	metrics.BindingReconnects.WithLabelValues(mode).Inc()

	var err error
	if mode == retryFresh {
		err = b.mgr.Connect(b.desc.Subscription(), b.handlers)
	} else {
		err = b.mgr.Resume(b.desc.Subscription(), b.handlers)
	}
	if err != nil {
		b.lastErr = fmt.Errorf("reconnect: %w", err)
	}
	b.publish()
}

func (b *Binding) saveCursor(force bool) {
	if b.cursors == nil || !b.desc.Enabled {
		return
	}
	id := b.mgr.LastEventID()
	if id == "" || id == b.savedCursor {
		return
	}
	if !force && time.Since(b.lastSave) < cursorSaveInterval {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cursorIOTimeout)
	defer cancel()
	if err := b.cursors.SaveCursor(ctx, b.desc.cursorKey(), id); err != nil {
		b.log.Warn().Err(err).Msg("Failed to save resume cursor")
		return
	}
	b.savedCursor = id
	b.lastSave = time.Now()
}

func (b *Binding) publish() {
	b.version++
	st := b.mgr.State()
	s := &State{
		Version:     b.version,
		Descriptor:  b.desc,
		Transport:   b.mgr.TransportName(),
		Phase:       st.Phase.String(),
		Connected:   st.Phase == session.PhaseConnected,
		LastEventID: b.mgr.LastEventID(),
		History:     b.buf.View(),
		Latest:      b.buf.LatestAll(),
		Err:         b.lastErr,
		Gap:         b.gap,
		Reconnects:  b.reconnects,
		UpdatedAt:   time.Now().UTC(),
	}
	if b.lastErr != nil {
		s.Error = b.lastErr.Error()
	}
	b.snapshot.Store(s)

	b.obsMu.Lock()
	observers := make([]func(*State), 0, len(b.stateObs))
	for _, fn := range b.stateObs {
		observers = append(observers, fn)
	}
	b.obsMu.Unlock()
	for _, fn := range observers {
		fn(s)
	}
}
