// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

// Package eventloop provides the single-threaded scheduler that owns all
// streaming state.
//
// Transports do their I/O on background goroutines and Post closures here;
// the session manager, point buffer and binding only ever run inside those
// closures, so they need no locking of their own. Two implementations of
// Scheduler exist: Loop (a goroutine fed by a channel, used in production)
// and Manual (a queue drained explicitly, used by tests for deterministic
// ordering).
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/locus/internal/logging"
)

// ErrStopped is returned when work is posted to a loop that has shut down.
var ErrStopped = errors.New("event loop stopped")

// ErrAlreadyRunning is returned when Serve is called on a running loop.
var ErrAlreadyRunning = errors.New("event loop already running")

// DefaultQueueSize is the task buffer used when none is given.
const DefaultQueueSize = 256

// Scheduler serializes tasks. Post returns false if the task was rejected.
type Scheduler interface {
	Post(fn func()) bool
}

// Loop runs posted tasks one at a time on the goroutine calling Serve.
type Loop struct {
	name    string
	tasks   chan func()
	running atomic.Bool

	mu      sync.Mutex
	stopped chan struct{}
}

// New creates a loop. queueSize <= 0 uses DefaultQueueSize.
func New(name string, queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		name:    name,
		tasks:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and returns false once
// the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	stopped := l.done()
	select {
	case <-stopped:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-stopped:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	stopped := l.done()
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped:
		return ErrStopped
	}
}

// Serve processes tasks until ctx is canceled or Stop is called.
// It implements suture.Service.
//
// Shutdown is checked before every task so a canceled loop never starts new
// work. Tasks still queued at shutdown are discarded.
func (l *Loop) Serve(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	stopped := l.done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopped:
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopped:
			return nil
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// run executes one task; a panicking task is logged and the loop continues.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("component", "eventloop").
				Str("loop", l.name).
				Str("panic", fmt.Sprint(r)).
				Msg("Task panicked")
		}
	}()
	fn()
}

// Stop shuts the loop down. Safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.stopped:
	default:
		close(l.stopped)
	}
}

// Reopen makes a stopped loop accept work again so Serve can run once more.
// Tasks still queued from before the stop are discarded. It is a no-op on a
// loop that was never stopped.
func (l *Loop) Reopen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.stopped:
	default:
		return
	}
	for {
		select {
		case <-l.tasks:
		default:
			l.stopped = make(chan struct{})
			return
		}
	}
}

func (l *Loop) done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// Running reports whether Serve is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// String returns the loop name for supervisor logs.
func (l *Loop) String() string {
	return l.name
}
