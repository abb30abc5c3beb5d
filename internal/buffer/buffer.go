// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package buffer

import (
	"sort"

	"github.com/tomtom215/locus/internal/cache"
	"github.com/tomtom215/locus/internal/metrics"
	"github.com/tomtom215/locus/internal/models"
)

// DefaultCapacity is the history bound used when none is configured.
const DefaultCapacity = 1000

// seenFactor sizes the dedupe set relative to the history.
const seenFactor = 4

// Buffer holds the bounded, ordered point history and the latest point per
// subject. It is not safe for concurrent use; the owning event loop is the
// only writer and reader.
type Buffer struct {
	capacity int
	history  []models.LocationPoint // ascending server timestamp
	latest   map[string]models.LocationPoint
	seen     *cache.KeySet

	// shared is set once View hands out history; the backing array is then
	// copied before any retained element is overwritten.
	shared bool
}

// New creates a Buffer retaining at most capacity points.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		history:  make([]models.LocationPoint, 0, min(capacity, 1024)),
		latest:   make(map[string]models.LocationPoint),
		seen:     cache.NewKeySet(capacity * seenFactor),
	}
}

// Ingest adds p. It returns false for a point whose (device, server
// timestamp) key was already seen, leaving all state unchanged.
func (b *Buffer) Ingest(p models.LocationPoint) bool {
	key := p.Key()
	if b.seen.Observe(key.String()) || b.retained(key) {
		metrics.RecordIngest(false, 0, len(b.history), len(b.latest))
		return false
	}

	// insert after any equal timestamps so ties keep arrival order
	i := sort.Search(len(b.history), func(i int) bool {
		return b.history[i].ServerTimestamp > p.ServerTimestamp
	})
	if i == len(b.history) {
		b.history = append(b.history, p)
	} else {
		if b.shared {
			b.history = append(make([]models.LocationPoint, 0, len(b.history)+1), b.history...)
			b.shared = false
		}
		b.history = append(b.history, models.LocationPoint{})
		copy(b.history[i+1:], b.history[i:])
		b.history[i] = p
	}

	// evict by reslicing; append reallocates once the front is used up
	evicted := 0
	if over := len(b.history) - b.capacity; over > 0 {
		b.history = b.history[over:]
		evicted = over
	}

	subject := p.SubjectKey()
	if cur, ok := b.latest[subject]; !ok || p.ServerTimestamp >= cur.ServerTimestamp {
		b.latest[subject] = p
	}

	metrics.RecordIngest(true, evicted, len(b.history), len(b.latest))
	return true
}

// retained reports whether key is still in the history. The seen set is an
// LRU and may have dropped a key whose point is still held.
func (b *Buffer) retained(key models.EventKey) bool {
	i := sort.Search(len(b.history), func(i int) bool {
		return b.history[i].ServerTimestamp >= key.ServerTimestamp
	})
	for ; i < len(b.history) && b.history[i].ServerTimestamp == key.ServerTimestamp; i++ {
		if b.history[i].DeviceID == key.DeviceID {
			return true
		}
	}
	return false
}

// Latest returns the point with the greatest server timestamp seen for
// subject (username, else device id).
func (b *Buffer) Latest(subject string) (models.LocationPoint, bool) {
	p, ok := b.latest[subject]
	return p, ok
}

// LatestAll returns a copy of the latest-per-subject map.
func (b *Buffer) LatestAll() map[string]models.LocationPoint {
	out := make(map[string]models.LocationPoint, len(b.latest))
	for k, v := range b.latest {
		out[k] = v
	}
	return out
}

// History returns a copy of the retained points, oldest first.
func (b *Buffer) History() []models.LocationPoint {
	return append([]models.LocationPoint(nil), b.history...)
}

// View returns the retained points, oldest first, without copying. Later
// ingests never change the returned slice; callers must not modify it.
func (b *Buffer) View() []models.LocationPoint {
	b.shared = true
	return b.history[:len(b.history):len(b.history)]
}

// HistoryFor returns the retained points of one subject, oldest first.
func (b *Buffer) HistoryFor(subject string) []models.LocationPoint {
	var out []models.LocationPoint
	for _, p := range b.history {
		if p.SubjectKey() == subject {
			out = append(out, p)
		}
	}
	return out
}

// Subjects returns the known subject keys, sorted.
func (b *Buffer) Subjects() []string {
	out := make([]string, 0, len(b.latest))
	for k := range b.latest {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of retained points.
func (b *Buffer) Len() int {
	return len(b.history)
}

// Capacity returns the history bound.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Clear drops all points, subjects and seen keys.
func (b *Buffer) Clear() {
	b.history = make([]models.LocationPoint, 0, min(b.capacity, 1024))
	b.shared = false
	clear(b.latest)
	b.seen.Clear()
	metrics.SetBufferSize(0, 0)
}
