// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package cursorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/metrics"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("cursor store is closed")

const (
	keyPrefix           = "cursor:"
	defaultTTL          = 7 * 24 * time.Hour
	defaultCloseTimeout = 10 * time.Second
	defaultGCInterval   = 30 * time.Minute
)

// Config configures the store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path     string
	InMemory bool

	SyncWrites bool

	// TTL expires cursors that have not been saved for this long.
	// Zero uses seven days; negative keeps cursors forever.
	TTL time.Duration

	CloseTimeout time.Duration

	// GCInterval is how often Serve reclaims value log space.
	GCInterval time.Duration
}

// Record is a stored cursor.
type Record struct {
	LastEventID string    `json:"last_event_id"`
	SavedAt     time.Time `json:"saved_at"`
}

// Store is a BadgerDB-backed cursor store. It is safe for concurrent use.
type Store struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("cursor store path is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = defaultGCInterval
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	// cursors are tiny; keep the footprint small
	opts.MemTableSize = 8 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("ttl", cfg.TTL).
		Msg("Cursor store opened")
	return &Store{db: db, cfg: cfg}, nil
}

// LoadCursor returns the stored event id for key, or "" when none is stored.
func (s *Store) LoadCursor(ctx context.Context, key string) (string, error) {
	rec, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	return rec.LastEventID, nil
}

// Get returns the full record for key.
func (s *Store) Get(ctx context.Context, key string) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}
	defer s.mu.RUnlock()

	var rec Record
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	metrics.RecordCursorOperation("load", err)
	if err != nil {
		return Record{}, false, fmt.Errorf("load cursor %q: %w", key, err)
	}
	return rec, found, nil
}

// SaveCursor stores id as the cursor for key.
func (s *Store) SaveCursor(ctx context.Context, key, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	data, err := json.Marshal(Record{LastEventID: id, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+key), data)
		if s.cfg.TTL > 0 {
			e = e.WithTTL(s.cfg.TTL)
		}
		return txn.SetEntry(e)
	})
	metrics.RecordCursorOperation("save", err)
	if err != nil {
		return fmt.Errorf("save cursor %q: %w", key, err)
	}
	return nil
}

// Delete removes the cursor for key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	metrics.RecordCursorOperation("delete", err)
	if err != nil {
		return fmt.Errorf("delete cursor %q: %w", key, err)
	}
	return nil
}

// Keys lists the stored cursor keys.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	return keys, nil
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (s *Store) RunGC() error {
	if err := s.check(context.Background()); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	if s.cfg.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Serve runs periodic value log GC until ctx is canceled. It implements
// suture.Service.
func (s *Store) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				logging.Warn().Err(err).Msg("Cursor store GC failed")
			}
		}
	}
}

func (s *Store) String() string {
	return "cursor-store"
}

// Close closes the database, giving up after the configured timeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Cursor store closed")
		return nil
	case <-time.After(s.cfg.CloseTimeout):
		logging.Warn().Dur("timeout", s.cfg.CloseTimeout).Msg("Cursor store close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", s.cfg.CloseTimeout)
	}
}

// check holds the read lock on success; callers release it.
func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	return nil
}
