// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps BadgerDB as the embedded key-value store behind the
// kernel result cache.
//
// A Store owns one database handle and, for on-disk databases, a background
// value-log garbage collector. Keys and values are opaque bytes; entries may
// carry a TTL.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrNotFound is returned by Get for a missing or expired key.
	ErrNotFound = errors.New("key not found")

	// ErrPathRequired is returned by Open for an on-disk store without Path.
	ErrPathRequired = errors.New("path is required for persistent store")

	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("store is closed")
)

// Config configures a Store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps all data in RAM. Intended for tests and ephemeral
	// servers.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines. Nil silences them.
	Logger *slog.Logger

	// GCInterval is the period of value-log GC. 0 disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a rewrite, in (0, 1).
	GCDiscardRatio float64
}

// DefaultConfig returns the on-disk defaults. Path must still be set.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration with no disk I/O and no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter satisfies badger.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error("badger: " + fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn("badger: " + fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug("badger: " + fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug("badger: " + fmt.Sprintf(format, args...))
}

// Store is a BadgerDB handle with lifecycle management.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db       *badger.DB
	gc       *gcLoop
	path     string
	inMemory bool

	closeOnce sync.Once
	closeErr  error
}

// Open opens the database described by cfg.
//
// Description:
//
//	Creates Path if needed, opens BadgerDB and, for on-disk stores with a
//	positive GCInterval, starts the value-log GC loop.
//
// Outputs:
//
//	*Store - Call Close when done.
//	error - ErrPathRequired, or the BadgerDB open error.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, ErrPathRequired
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &Store{db: db, path: cfg.Path, inMemory: cfg.InMemory}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.gc = startGC(db, cfg.GCInterval, ratio, cfg.Logger)
	}
	return s, nil
}

// OpenInMemory opens an in-memory Store.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Get returns a copy of the value stored under key.
//
// Outputs:
//
//	[]byte - The value.
//	error - ErrNotFound, ErrClosed, ctx.Err() or a read error.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key. A positive ttl expires the entry.
func (s *Store) Set(ctx context.Context, key, value []byte, ttl time.Duration) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Keys returns every live key starting with prefix, in key order.
func (s *Store) Keys(ctx context.Context, prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// DropPrefix deletes every key starting with prefix.
func (s *Store) DropPrefix(prefix []byte) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return s.db.DropPrefix(prefix)
}

// Path returns the database directory, empty for in-memory stores.
func (s *Store) Path() string { return s.path }

// InMemory reports whether the store keeps no data on disk.
func (s *Store) InMemory() bool { return s.inMemory }

// Close stops GC and closes the database. Subsequent calls return the
// result of the first.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.gc != nil {
			s.gc.stop()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *Store) view(ctx context.Context, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrClosed
	}
	return s.db.Update(fn)
}
