// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists computed kernel matrices in BadgerDB.
//
// Entries are keyed by a BLAKE3 digest of the request that produced them:
// the dataset fingerprint, the instance list, depth, iterations and the
// normalization flag. Any change to the dataset changes its fingerprint and
// therefore misses the cache.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"
	"lukechampine.com/blake3"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/export"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/storage/badger"
)

// KeyPrefix prefixes every matrix key.
const KeyPrefix = "wl:matrix:"

var (
	// ErrCacheMiss is returned by Get when no entry exists.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCorruptEntry is returned when a stored entry cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// Request identifies a matrix computation.
type Request struct {
	Fingerprint string   `json:"fingerprint"`
	Instances   []string `json:"instances"`
	MaxDepth    int      `json:"max_depth"`
	Iterations  int      `json:"iterations"`
	Normalize   bool     `json:"normalize"`
}

// Key returns the store key of req.
func Key(req Request) string {
	// Struct field order makes the encoding canonical.
	payload, _ := json.Marshal(req)
	sum := blake3.Sum256(payload)
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// entry is the stored value.
type entry struct {
	Instances []string    `json:"instances"`
	Matrix    [][]float64 `json:"matrix"`
	CreatedAt time.Time   `json:"created_at"`
}

// Options configures Cache.
type Options struct {
	// TTL expires entries. 0 keeps them forever.
	TTL time.Duration
}

// Option is a functional option for configuring Cache.
type Option func(*Options)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.TTL = ttl
	}
}

// Cache stores kernel matrices.
//
// Thread Safety: safe for concurrent use.
type Cache struct {
	store   *badger.Store
	options Options
}

// New creates a Cache over store. The caller keeps ownership of store.
func New(store *badger.Store, opts ...Option) *Cache {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	return &Cache{store: store, options: options}
}

// Get returns the matrix stored for req.
//
// Outputs:
//
//	*mat.SymDense - The matrix.
//	[]string - Instance order of rows and columns.
//	error - ErrCacheMiss, ErrCorruptEntry or a storage error.
func (c *Cache) Get(ctx context.Context, req Request) (*mat.SymDense, []string, error) {
	key := Key(req)
	raw, err := c.store.Get(ctx, []byte(key))
	if errors.Is(err, badger.ErrNotFound) {
		return nil, nil, ErrCacheMiss
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", key, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}
	m, err := fromRows(e.Matrix)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}
	return m, e.Instances, nil
}

// Put stores m for req.
func (c *Cache) Put(ctx context.Context, req Request, instances []string, m *mat.SymDense) error {
	raw, err := json.Marshal(entry{
		Instances: instances,
		Matrix:    export.Rows(m),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	key := Key(req)
	if err := c.store.Set(ctx, []byte(key), raw, c.options.TTL); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	slog.Debug("cached kernel matrix", slog.String("key", key), slog.Int("instances", len(instances)))
	return nil
}

// Len returns the number of live entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, []byte(KeyPrefix))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Purge deletes every entry.
func (c *Cache) Purge() error {
	return c.store.DropPrefix([]byte(KeyPrefix))
}

func fromRows(rows [][]float64) (*mat.SymDense, error) {
	n := len(rows)
	if n == 0 {
		return nil, errors.New("empty matrix")
	}
	m := mat.NewSymDense(n, nil)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), n)
		}
		for j := i; j < n; j++ {
			m.SetSym(i, j, row[j])
		}
	}
	return m, nil
}
