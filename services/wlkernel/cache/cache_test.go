// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/export"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/storage/badger"
)

func newCache(t *testing.T, opts ...Option) (*Cache, *badger.Store) {
	t.Helper()
	store, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, opts...), store
}

func sampleRequest() Request {
	return Request{
		Fingerprint: strings.Repeat("ab", 32),
		Instances:   []string{"ex:A1", "ex:B1"},
		MaxDepth:    4,
		Iterations:  1,
	}
}

func TestKey(t *testing.T) {
	req := sampleRequest()
	key := Key(req)

	assert.True(t, strings.HasPrefix(key, KeyPrefix))
	assert.Len(t, key, len(KeyPrefix)+64)
	assert.Equal(t, key, Key(sampleRequest()), "stable")

	variants := []func(*Request){
		func(r *Request) { r.Fingerprint = strings.Repeat("cd", 32) },
		func(r *Request) { r.Instances = []string{"ex:B1", "ex:A1"} },
		func(r *Request) { r.MaxDepth = 3 },
		func(r *Request) { r.Iterations = 2 },
		func(r *Request) { r.Normalize = true },
	}
	for _, mutate := range variants {
		other := sampleRequest()
		mutate(&other)
		assert.NotEqual(t, key, Key(other))
	}
}

func TestCache_PutGet(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	req := sampleRequest()

	_, _, err := c.Get(ctx, req)
	assert.ErrorIs(t, err, ErrCacheMiss)

	m := mat.NewSymDense(2, []float64{19, 11, 11, 13})
	require.NoError(t, c.Put(ctx, req, req.Instances, m))

	got, instances, err := c.Get(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, req.Instances, instances)
	assert.True(t, mat.Equal(m, got))

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_Purge(t *testing.T) {
	c, store := newCache(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, []byte("unrelated"), []byte("x"), 0))
	require.NoError(t, c.Put(ctx, sampleRequest(), []string{"a"}, mat.NewSymDense(1, []float64{1})))
	require.NoError(t, c.Purge())

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Get(ctx, []byte("unrelated"))
	assert.NoError(t, err)
}

func TestCache_CorruptEntry(t *testing.T) {
	c, store := newCache(t)
	ctx := context.Background()
	req := sampleRequest()

	require.NoError(t, store.Set(ctx, []byte(Key(req)), []byte("{not json"), 0))
	_, _, err := c.Get(ctx, req)
	assert.ErrorIs(t, err, ErrCorruptEntry)

	require.NoError(t, store.Set(ctx, []byte(Key(req)), []byte(`{"instances":["a"],"matrix":[[1,2]]}`), 0))
	_, _, err = c.Get(ctx, req)
	assert.ErrorIs(t, err, ErrCorruptEntry)
}

func TestFromRows_Symmetric(t *testing.T) {
	m, err := fromRows([][]float64{{1, 2, 3}, {2, 4, 5}, {3, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, m.At(2, 1))
	assert.Equal(t, [][]float64{{1, 2, 3}, {2, 4, 5}, {3, 5, 6}}, export.Rows(m))

	_, err = fromRows(nil)
	assert.Error(t, err)
}
