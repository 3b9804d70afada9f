// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package labels

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

const ex = "http://example.org/"

// primeRefiner appends a prime to every label.
type primeRefiner struct {
	calls  atomic.Int32
	shrink bool
	err    error
}

func (r *primeRefiner) Refine(_ context.Context, prev Layer) (Layer, error) {
	r.calls.Add(1)
	if r.err != nil {
		return Layer{}, r.err
	}
	next := Layer{Nodes: make([]string, len(prev.Nodes)), Edges: make([]string, len(prev.Edges))}
	for i, s := range prev.Nodes {
		next.Nodes[i] = s + "'"
	}
	for i, s := range prev.Edges {
		next.Edges[i] = s + "'"
	}
	if r.shrink {
		next.Nodes = next.Nodes[:len(next.Nodes)-1]
	}
	return next, nil
}

func buildForest(t *testing.T, instances ...string) *forest.Forest {
	t.Helper()
	store, err := triples.LoadFile(filepath.Join("..", "testdata", "example.nt"))
	require.NoError(t, err)
	f, err := forest.NewBuilder().Build(context.Background(), store, instances, 4)
	require.NoError(t, err)
	return f
}

func TestNewTable_LayerZero(t *testing.T) {
	f := buildForest(t, ex+"A1")
	table := NewTable(f)

	assert.Equal(t, 0, table.Computed())

	label, err := table.LabelOf(forest.NodeRef(0), 4, 0)
	require.NoError(t, err)
	assert.Equal(t, forest.RootLabel, label)

	c, ok := f.LookupNode(ex+"C", 3)
	require.True(t, ok)
	label, err = table.LabelOf(forest.NodeRef(c), 3, 0)
	require.NoError(t, err)
	assert.Equal(t, ex+"C", label)

	label, err = table.LabelOf(forest.EdgeRef(0), 3, 0)
	require.NoError(t, err)
	assert.Equal(t, f.Edges()[0].Predicate, label)
}

func TestLayer_Distinct(t *testing.T) {
	table := NewTable(buildForest(t, ex+"A1", ex+"B1"))
	layer, ok := table.Layer(0)
	require.True(t, ok)
	assert.Len(t, layer.Nodes, 12)
	assert.Len(t, layer.Edges, 12)
	assert.Equal(t, 14, layer.Distinct())
}

func TestLabelOf_Errors(t *testing.T) {
	table := NewTable(buildForest(t, ex+"A1"))

	tests := []struct {
		name      string
		ref       forest.Ref
		depth     int
		iteration int
		want      error
	}{
		{"node out of range", forest.NodeRef(100), 0, 0, ErrOccurrenceNotFound},
		{"edge out of range", forest.EdgeRef(-1), 0, 0, ErrOccurrenceNotFound},
		{"depth mismatch", forest.NodeRef(0), 3, 0, ErrDepthMismatch},
		{"negative iteration", forest.NodeRef(0), 4, -1, ErrNegativeIteration},
		{"not computed", forest.NodeRef(0), 4, 1, ErrIterationNotComputed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.LabelOf(tt.ref, tt.depth, tt.iteration)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())

			var lookup *LookupError
			require.True(t, errors.As(err, &lookup))
			assert.Equal(t, tt.ref, lookup.Ref)
			assert.Equal(t, tt.iteration, lookup.Iteration)
		})
	}
}

func TestLabelOf_ExtendsWithRefiner(t *testing.T) {
	r := &primeRefiner{}
	table := NewTable(buildForest(t, ex+"A1"), WithRefiner(r))

	label, err := table.LabelOf(forest.NodeRef(0), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, "root''", label)
	assert.Equal(t, 2, table.Computed())
	assert.Equal(t, int32(2), r.calls.Load())

	require.NoError(t, table.Ensure(context.Background(), 1))
	assert.Equal(t, int32(2), r.calls.Load(), "existing layers are not recomputed")
}

func TestEnsure_WithoutRefiner(t *testing.T) {
	table := NewTable(buildForest(t, ex+"A1"))
	assert.NoError(t, table.Ensure(context.Background(), 0))
	assert.ErrorIs(t, table.Ensure(context.Background(), 1), ErrIterationNotComputed)
	assert.ErrorIs(t, table.Ensure(context.Background(), -1), ErrNegativeIteration)
}

func TestExtend_AppendOnly(t *testing.T) {
	r := &primeRefiner{}
	table := NewTable(buildForest(t, ex+"A1"))

	require.NoError(t, table.Extend(context.Background(), 1, r))
	first, _ := table.Layer(1)

	require.NoError(t, table.Extend(context.Background(), 3, r))
	again, _ := table.Layer(1)
	assert.Equal(t, first, again)
	assert.Equal(t, 3, table.Computed())
	assert.Equal(t, int32(3), r.calls.Load())
}

func TestExtend_Failures(t *testing.T) {
	t.Run("nil refiner", func(t *testing.T) {
		table := NewTable(buildForest(t, ex+"A1"))
		assert.ErrorIs(t, table.Extend(context.Background(), 1, nil), ErrNoRefiner)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		table := NewTable(buildForest(t, ex+"A1"))
		err := table.Extend(context.Background(), 1, &primeRefiner{shrink: true})
		assert.ErrorIs(t, err, ErrLayerShape)
		assert.Equal(t, 0, table.Computed())
	})

	t.Run("refiner error", func(t *testing.T) {
		boom := errors.New("boom")
		table := NewTable(buildForest(t, ex+"A1"))
		assert.ErrorIs(t, table.Extend(context.Background(), 2, &primeRefiner{err: boom}), boom)
		assert.Equal(t, 0, table.Computed())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		table := NewTable(buildForest(t, ex+"A1"))
		assert.ErrorIs(t, table.Extend(ctx, 2, &primeRefiner{}), context.Canceled)
		assert.Equal(t, 0, table.Computed())
	})
}

func TestInstanceLabels(t *testing.T) {
	f := buildForest(t, ex+"A1", ex+"B1")
	table := NewTable(f, WithRefiner(&primeRefiner{}))

	nodes, edges, err := table.InstanceLabels(context.Background(), ex+"A1", 0)
	require.NoError(t, err)
	assert.Len(t, nodes, 6)
	assert.Len(t, edges, 7)
	assert.Equal(t, forest.RootLabel, nodes[0])

	nodes, _, err = table.InstanceLabels(context.Background(), ex+"B1", 1)
	require.NoError(t, err)
	assert.Equal(t, "root'", nodes[0])

	_, _, err = table.InstanceLabels(context.Background(), ex+"Z", 0)
	assert.ErrorIs(t, err, forest.ErrUnknownInstance)
	var lookup *LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, ex+"Z", lookup.Instance)
}

func TestTable_ConcurrentExtension(t *testing.T) {
	r := &primeRefiner{}
	table := NewTable(buildForest(t, ex+"A1", ex+"B1"), WithRefiner(r))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(it int) {
			defer wg.Done()
			_, err := table.LabelOf(forest.NodeRef(0), 4, it%4)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, table.Computed())
	assert.Equal(t, int32(3), r.calls.Load())
}
