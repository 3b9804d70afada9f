// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relabel

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/labels"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

const ex = "http://example.org/"

func buildForest(t *testing.T, maxDepth int, instances ...string) *forest.Forest {
	t.Helper()
	store, err := triples.LoadFile(filepath.Join("..", "testdata", "example.nt"))
	require.NoError(t, err)
	f, err := forest.NewBuilder().Build(context.Background(), store, instances, maxDepth)
	require.NoError(t, err)
	return f
}

func TestRelabel_DistinctLabelsNonDecreasing(t *testing.T) {
	f := buildForest(t, 4, ex+"A1", ex+"B1")
	table := labels.NewTable(f)

	require.NoError(t, New(f).Relabel(context.Background(), table, 3))
	require.Equal(t, 3, table.Computed())

	want := []int{14, 21, 21, 21}
	for i, n := range want {
		layer, ok := table.Layer(i)
		require.True(t, ok)
		assert.Equal(t, n, layer.Distinct(), "iteration %d", i)
	}
}

func TestRelabel_IdsAreDenseAndRestartEachRound(t *testing.T) {
	f := buildForest(t, 4, ex+"A1", ex+"B1")
	table := labels.NewTable(f)
	require.NoError(t, New(f).Relabel(context.Background(), table, 2))

	for it := 1; it <= 2; it++ {
		layer, _ := table.Layer(it)
		ids := make(map[string]struct{})
		for _, s := range append(append([]string{}, layer.Nodes...), layer.Edges...) {
			ids[s] = struct{}{}
		}
		for i := 0; i < len(ids); i++ {
			assert.Contains(t, ids, strconv.Itoa(i), "iteration %d", it)
		}
	}
}

func TestRelabel_RootsShareLabel(t *testing.T) {
	f := buildForest(t, 4, ex+"A1", ex+"B1")
	table := labels.NewTable(f)
	require.NoError(t, New(f).Relabel(context.Background(), table, 1))

	b1, ok := f.LookupNode(ex+"B1", 4)
	require.True(t, ok)

	a, err := table.LabelOf(forest.NodeRef(0), 4, 1)
	require.NoError(t, err)
	b, err := table.LabelOf(forest.NodeRef(b1), 4, 1)
	require.NoError(t, err)
	assert.Equal(t, "20", a)
	assert.Equal(t, a, b)
}

func TestRelabel_Deterministic(t *testing.T) {
	f1 := buildForest(t, 4, ex+"A1", ex+"B1", ex+"A2")
	f2 := buildForest(t, 4, ex+"A1", ex+"B1", ex+"A2")
	t1, t2 := labels.NewTable(f1), labels.NewTable(f2)

	require.NoError(t, New(f1).Relabel(context.Background(), t1, 2))
	require.NoError(t, New(f2).Relabel(context.Background(), t2, 2))

	for it := 0; it <= 2; it++ {
		l1, _ := t1.Layer(it)
		l2, _ := t2.Layer(it)
		assert.Equal(t, l1, l2, "iteration %d", it)
	}
}

func TestRelabel_AppendsOnlyMissingLayers(t *testing.T) {
	f := buildForest(t, 4, ex+"A1")
	table := labels.NewTable(f)
	r := New(f)

	require.NoError(t, r.Relabel(context.Background(), table, 1))
	before, _ := table.Layer(1)

	require.NoError(t, r.Relabel(context.Background(), table, 1))
	require.NoError(t, r.Relabel(context.Background(), table, 2))
	after, _ := table.Layer(1)

	assert.Equal(t, before, after)
	assert.Equal(t, 2, table.Computed())
}

func TestRelabel_AsTableRefiner(t *testing.T) {
	f := buildForest(t, 4, ex+"A1")
	table := labels.NewTable(f, labels.WithRefiner(New(f)))

	label, err := table.LabelOf(forest.NodeRef(0), 4, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, label)
	assert.Equal(t, 2, table.Computed())
}

func TestRelabel_ForestMismatch(t *testing.T) {
	f1 := buildForest(t, 2, ex+"A1")
	f2 := buildForest(t, 2, ex+"A1")
	err := New(f1).Relabel(context.Background(), labels.NewTable(f2), 1)
	assert.ErrorIs(t, err, ErrForestMismatch)
}

func TestRefine_LayerSize(t *testing.T) {
	f := buildForest(t, 2, ex+"A1")
	_, err := New(f).Refine(context.Background(), labels.Layer{Nodes: []string{"x"}})
	assert.ErrorIs(t, err, ErrLayerSize)
}

func TestRefine_Cancelled(t *testing.T) {
	f := buildForest(t, 2, ex+"A1")
	table := labels.NewTable(f)
	layer, _ := table.Layer(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(f).Refine(ctx, layer)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefine_DepthZeroForest(t *testing.T) {
	f := buildForest(t, 0, ex+"A1", ex+"B1")
	table := labels.NewTable(f)
	require.NoError(t, New(f).Relabel(context.Background(), table, 2))

	layer, _ := table.Layer(2)
	assert.Equal(t, []string{"0", "0"}, layer.Nodes)
	assert.Empty(t, layer.Edges)
}

func TestExpand_Unambiguous(t *testing.T) {
	assert.Equal(t, "4:root", expand("root"))
	assert.Equal(t, "1:a2:bc", expand("a", "bc"))
	assert.NotEqual(t, expand("ab", "c"), expand("a", "bc"))
	assert.NotEqual(t, expand("a", "b", "c"), expand("a", "b c"))
	assert.NotEqual(t, expand("1:a"), expand("1", "a"))
}

func TestBatch_CompressSortsAlphabet(t *testing.T) {
	b := newBatch(3, 1)
	b.addNode(0, "b", nil)
	b.addNode(1, "a", []string{"z", "y"})
	b.addNode(2, "b", nil)
	b.addEdge(0, "a", "y")

	layer := b.compress()
	// "1:a1:y" < "1:a1:y1:z" < "1:b"
	assert.Equal(t, []string{"2", "1", "2"}, layer.Nodes)
	assert.Equal(t, []string{"0"}, layer.Edges)
}
