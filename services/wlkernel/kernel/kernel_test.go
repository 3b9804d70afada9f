// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kernel

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/labels"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

const ex = "http://example.org/"

var (
	a1 = ex + "A1"
	b1 = ex + "B1"
	a2 = ex + "A2"
)

func loadExample(t *testing.T) *triples.Store {
	t.Helper()
	store, err := triples.LoadFile(filepath.Join("..", "testdata", "example.nt"))
	require.NoError(t, err)
	return store
}

func newSession(t *testing.T, maxDepth int, instances ...string) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), loadExample(t), instances, maxDepth)
	require.NoError(t, err)
	return s
}

func TestCommon(t *testing.T) {
	tests := []struct {
		name string
		x, y []string
		want int
	}{
		{"empty", nil, nil, 0},
		{"disjoint", []string{"a"}, []string{"b"}, 0},
		{"repeats multiply", []string{"a", "a", "b"}, []string{"a", "a", "a", "c"}, 6},
		{"one side empty", []string{"a"}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Common(tt.x, tt.y))
			assert.Equal(t, tt.want, Common(tt.y, tt.x))
		})
	}
}

func TestCommon_SelfIsSumOfSquares(t *testing.T) {
	x := []string{"a", "a", "a", "b", "c", "c"}
	assert.Equal(t, 9+1+4, Common(x, x))
	assert.GreaterOrEqual(t, Common(x, x), len(x))
}

func TestKernel_ExampleValues(t *testing.T) {
	s := newSession(t, 4, a1, b1)
	ctx := context.Background()

	m, ok := s.Forest().Membership(a1)
	require.True(t, ok)
	nodes, edges := m.Size()
	assert.Equal(t, 6, nodes)
	assert.Equal(t, 7, edges)

	v, err := s.Kernel(ctx, a1, b1, 0)
	require.NoError(t, err)
	assert.Equal(t, 11.0, v)

	v, err = s.Kernel(ctx, a1, b1, 1)
	require.NoError(t, err)
	assert.Equal(t, 11*0.5+4, v)

	v, err = s.Kernel(ctx, a1, b1, 2)
	require.NoError(t, err)
	assert.InDelta(t, 31.0/3, v, 1e-9)
}

func TestKernel_Symmetric(t *testing.T) {
	s := newSession(t, 4, a1, b1, a2)
	ctx := context.Background()

	for k := 0; k <= 2; k++ {
		for _, pair := range [][2]string{{a1, b1}, {a1, a2}, {b1, a2}} {
			ab, err := s.Kernel(ctx, pair[0], pair[1], k)
			require.NoError(t, err)
			ba, err := s.Kernel(ctx, pair[1], pair[0], k)
			require.NoError(t, err)
			assert.Equal(t, ab, ba)
		}
	}
}

func TestKernel_SelfKernel(t *testing.T) {
	s := newSession(t, 4, a1, b1)
	ctx := context.Background()

	for k, want := range []float64{19, 22.5, 28} {
		v, err := s.Kernel(ctx, a1, a1, k)
		require.NoError(t, err)
		assert.InDelta(t, want, v, 1e-9, "iterations=%d", k)
	}
}

func TestKernel_BoundedBySelfKernels(t *testing.T) {
	s := newSession(t, 4, a1, b1, a2)
	ctx := context.Background()
	instances := s.Instances()

	for k := 0; k <= 3; k++ {
		for _, a := range instances {
			for _, b := range instances {
				ab, err := s.Kernel(ctx, a, b, k)
				require.NoError(t, err)
				aa, _ := s.Kernel(ctx, a, a, k)
				bb, _ := s.Kernel(ctx, b, b, k)
				assert.GreaterOrEqual(t, ab, 0.0)
				assert.LessOrEqual(t, ab*ab, aa*bb+1e-9)
			}
		}
	}
}

func TestKernel_EarlierIterationsUnaffected(t *testing.T) {
	s := newSession(t, 4, a1, b1)
	ctx := context.Background()

	before, err := s.Kernel(ctx, a1, b1, 1)
	require.NoError(t, err)
	require.NoError(t, s.Relabel(ctx, 5))
	after, err := s.Kernel(ctx, a1, b1, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestKernel_DepthZero(t *testing.T) {
	s := newSession(t, 0, a1, b1)

	v, err := s.Kernel(context.Background(), a1, b1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = s.Kernel(context.Background(), a1, b1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestKernel_Errors(t *testing.T) {
	s := newSession(t, 2, a1, b1)
	ctx := context.Background()

	_, err := s.Kernel(ctx, a1, b1, -1)
	assert.ErrorIs(t, err, ErrNegativeIterations)

	_, err = s.Kernel(ctx, a1, ex+"Missing", 0)
	assert.ErrorIs(t, err, forest.ErrUnknownInstance)
	var lookup *labels.LookupError
	assert.True(t, errors.As(err, &lookup))

	// A table without a refiner cannot go past layer 0.
	e := NewEvaluator(s.Forest(), labels.NewTable(s.Forest()))
	_, err = e.Kernel(ctx, a1, b1, 1)
	assert.ErrorIs(t, err, labels.ErrIterationNotComputed)
}

func TestMatrix_ExampleValues(t *testing.T) {
	s := newSession(t, 4, a1, b1, a2)
	instances := []string{a1, b1, a2}

	want := [][]float64{
		{19, 11, 11, 11, 13, 7, 11, 7, 8},
		{22.5, 9.5, 12.5, 9.5, 17.5, 6.5, 12.5, 6.5, 12},
		{28, 31.0 / 3, 46.0 / 3, 31.0 / 3, 68.0 / 3, 22.0 / 3, 46.0 / 3, 22.0 / 3, 16},
	}
	for k, w := range want {
		m, err := s.Matrix(context.Background(), instances, k)
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(mat.NewDense(3, 3, w), m, 1e-9), "iterations=%d\n%v", k, mat.Formatted(m))
	}
}

func TestMatrix_MatchesKernel(t *testing.T) {
	s := newSession(t, 3, a1, b1, a2)
	ctx := context.Background()
	instances := s.Instances()

	m, err := s.Matrix(ctx, instances, 2)
	require.NoError(t, err)
	for i, a := range instances {
		for j, b := range instances {
			v, err := s.Kernel(ctx, a, b, 2)
			require.NoError(t, err)
			assert.InDelta(t, v, m.At(i, j), 1e-12)
		}
	}
}

func TestMatrix_WorkerCountDoesNotChangeResult(t *testing.T) {
	store := loadExample(t)
	instances := []string{a1, b1, a2, ex + "H", ex + "D", ex + "I", ex + "C"}

	var results []*mat.SymDense
	for _, w := range []int{1, 3, 8} {
		s, err := NewSession(context.Background(), store, instances, 3, WithWorkers(w))
		require.NoError(t, err)
		m, err := s.Matrix(context.Background(), instances, 2)
		require.NoError(t, err)
		results = append(results, m)
	}
	assert.True(t, mat.Equal(results[0], results[1]))
	assert.True(t, mat.Equal(results[0], results[2]))
}

func TestMatrix_Errors(t *testing.T) {
	s := newSession(t, 2, a1, b1)
	ctx := context.Background()

	_, err := s.Matrix(ctx, nil, 0)
	assert.ErrorIs(t, err, ErrEmptyMatrix)

	_, err = s.Matrix(ctx, []string{a1}, -2)
	assert.ErrorIs(t, err, ErrNegativeIterations)

	_, err = s.Matrix(ctx, []string{a1, ex + "Missing"}, 0)
	assert.ErrorIs(t, err, forest.ErrUnknownInstance)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Matrix(cancelled, []string{a1, b1}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatrix_DuplicateInstances(t *testing.T) {
	s := newSession(t, 4, a1, b1)
	m, err := s.Matrix(context.Background(), []string{a1, a1, b1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 19.0, m.At(0, 1))
	assert.Equal(t, 11.0, m.At(1, 2))
}

func TestNormalize(t *testing.T) {
	m := mat.NewSymDense(3, []float64{
		4, 2, 0,
		2, 9, 0,
		0, 0, 0,
	})
	n := Normalize(m)

	assert.Equal(t, 1.0, n.At(0, 0))
	assert.Equal(t, 1.0, n.At(1, 1))
	assert.InDelta(t, 2.0/6.0, n.At(0, 1), 1e-12)
	assert.Equal(t, 0.0, n.At(2, 2))
	assert.Equal(t, 0.0, n.At(0, 2))
}

func TestNormalize_DiagonalIsRowMaximum(t *testing.T) {
	s := newSession(t, 4, a1, b1, a2)
	m, err := s.Matrix(context.Background(), s.Instances(), 2)
	require.NoError(t, err)

	n := Normalize(m)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, n.At(i, i), 1e-12)
		for j := 0; j < 3; j++ {
			assert.LessOrEqual(t, n.At(i, j), n.At(i, i)+1e-12)
			assert.False(t, math.IsNaN(n.At(i, j)))
		}
	}
}

func TestNewSession_PropagatesBuildErrors(t *testing.T) {
	_, err := NewSession(context.Background(), loadExample(t), []string{ex + "Nope"}, 2,
		WithBuilderOptions(forest.WithStrictInstances(true)))
	assert.ErrorIs(t, err, forest.ErrUnknownInstance)
	var gce *forest.GraphConstructionError
	assert.ErrorAs(t, err, &gce)

	_, err = NewSession(context.Background(), loadExample(t), []string{a1}, -1)
	assert.ErrorIs(t, err, forest.ErrNegativeDepth)
}
