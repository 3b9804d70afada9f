// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sweep evaluates the kernel over a grid of depths and iteration
// counts and summarizes each resulting matrix.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/kernel"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

var (
	// ErrEmptyGrid is returned when depths or iterations is empty.
	ErrEmptyGrid = errors.New("sweep grid is empty")

	// ErrNegativeValue is returned for a negative depth or iteration count.
	ErrNegativeValue = errors.New("sweep values must be non-negative")
)

// Row summarizes the off-diagonal entries of one kernel matrix.
type Row struct {
	Depth      int     `json:"depth"`
	Iterations int     `json:"iterations"`
	Pairs      int     `json:"pairs"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stddev"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
}

// Options configures Run.
type Options struct {
	// Raw disables cosine normalization of each matrix.
	Raw bool

	// Session is passed to every kernel.NewSession.
	Session []kernel.SessionOption

	// Progress, if set, is called after each row.
	Progress func(Row)
}

// Option is a functional option for configuring Run.
type Option func(*Options)

// WithRaw summarizes unnormalized kernel values.
func WithRaw(raw bool) Option {
	return func(o *Options) { o.Raw = raw }
}

// WithSessionOptions forwards opts to each session.
func WithSessionOptions(opts ...kernel.SessionOption) Option {
	return func(o *Options) { o.Session = append(o.Session, opts...) }
}

// WithProgress registers a per-row callback.
func WithProgress(fn func(Row)) Option {
	return func(o *Options) { o.Progress = fn }
}

// Run computes one Row per (depth, iterations) pair.
//
// Description:
//
//	Builds one session per depth and reuses its label table for every
//	iteration count, so relabeling work is shared across the row group.
//	Rows are ordered by depth, then iterations, both ascending.
//
// Inputs:
//
//	ctx - Cancels between matrices.
//	store - The triples.
//	instances - Instances compared pairwise.
//	depths, iterations - The grid. Duplicates are ignored.
//
// Outputs:
//
//	[]Row - len(unique depths) * len(unique iterations) rows.
//	error - ErrEmptyGrid, ErrNegativeValue or a kernel error.
func Run(ctx context.Context, store *triples.Store, instances []string, depths, iterations []int, opts ...Option) ([]Row, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	ds, err := grid(depths)
	if err != nil {
		return nil, fmt.Errorf("depths: %w", err)
	}
	its, err := grid(iterations)
	if err != nil {
		return nil, fmt.Errorf("iterations: %w", err)
	}

	rows := make([]Row, 0, len(ds)*len(its))
	for _, depth := range ds {
		s, err := kernel.NewSession(ctx, store, instances, depth, options.Session...)
		if err != nil {
			return nil, fmt.Errorf("depth %d: %w", depth, err)
		}
		ids := s.Instances()

		for _, it := range its {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			m, err := s.Matrix(ctx, ids, it)
			if err != nil {
				return nil, fmt.Errorf("depth %d, iterations %d: %w", depth, it, err)
			}
			if !options.Raw {
				m = kernel.Normalize(m)
			}

			row := Summarize(m)
			row.Depth, row.Iterations = depth, it
			rows = append(rows, row)

			slog.Debug("sweep row",
				slog.Int("depth", depth),
				slog.Int("iterations", it),
				slog.Float64("mean", row.Mean),
			)
			if options.Progress != nil {
				options.Progress(row)
			}
		}
	}
	return rows, nil
}

// Summarize computes statistics over the strict upper triangle of m.
// With fewer than two pairs StdDev is 0; with none all fields are 0.
func Summarize(m mat.Symmetric) Row {
	n := m.SymmetricDim()
	values := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			values = append(values, m.At(i, j))
		}
	}

	row := Row{Pairs: len(values)}
	if len(values) == 0 {
		return row
	}
	row.Mean, row.StdDev = stat.MeanStdDev(values, nil)
	if len(values) < 2 || math.IsNaN(row.StdDev) {
		row.StdDev = 0
	}
	row.Min = floats.Min(values)
	row.Max = floats.Max(values)
	return row
}

func grid(values []int) ([]int, error) {
	if len(values) == 0 {
		return nil, ErrEmptyGrid
	}
	out := slices.Clone(values)
	slices.Sort(out)
	out = slices.Compact(out)
	if out[0] < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeValue, out[0])
	}
	return out, nil
}
