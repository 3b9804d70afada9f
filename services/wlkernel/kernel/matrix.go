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
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// MatrixOptions configures MatrixBuilder.
type MatrixOptions struct {
	// Workers is the number of goroutines filling matrix rows.
	// Default: runtime.NumCPU().
	Workers int
}

// MatrixOption is a functional option for configuring MatrixBuilder.
type MatrixOption func(*MatrixOptions)

// WithMatrixWorkers sets the row worker count. n <= 0 means NumCPU.
func WithMatrixWorkers(n int) MatrixOption {
	return func(o *MatrixOptions) {
		o.Workers = n
	}
}

// MatrixBuilder computes kernel matrices.
type MatrixBuilder struct {
	eval    *Evaluator
	options MatrixOptions
}

// NewMatrixBuilder creates a MatrixBuilder over e.
func NewMatrixBuilder(e *Evaluator, opts ...MatrixOption) *MatrixBuilder {
	options := MatrixOptions{Workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Workers <= 0 {
		options.Workers = runtime.NumCPU()
	}
	return &MatrixBuilder{eval: e, options: options}
}

// Build returns the kernel matrix of instances.
//
// Description:
//
//	The label table is extended to iterations before any cell is computed.
//	Per-instance histograms are then built once and the upper triangle,
//	diagonal included, is filled row by row across the workers. Each cell
//	is computed exactly once and mirrored.
//
// Inputs:
//
//	ctx - Checked before each row.
//	instances - Row and column order. Duplicates are allowed and produce
//	            identical rows.
//	iterations - Number of relabel rounds. Must be >= 0.
//
// Outputs:
//
//	*mat.SymDense - M[i][j] = Kernel(instances[i], instances[j], iterations).
//	error - ErrNegativeIterations, ErrEmptyMatrix, a lookup error, or
//	        ctx.Err(). No partial matrix is returned.
func (b *MatrixBuilder) Build(ctx context.Context, instances []string, iterations int) (*mat.SymDense, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "kernel.MatrixBuilder.Build",
		trace.WithAttributes(
			attribute.Int("kernel.instances", len(instances)),
			attribute.Int("kernel.iterations", iterations),
			attribute.Int("kernel.workers", b.options.Workers),
		),
	)
	defer span.End()

	m, err := b.build(ctx, instances, iterations)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordMatrix(ctx, time.Since(start), false)
		return nil, err
	}
	recordMatrix(ctx, time.Since(start), true)

	slog.Debug("kernel matrix built",
		slog.Int("instances", len(instances)),
		slog.Int("iterations", iterations),
		slog.Int("workers", b.options.Workers),
		slog.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

func (b *MatrixBuilder) build(ctx context.Context, instances []string, iterations int) (*mat.SymDense, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeIterations, iterations)
	}
	n := len(instances)
	if n == 0 {
		return nil, ErrEmptyMatrix
	}
	if err := b.eval.table.Ensure(ctx, iterations); err != nil {
		return nil, fmt.Errorf("extend labels: %w", err)
	}

	profiles := make([]*profile, n)
	cache := make(map[string]*profile, n)
	for i, inst := range instances {
		if p, ok := cache[inst]; ok {
			profiles[i] = p
			continue
		}
		p, err := b.eval.profile(ctx, inst, iterations)
		if err != nil {
			return nil, err
		}
		cache[inst] = p
		profiles[i] = p
	}

	// Each row goroutine writes only data[i*n+j] and data[j*n+i] for j >= i.
	data := make([]float64, n*n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.options.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for j := i; j < n; j++ {
				v := profiles[i].weighted(profiles[j], iterations)
				data[i*n+j] = v
				data[j*n+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recordEvaluations(ctx, int64(n*(n+1)/2))
	return mat.NewSymDense(n, data), nil
}

// Normalize returns the cosine-normalized copy of m:
//
//	N[i][j] = m[i][j] / sqrt(m[i][i] * m[j][j])
//
// Cells whose row or column has a zero diagonal are 0.
func Normalize(m *mat.SymDense) *mat.SymDense {
	n := m.SymmetricDim()
	diag := make([]float64, n)
	for i := range diag {
		diag[i] = math.Sqrt(m.At(i, i))
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := diag[i] * diag[j]
			if d == 0 {
				continue
			}
			out.SetSym(i, j, m.At(i, j)/d)
		}
	}
	return out
}
