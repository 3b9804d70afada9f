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

	"gonum.org/v1/gonum/mat"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/labels"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/relabel"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

// SessionOptions configures NewSession.
type SessionOptions struct {
	// Builder configures forest construction.
	Builder []forest.BuilderOption

	// Matrix configures the matrix builder.
	Matrix []MatrixOption
}

// SessionOption is a functional option for configuring Session.
type SessionOption func(*SessionOptions)

// WithBuilderOptions passes opts to forest.NewBuilder.
func WithBuilderOptions(opts ...forest.BuilderOption) SessionOption {
	return func(o *SessionOptions) {
		o.Builder = append(o.Builder, opts...)
	}
}

// WithWorkers sets both the discovery and the matrix row worker count.
func WithWorkers(n int) SessionOption {
	return func(o *SessionOptions) {
		o.Builder = append(o.Builder, forest.WithWorkerCount(n))
		o.Matrix = append(o.Matrix, WithMatrixWorkers(n))
	}
}

// Session owns the structures of one comparison batch: a forest for a fixed
// (triples, instances, maxDepth), its label table and relabeler.
//
// Sessions never share state. Discard the session to release the forest.
type Session struct {
	forest    *forest.Forest
	table     *labels.Table
	relabeler *relabel.Relabeler
	eval      *Evaluator
	matrix    *MatrixBuilder
}

// NewSession builds the forest for instances and prepares lazy relabeling.
//
// Outputs:
//
//	*Session - Ready for Kernel and Matrix calls.
//	error - *forest.GraphConstructionError or ctx.Err().
func NewSession(ctx context.Context, store *triples.Store, instances []string, maxDepth int, opts ...SessionOption) (*Session, error) {
	var options SessionOptions
	for _, opt := range opts {
		opt(&options)
	}

	f, err := forest.NewBuilder(options.Builder...).Build(ctx, store, instances, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("build forest: %w", err)
	}

	r := relabel.New(f)
	table := labels.NewTable(f, labels.WithRefiner(r))
	eval := NewEvaluator(f, table)

	return &Session{
		forest:    f,
		table:     table,
		relabeler: r,
		eval:      eval,
		matrix:    NewMatrixBuilder(eval, options.Matrix...),
	}, nil
}

// Kernel returns the kernel of a and b. See Evaluator.Kernel.
func (s *Session) Kernel(ctx context.Context, a, b string, iterations int) (float64, error) {
	return s.eval.Kernel(ctx, a, b, iterations)
}

// Matrix returns the kernel matrix of instances. See MatrixBuilder.Build.
func (s *Session) Matrix(ctx context.Context, instances []string, iterations int) (*mat.SymDense, error) {
	return s.matrix.Build(ctx, instances, iterations)
}

// Relabel extends the table to upto eagerly.
func (s *Session) Relabel(ctx context.Context, upto int) error {
	return s.relabeler.Relabel(ctx, s.table, upto)
}

// Forest returns the session forest.
func (s *Session) Forest() *forest.Forest { return s.forest }

// Table returns the session label table.
func (s *Session) Table() *labels.Table { return s.table }

// Instances returns the distinct instances of the session, in order.
func (s *Session) Instances() []string { return s.forest.Instances() }
