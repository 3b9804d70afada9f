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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/labels"
)

// Evaluator computes kernel values from a forest and its label table.
type Evaluator struct {
	forest *forest.Forest
	table  *labels.Table
}

// NewEvaluator creates an Evaluator. The table must be built from f and
// should have a refiner attached so that missing iterations are computed.
func NewEvaluator(f *forest.Forest, t *labels.Table) *Evaluator {
	return &Evaluator{forest: f, table: t}
}

// Kernel returns the WL kernel of instances a and b.
//
// Description:
//
//	Extends the table to iterations, then sums over it = 0..iterations:
//
//	  (it+1)/(iterations+1) * (Common(nodes_a, nodes_b) + Common(edges_a, edges_b))
//
//	where nodes_x and edges_x are the layer-it labels of the member
//	occurrences of x.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	a, b - Instances of the forest. a == b gives the self-kernel.
//	iterations - Number of relabel rounds. Must be >= 0.
//
// Outputs:
//
//	float64 - The kernel value, >= 0.
//	error - ErrNegativeIterations, *labels.LookupError wrapping
//	        forest.ErrUnknownInstance, or a table extension error.
//
// Example:
//
//	v, err := e.Kernel(ctx, "ex:A1", "ex:B1", 1)
func (e *Evaluator) Kernel(ctx context.Context, a, b string, iterations int) (float64, error) {
	ctx, span := tracer.Start(ctx, "kernel.Evaluator.Kernel",
		trace.WithAttributes(
			attribute.String("kernel.instance_a", a),
			attribute.String("kernel.instance_b", b),
			attribute.Int("kernel.iterations", iterations),
		),
	)
	defer span.End()

	if iterations < 0 {
		return 0, fmt.Errorf("%w: got %d", ErrNegativeIterations, iterations)
	}
	if err := e.table.Ensure(ctx, iterations); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("extend labels: %w", err)
	}

	pa, err := e.profile(ctx, a, iterations)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	pb := pa
	if b != a {
		if pb, err = e.profile(ctx, b, iterations); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
	}

	v := pa.weighted(pb, iterations)
	recordEvaluations(ctx, 1)
	span.SetAttributes(attribute.Float64("kernel.value", v))
	return v, nil
}

// profile collects the label histograms of instance for 0..iterations.
// The table must already hold those layers.
func (e *Evaluator) profile(ctx context.Context, instance string, iterations int) (*profile, error) {
	p := &profile{
		nodes: make([]Histogram, iterations+1),
		edges: make([]Histogram, iterations+1),
	}
	for it := 0; it <= iterations; it++ {
		nodes, edges, err := e.table.InstanceLabels(ctx, instance, it)
		if err != nil {
			return nil, err
		}
		p.nodes[it] = NewHistogram(nodes)
		p.edges[it] = NewHistogram(edges)
	}
	return p, nil
}
