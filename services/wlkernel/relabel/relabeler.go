// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relabel implements Weisfeiler-Lehman label refinement over a
// shared forest.
//
// One refinement round turns layer i into layer i+1:
//
//  1. Each node collects the layer-i labels of its same-depth neighbor
//     edges; each edge collects the layer-i label of its subject node one
//     layer up.
//  2. The multiset is sorted and appended to the occurrence's own label.
//  3. All distinct expanded labels of the round are sorted and numbered
//     "0", "1", ... in that order.
//  4. Every occurrence takes the number of its expanded label.
//
// Numbering is local to a round, so layers computed from the same forest
// are identical no matter how often or in which process they are computed.
package relabel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/labels"
)

var (
	// ErrForestMismatch is returned when a table built from another forest
	// is passed to Relabel.
	ErrForestMismatch = errors.New("table belongs to a different forest")

	// ErrLayerSize is returned when prev does not cover the forest arenas.
	ErrLayerSize = errors.New("layer size does not match forest")
)

// Relabeler refines label layers of one forest.
//
// Thread Safety:
//
//	Relabeler holds no mutable state. Refine may be called concurrently.
type Relabeler struct {
	forest *forest.Forest
}

// New creates a Relabeler bound to f.
func New(f *forest.Forest) *Relabeler {
	return &Relabeler{forest: f}
}

// Relabel extends t with exactly the layers missing up to iteration upto.
//
// Inputs:
//
//	ctx - Checked between iterations.
//	t - A table created from the same forest.
//	upto - Target iteration.
//
// Outputs:
//
//	error - ErrForestMismatch, or any error of labels.Table.Extend.
func (r *Relabeler) Relabel(ctx context.Context, t *labels.Table, upto int) error {
	if t.Forest() != r.forest {
		return ErrForestMismatch
	}
	return t.Extend(ctx, upto, r)
}

// Refine computes the layer following prev.
//
// Description:
//
//	Expanded labels are collected into a batch created for this call, then
//	compressed. Nothing is shared between calls.
//
// Outputs:
//
//	labels.Layer - The new layer, sized like prev.
//	error - ErrLayerSize, or ctx.Err() if cancelled.
func (r *Relabeler) Refine(ctx context.Context, prev labels.Layer) (labels.Layer, error) {
	start := time.Now()
	ctx, span := startRefineSpan(ctx, r.forest)
	defer span.End()

	next, err := r.refine(ctx, prev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return labels.Layer{}, err
	}

	distinct := next.Distinct()
	span.SetAttributes(attribute.Int("relabel.labels", distinct))
	recordRefineMetrics(ctx, time.Since(start), distinct)

	slog.Debug("relabel round done",
		slog.Int("nodes", len(next.Nodes)),
		slog.Int("edges", len(next.Edges)),
		slog.Int("labels", distinct),
		slog.Duration("elapsed", time.Since(start)),
	)
	return next, nil
}

func (r *Relabeler) refine(ctx context.Context, prev labels.Layer) (labels.Layer, error) {
	nodes, edges := r.forest.Nodes(), r.forest.Edges()
	if len(prev.Nodes) != len(nodes) || len(prev.Edges) != len(edges) {
		return labels.Layer{}, fmt.Errorf("%w: layer has %d nodes, %d edges; forest has %d, %d",
			ErrLayerSize, len(prev.Nodes), len(prev.Edges), len(nodes), len(edges))
	}
	if err := ctx.Err(); err != nil {
		return labels.Layer{}, err
	}

	b := newBatch(len(nodes), len(edges))
	multiset := make([]string, 0, 8)
	for i, n := range nodes {
		multiset = multiset[:0]
		for _, e := range n.Neighbors {
			multiset = append(multiset, prev.Edges[e])
		}
		b.addNode(i, prev.Nodes[i], multiset)
	}

	if err := ctx.Err(); err != nil {
		return labels.Layer{}, err
	}
	for i, e := range edges {
		b.addEdge(i, prev.Edges[i], prev.Nodes[e.Neighbor])
	}

	return b.compress(), nil
}

var _ labels.Refiner = (*Relabeler)(nil)
