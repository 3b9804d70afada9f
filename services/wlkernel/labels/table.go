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
	"fmt"
	"log/slog"
	"sync"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
)

// Layer is one iteration of labels, indexed by arena index.
type Layer struct {
	Nodes []string
	Edges []string
}

// Distinct returns the number of distinct labels across nodes and edges.
func (l Layer) Distinct() int {
	seen := make(map[string]struct{}, len(l.Nodes)+len(l.Edges))
	for _, s := range l.Nodes {
		seen[s] = struct{}{}
	}
	for _, s := range l.Edges {
		seen[s] = struct{}{}
	}
	return len(seen)
}

// Refiner computes layer i+1 from layer i.
type Refiner interface {
	Refine(ctx context.Context, prev Layer) (Layer, error)
}

// TableOptions configures a Table.
type TableOptions struct {
	// Refiner, when set, lets lookups extend the table on demand.
	Refiner Refiner
}

// TableOption is a functional option for configuring Table.
type TableOption func(*TableOptions)

// WithRefiner attaches r for on-demand extension.
func WithRefiner(r Refiner) TableOption {
	return func(o *TableOptions) {
		o.Refiner = r
	}
}

// Table is the append-only sequence of label layers of one forest.
type Table struct {
	forest  *forest.Forest
	refiner Refiner

	// appendMu serializes Extend; mu guards layers.
	appendMu sync.Mutex
	mu       sync.RWMutex
	layers   []Layer
}

// NewTable creates a Table holding layer 0 of f.
//
// Description:
//
//	Node occurrences are labeled with their resource, except instance roots
//	which carry forest.RootLabel. Edge occurrences are labeled with their
//	predicate.
//
// Inputs:
//
//	f - The forest. Must not be nil.
//	opts - Optional WithRefiner.
//
// Outputs:
//
//	*Table - Table with exactly one layer.
func NewTable(f *forest.Forest, opts ...TableOption) *Table {
	var options TableOptions
	for _, opt := range opts {
		opt(&options)
	}

	layer := Layer{
		Nodes: make([]string, f.NodeCount()),
		Edges: make([]string, f.EdgeCount()),
	}
	for i, n := range f.Nodes() {
		if n.Root {
			layer.Nodes[i] = forest.RootLabel
		} else {
			layer.Nodes[i] = n.Resource
		}
	}
	for i, e := range f.Edges() {
		layer.Edges[i] = e.Predicate
	}

	return &Table{
		forest:  f,
		refiner: options.Refiner,
		layers:  []Layer{layer},
	}
}

// Forest returns the forest the table labels.
func (t *Table) Forest() *forest.Forest {
	return t.forest
}

// Computed returns the highest computed iteration.
func (t *Table) Computed() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.layers) - 1
}

// Layer returns layer i if it has been computed. The returned slices must
// not be modified.
func (t *Table) Layer(i int) (Layer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.layers) {
		return Layer{}, false
	}
	return t.layers[i], true
}

// LabelOf returns the label of ref at iteration.
//
// Description:
//
//	depth must equal the depth of the occurrence. When iteration has not
//	been computed and a refiner is attached, the table is extended first.
//
// Outputs:
//
//	string - The label.
//	error - *LookupError wrapping ErrOccurrenceNotFound, ErrDepthMismatch,
//	        ErrNegativeIteration or ErrIterationNotComputed.
func (t *Table) LabelOf(ref forest.Ref, depth, iteration int) (string, error) {
	lookupErr := func(err error) error {
		return &LookupError{Ref: ref, Depth: depth, Iteration: iteration, Err: err}
	}

	actual, ok := t.forest.Depth(ref)
	if !ok {
		return "", lookupErr(ErrOccurrenceNotFound)
	}
	if actual != depth {
		return "", lookupErr(fmt.Errorf("%w: occurrence is at depth %d", ErrDepthMismatch, actual))
	}

	layer, err := t.layerFor(context.Background(), iteration)
	if err != nil {
		return "", lookupErr(err)
	}
	if ref.Kind == forest.KindNode {
		return layer.Nodes[ref.Index], nil
	}
	return layer.Edges[ref.Index], nil
}

// InstanceLabels returns the labels of instance's member nodes and edges at
// iteration, in membership order.
//
// Outputs:
//
//	nodes, edges - Fresh slices owned by the caller.
//	error - *LookupError wrapping forest.ErrUnknownInstance, or any error
//	        LabelOf can return for the iteration.
func (t *Table) InstanceLabels(ctx context.Context, instance string, iteration int) (nodes, edges []string, err error) {
	m, ok := t.forest.Membership(instance)
	if !ok {
		return nil, nil, &LookupError{Instance: instance, Iteration: iteration, Err: forest.ErrUnknownInstance}
	}
	layer, err := t.layerFor(ctx, iteration)
	if err != nil {
		return nil, nil, &LookupError{Instance: instance, Iteration: iteration, Err: err}
	}

	nodes = make([]string, len(m.Nodes))
	for i, mem := range m.Nodes {
		nodes[i] = layer.Nodes[mem.Ref.Index]
	}
	edges = make([]string, len(m.Edges))
	for i, mem := range m.Edges {
		edges[i] = layer.Edges[mem.Ref.Index]
	}
	return nodes, edges, nil
}

// Ensure makes iteration available, extending with the attached refiner.
//
// Outputs:
//
//	error - ErrIterationNotComputed when the layer is missing and no refiner
//	        is attached, the refiner's error, or ctx.Err().
func (t *Table) Ensure(ctx context.Context, iteration int) error {
	if iteration < 0 {
		return &LookupError{Iteration: iteration, Err: ErrNegativeIteration}
	}
	if t.Computed() >= iteration {
		return nil
	}
	if t.refiner == nil {
		return &LookupError{Iteration: iteration, Err: ErrIterationNotComputed}
	}
	return t.Extend(ctx, iteration, t.refiner)
}

// Extend appends layers with r until iteration upto exists.
//
// Description:
//
//	Each new layer is computed from the last one and appended only when
//	complete, so a cancelled context or a refiner error leaves the table at
//	its last complete layer. Concurrent Extend calls are serialized; the
//	second one finds the work done.
//
// Inputs:
//
//	ctx - Checked before each iteration.
//	upto - Target iteration. Must be >= 0.
//	r - The refiner. Must not be nil.
func (t *Table) Extend(ctx context.Context, upto int, r Refiner) error {
	if upto < 0 {
		return &LookupError{Iteration: upto, Err: ErrNegativeIteration}
	}
	if r == nil {
		return ErrNoRefiner
	}

	t.appendMu.Lock()
	defer t.appendMu.Unlock()

	for {
		t.mu.RLock()
		n := len(t.layers)
		prev := t.layers[n-1]
		t.mu.RUnlock()

		if n > upto {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extend to iteration %d: %w", upto, err)
		}

		next, err := r.Refine(ctx, prev)
		if err != nil {
			return fmt.Errorf("refine iteration %d: %w", n, err)
		}
		if len(next.Nodes) != len(prev.Nodes) || len(next.Edges) != len(prev.Edges) {
			return fmt.Errorf("iteration %d: %w: got %d nodes, %d edges, want %d, %d",
				n, ErrLayerShape, len(next.Nodes), len(next.Edges), len(prev.Nodes), len(prev.Edges))
		}

		t.mu.Lock()
		t.layers = append(t.layers, next)
		t.mu.Unlock()

		slog.Debug("label layer appended", slog.Int("iteration", n))
	}
}

func (t *Table) layerFor(ctx context.Context, iteration int) (Layer, error) {
	if iteration < 0 {
		return Layer{}, ErrNegativeIteration
	}
	if layer, ok := t.Layer(iteration); ok {
		return layer, nil
	}
	if t.refiner == nil {
		return Layer{}, ErrIterationNotComputed
	}
	if err := t.Extend(ctx, iteration, t.refiner); err != nil {
		return Layer{}, err
	}
	layer, _ := t.Layer(iteration)
	return layer, nil
}
