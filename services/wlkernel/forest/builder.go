// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

const (
	// parallelThreshold is the minimum instance count for parallel discovery.
	parallelThreshold = 4

	// maxWorkers caps discovery goroutines regardless of CPU count.
	maxWorkers = 16
)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// WorkerCount is the number of goroutines used to discover instance
	// subgraphs. Default: runtime.NumCPU(), capped at 16.
	WorkerCount int

	// StrictInstances makes an instance that appears nowhere in the triples
	// a GraphConstructionError. When false such an instance yields a
	// root-only subgraph.
	StrictInstances bool
}

// DefaultBuilderOptions returns the defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		WorkerCount: runtime.NumCPU(),
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithWorkerCount sets the number of discovery workers. n <= 0 means NumCPU.
func WithWorkerCount(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.WorkerCount = n
	}
}

// WithStrictInstances rejects instances with no corresponding resource.
func WithStrictInstances(strict bool) BuilderOption {
	return func(o *BuilderOptions) {
		o.StrictInstances = strict
	}
}

// Builder constructs forests from a triple store.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build call has its own state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a Builder.
//
// Example:
//
//	b := forest.NewBuilder(forest.WithWorkerCount(4), forest.WithStrictInstances(true))
//	f, err := b.Build(ctx, store, []string{"ex:A1", "ex:B1"}, 4)
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.WorkerCount <= 0 {
		options.WorkerCount = runtime.NumCPU()
	}
	if options.WorkerCount > maxWorkers {
		options.WorkerCount = maxWorkers
	}
	return &Builder{options: options}
}

// plan is the reverse-BFS scan of one instance: rounds[k] holds the triples
// whose subject was in the frontier at depth maxDepth-k, i.e. whose object
// lands at depth maxDepth-1-k.
type plan struct {
	instance string
	rounds   [][]triples.Triple
}

// memberSet deduplicates an instance's members while the forest is built.
type memberSet struct {
	m     *Membership
	nodes map[string]struct{}
	edges map[triples.Triple]struct{}
}

// Build constructs the shared forest for instances.
//
// Description:
//
//	Creates one root occurrence per distinct instance at depth maxDepth with
//	layer-0 label "root", then runs maxDepth rounds of reverse BFS per
//	instance. In round depth (maxDepth-1 down to 0) every triple whose
//	subject is in the frontier materializes, or reuses, the object node and
//	the edge occurrence at depth. The edge's Neighbor points at the subject
//	occurrence at depth+1. Occurrences are shared across instances by
//	(resource, depth) and (triple, depth) identity.
//
//	Discovery of each instance's rounds is independent and runs in parallel
//	over the read-only store. Materialization then runs sequentially in
//	instance order, so arena indices do not depend on WorkerCount.
//
// Inputs:
//
//	ctx - Context for cancellation, checked between BFS rounds.
//	store - The triple set. Read only.
//	instances - Root instances. Duplicates collapse to the first occurrence.
//	maxDepth - Number of hops from each root. Must be >= 0.
//
// Outputs:
//
//	*Forest - The immutable forest.
//	error - *GraphConstructionError for invalid input, or the context error.
func (b *Builder) Build(ctx context.Context, store *triples.Store, instances []string, maxDepth int) (*Forest, error) {
	start := time.Now()
	ctx, span := startBuildSpan(ctx, len(instances), maxDepth)
	defer span.End()

	f, err := b.build(ctx, store, instances, maxDepth)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordBuildMetrics(ctx, time.Since(start), 0, 0, false)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("forest.nodes", len(f.nodes)),
		attribute.Int("forest.edges", len(f.edges)),
	)
	recordBuildMetrics(ctx, time.Since(start), len(f.nodes), len(f.edges), true)

	slog.Debug("forest built",
		slog.Int("instances", len(f.instances)),
		slog.Int("max_depth", maxDepth),
		slog.Int("nodes", len(f.nodes)),
		slog.Int("edges", len(f.edges)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return f, nil
}

func (b *Builder) build(ctx context.Context, store *triples.Store, instances []string, maxDepth int) (*Forest, error) {
	if maxDepth < 0 {
		return nil, &GraphConstructionError{Err: fmt.Errorf("%w: got %d", ErrNegativeDepth, maxDepth)}
	}
	if len(instances) == 0 {
		return nil, &GraphConstructionError{Err: ErrNoInstances}
	}
	if store == nil {
		store = triples.NewStore()
	}

	unique := dedupe(instances)
	if b.options.StrictInstances {
		for _, inst := range unique {
			if !store.Has(inst) {
				return nil, &GraphConstructionError{Instance: inst, Err: ErrUnknownInstance}
			}
		}
	}

	plans, err := b.discoverAll(ctx, store, unique, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("discover subgraphs: %w", err)
	}

	f := &Forest{
		maxDepth:  maxDepth,
		instances: unique,
		members:   make(map[string]*Membership, len(unique)),
		nodeIndex: make(map[nodeKey]int),
		edgeIndex: make(map[edgeKey]int),
	}
	for _, p := range plans {
		if err := f.materialize(p); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// discoverAll computes one plan per instance, in parallel above the threshold.
func (b *Builder) discoverAll(ctx context.Context, store *triples.Store, instances []string, maxDepth int) ([]plan, error) {
	plans := make([]plan, len(instances))

	if len(instances) < parallelThreshold || b.options.WorkerCount == 1 {
		for i, inst := range instances {
			p, err := discover(ctx, store, inst, maxDepth)
			if err != nil {
				return nil, err
			}
			plans[i] = p
		}
		return plans, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.options.WorkerCount)
	for i, inst := range instances {
		g.Go(func() error {
			p, err := discover(gctx, store, inst, maxDepth)
			if err != nil {
				return err
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// discover runs the reverse BFS of one instance against the store.
//
// The frontier keeps first-discovery order so that the scan, and therefore
// the forest, is deterministic.
func discover(ctx context.Context, store *triples.Store, instance string, maxDepth int) (plan, error) {
	p := plan{instance: instance}
	frontier := []string{instance}

	for depth := maxDepth - 1; depth >= 0 && len(frontier) > 0; depth-- {
		if err := ctx.Err(); err != nil {
			return plan{}, err
		}

		var round []triples.Triple
		var next []string
		seen := make(map[string]struct{})
		for _, subject := range frontier {
			for _, t := range store.Outgoing(subject) {
				round = append(round, t)
				if _, ok := seen[t.Object]; !ok {
					seen[t.Object] = struct{}{}
					next = append(next, t.Object)
				}
			}
		}
		p.rounds = append(p.rounds, round)
		frontier = next
	}
	return p, nil
}

// materialize adds the root and the occurrences of one plan to the forest.
func (f *Forest) materialize(p plan) error {
	root := f.nodeAt(p.instance, f.maxDepth, true)
	ms := &memberSet{
		m:     &Membership{Instance: p.instance},
		nodes: make(map[string]struct{}),
		edges: make(map[triples.Triple]struct{}),
	}
	ms.addNode(p.instance, root, f.maxDepth)

	for k, round := range p.rounds {
		depth := f.maxDepth - 1 - k
		for _, t := range round {
			src, ok := f.LookupNode(t.Subject, depth+1)
			if !ok {
				return fmt.Errorf("subject %q missing at depth %d", t.Subject, depth+1)
			}
			obj := f.nodeAt(t.Object, depth, false)
			e := f.edgeAt(t, depth, src, obj)

			ms.addNode(t.Object, obj, depth)
			ms.addEdge(t, e, depth)
		}
	}

	f.members[p.instance] = ms.m
	return nil
}

// nodeAt returns the occurrence of resource at depth, creating it if needed.
func (f *Forest) nodeAt(resource string, depth int, root bool) int {
	key := nodeKey{resource: resource, depth: depth}
	if i, ok := f.nodeIndex[key]; ok {
		return i
	}
	i := len(f.nodes)
	f.nodes = append(f.nodes, Node{
		Index:    i,
		Resource: resource,
		Depth:    depth,
		Root:     root,
	})
	f.nodeIndex[key] = i
	return i
}

// edgeAt returns the occurrence of t at depth, creating it and registering
// it as a neighbor of its object if needed.
func (f *Forest) edgeAt(t triples.Triple, depth, src, obj int) int {
	key := edgeKey{triple: t, depth: depth}
	if i, ok := f.edgeIndex[key]; ok {
		return i
	}
	i := len(f.edges)
	f.edges = append(f.edges, Edge{
		Index:     i,
		Subject:   t.Subject,
		Predicate: t.Predicate,
		Object:    t.Object,
		Depth:     depth,
		Target:    obj,
		Neighbor:  src,
	})
	f.edgeIndex[key] = i
	f.nodes[obj].Neighbors = append(f.nodes[obj].Neighbors, i)
	return i
}

func (s *memberSet) addNode(resource string, idx, depth int) {
	if _, ok := s.nodes[resource]; ok {
		return
	}
	s.nodes[resource] = struct{}{}
	s.m.Nodes = append(s.m.Nodes, Member{Ref: NodeRef(idx), Depth: depth})
}

func (s *memberSet) addEdge(t triples.Triple, idx, depth int) {
	if _, ok := s.edges[t]; ok {
		return
	}
	s.edges[t] = struct{}{}
	s.m.Edges = append(s.m.Edges, Member{Ref: EdgeRef(idx), Depth: depth})
}

func dedupe(instances []string) []string {
	seen := make(map[string]struct{}, len(instances))
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		if _, ok := seen[inst]; ok {
			continue
		}
		seen[inst] = struct{}{}
		out = append(out, inst)
	}
	return out
}
