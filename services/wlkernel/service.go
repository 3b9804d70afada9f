// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package wlkernel serves Weisfeiler-Lehman kernel computations over HTTP.
//
// A Service holds named RDF datasets loaded from N-Triples files. Each
// request builds a fresh kernel.Session for the requested instances, so
// concurrent requests share nothing but the read-only triple stores and the
// optional result cache.
package wlkernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/cache"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/config"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/export"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/kernel"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

// ServiceConfig holds request defaults and limits.
type ServiceConfig struct {
	// MaxDepth and Iterations apply when a request omits them.
	MaxDepth   int
	Iterations int

	// Workers bounds forest and matrix parallelism. 0 means GOMAXPROCS.
	Workers int

	// MaxInstances caps the rows of a matrix request. 0 disables the cap.
	MaxInstances int

	// StrictInstances rejects instances that never appear as a subject.
	StrictInstances bool

	// RequestTimeout bounds each computation. 0 disables the bound.
	RequestTimeout time.Duration

	Version string
}

// ServiceConfigFrom extracts the service settings from a loaded config.
func ServiceConfigFrom(cfg config.Config, version string) ServiceConfig {
	return ServiceConfig{
		MaxDepth:        cfg.Kernel.MaxDepth,
		Iterations:      cfg.Kernel.Iterations,
		Workers:         cfg.Kernel.Workers,
		MaxInstances:    cfg.Server.MaxInstances,
		StrictInstances: cfg.Kernel.StrictInstances,
		RequestTimeout:  cfg.Server.RequestTimeout,
		Version:         version,
	}
}

type dataset struct {
	info      DatasetInfo
	store     *triples.Store
	instances []string
}

// Service computes kernels over registered datasets.
//
// Thread Safety: safe for concurrent use.
type Service struct {
	config ServiceConfig
	cache  *cache.Cache

	mu       sync.RWMutex
	datasets map[string]*dataset
}

// NewService creates a Service. c may be nil to disable result caching.
func NewService(cfg ServiceConfig, c *cache.Cache) *Service {
	return &Service{
		config:   cfg,
		cache:    c,
		datasets: make(map[string]*dataset),
	}
}

// Config returns the service settings.
func (s *Service) Config() ServiceConfig { return s.config }

// AddDataset registers store under name.
//
// Description:
//
//	When instancePredicate is set, the subjects of triples whose predicate
//	ends with it become the dataset's default matrix instances.
//
// Outputs:
//
//	error - ErrDatasetExists if name is already registered.
func (s *Service) AddDataset(name, path string, store *triples.Store, instancePredicate string) error {
	var instances []string
	if instancePredicate != "" {
		instances = store.SubjectsWithPredicateSuffix(instancePredicate)
	}
	ds := &dataset{
		info: DatasetInfo{
			Name:              name,
			Path:              path,
			Triples:           store.Len(),
			Fingerprint:       store.Fingerprint(),
			InstancePredicate: instancePredicate,
			DefaultInstances:  len(instances),
		},
		store:     store,
		instances: instances,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[name]; ok {
		return fmt.Errorf("%w: %s", ErrDatasetExists, name)
	}
	s.datasets[name] = ds
	return nil
}

// LoadDatasets reads every configured N-Triples file and registers it.
//
// Outputs:
//
//	error - The first load or registration error. Datasets loaded before
//	        the failure stay registered.
func (s *Service) LoadDatasets(ctx context.Context, datasets []config.DatasetConfig) error {
	for _, dc := range datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		store, err := triples.LoadFile(dc.Path)
		if err != nil {
			return fmt.Errorf("load dataset %s: %w", dc.Name, err)
		}
		if err := s.AddDataset(dc.Name, dc.Path, store, dc.InstancePredicate); err != nil {
			return err
		}
		slog.Info("dataset loaded",
			slog.String("dataset", dc.Name),
			slog.Int("triples", store.Len()),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// Datasets returns the registered datasets sorted by name.
func (s *Service) Datasets() []DatasetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DatasetInfo, 0, len(s.datasets))
	for _, ds := range s.datasets {
		out = append(out, ds.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) dataset(name string) (*dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	return ds, nil
}

// Kernel computes one kernel value.
//
// Description:
//
//	Builds a forest rooted at the two instances and returns their kernel
//	after the requested number of relabelling rounds.
//
// Outputs:
//
//	*KernelResponse - The value and the depth/iterations actually used.
//	error - ErrDatasetNotFound, *forest.GraphConstructionError, or a
//	        context error when the request timeout elapses.
func (s *Service) Kernel(ctx context.Context, req *KernelRequest) (*KernelResponse, error) {
	ds, err := s.dataset(req.Dataset)
	if err != nil {
		return nil, err
	}
	depth, iterations := s.resolve(req.MaxDepth, req.Iterations)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := kernel.NewSession(ctx, ds.store, []string{req.InstanceA, req.InstanceB}, depth, s.sessionOptions()...)
	if err != nil {
		return nil, err
	}
	value, err := sess.Kernel(ctx, req.InstanceA, req.InstanceB, iterations)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	return &KernelResponse{
		Dataset:    req.Dataset,
		InstanceA:  req.InstanceA,
		InstanceB:  req.InstanceB,
		Value:      value,
		MaxDepth:   depth,
		Iterations: iterations,
	}, nil
}

// Matrix computes a kernel matrix, consulting the cache first.
//
// Description:
//
//	An empty instance list selects the dataset's default instances. Results
//	are cached under the dataset fingerprint, so a reloaded file with the
//	same triples keeps hitting earlier entries. Cache failures are logged
//	and never fail the request.
//
// Outputs:
//
//	*MatrixResponse - Rows in instance order, Cached set on a cache hit.
//	error - ErrDatasetNotFound, ErrNoInstances, ErrTooManyInstances,
//	        *forest.GraphConstructionError or a context error.
func (s *Service) Matrix(ctx context.Context, req *MatrixRequest) (*MatrixResponse, error) {
	ds, err := s.dataset(req.Dataset)
	if err != nil {
		return nil, err
	}
	instances := req.Instances
	if len(instances) == 0 {
		instances = ds.instances
	}
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	if s.config.MaxInstances > 0 && len(instances) > s.config.MaxInstances {
		return nil, fmt.Errorf("%w: %d requested, limit %d", ErrTooManyInstances, len(instances), s.config.MaxInstances)
	}
	depth, iterations := s.resolve(req.MaxDepth, req.Iterations)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	creq := cache.Request{
		Fingerprint: ds.info.Fingerprint,
		Instances:   instances,
		MaxDepth:    depth,
		Iterations:  iterations,
		Normalize:   req.Normalize,
	}
	resp := &MatrixResponse{
		Dataset:    req.Dataset,
		Instances:  instances,
		MaxDepth:   depth,
		Iterations: iterations,
		Normalized: req.Normalize,
	}

	if s.cache != nil {
		m, order, err := s.cache.Get(ctx, creq)
		switch {
		case err == nil:
			cacheLookups.WithLabelValues("hit").Inc()
			resp.Instances = order
			resp.Matrix = export.Rows(m)
			resp.Cached = true
			return resp, nil
		case errors.Is(err, cache.ErrCacheMiss):
			cacheLookups.WithLabelValues("miss").Inc()
		default:
			cacheLookups.WithLabelValues("error").Inc()
			slog.Warn("cache lookup failed", slog.String("dataset", req.Dataset), slog.String("error", err.Error()))
		}
	}

	sess, err := kernel.NewSession(ctx, ds.store, instances, depth, s.sessionOptions()...)
	if err != nil {
		return nil, err
	}
	m, err := sess.Matrix(ctx, instances, iterations)
	if err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}
	if req.Normalize {
		m = kernel.Normalize(m)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, creq, instances, m); err != nil {
			slog.Warn("cache store failed", slog.String("dataset", req.Dataset), slog.String("error", err.Error()))
		}
	}
	resp.Matrix = export.Rows(m)
	return resp, nil
}

func (s *Service) resolve(depth, iterations *int) (int, int) {
	d, it := s.config.MaxDepth, s.config.Iterations
	if depth != nil {
		d = *depth
	}
	if iterations != nil {
		it = *iterations
	}
	return d, it
}

func (s *Service) sessionOptions() []kernel.SessionOption {
	opts := []kernel.SessionOption{
		kernel.WithBuilderOptions(forest.WithStrictInstances(s.config.StrictInstances)),
	}
	if s.config.Workers > 0 {
		opts = append(opts, kernel.WithWorkers(s.config.Workers))
	}
	return opts
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}
