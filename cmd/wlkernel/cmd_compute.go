// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/export"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/kernel"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/sweep"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

var (
	errNoInstances   = errors.New("no instances: pass them as arguments or use --instances-by-predicate")
	errUnknownFormat = errors.New("unknown output format")
)

// computeOptions is the resolved flag and config state of one command.
type computeOptions struct {
	depth       int
	iterations  int
	workers     int
	strict      bool
	normalize   bool
	raw         bool
	format      string
	byPredicate string
	depths      []int
	sweepIters  []int
}

// resolveOptions applies config defaults to every flag the user left unset.
func resolveOptions(cmd *cobra.Command) computeOptions {
	opts := computeOptions{
		depth:       maxDepth,
		iterations:  iterations,
		workers:     workers,
		strict:      appConfig.Kernel.StrictInstances,
		normalize:   normalize,
		raw:         sweepRaw,
		format:      format,
		byPredicate: byPredicate,
		depths:      sweepDepths,
		sweepIters:  sweepIterations,
	}
	flags := cmd.Flags()
	if !flags.Changed("depth") {
		opts.depth = appConfig.Kernel.MaxDepth
	}
	if !flags.Changed("iterations") {
		opts.iterations = appConfig.Kernel.Iterations
	}
	if !flags.Changed("workers") {
		opts.workers = appConfig.Kernel.Workers
	}
	return opts
}

func (o computeOptions) sessionOptions() []kernel.SessionOption {
	sessionOpts := []kernel.SessionOption{
		kernel.WithBuilderOptions(forest.WithStrictInstances(o.strict)),
	}
	if o.workers > 0 {
		sessionOpts = append(sessionOpts, kernel.WithWorkers(o.workers))
	}
	return sessionOpts
}

func runKernel(cmd *cobra.Command, args []string) error {
	return kernelCommand(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], args[2], resolveOptions(cmd))
}

func runMatrix(cmd *cobra.Command, args []string) error {
	return withOutput(cmd, func(w io.Writer) error {
		return matrixCommand(cmd.Context(), w, args[0], args[1:], resolveOptions(cmd))
	})
}

func runSweep(cmd *cobra.Command, args []string) error {
	return withOutput(cmd, func(w io.Writer) error {
		return sweepCommand(cmd.Context(), w, args[0], args[1:], resolveOptions(cmd))
	})
}

// kernelCommand prints k(a, b) for the file at path.
func kernelCommand(ctx context.Context, w io.Writer, path, a, b string, opts computeOptions) error {
	store, err := loadStore(path)
	if err != nil {
		return err
	}
	sess, err := kernel.NewSession(ctx, store, []string{a, b}, opts.depth, opts.sessionOptions()...)
	if err != nil {
		return err
	}
	value, err := sess.Kernel(ctx, a, b, opts.iterations)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, value)
	return err
}

// matrixCommand writes the kernel matrix of instances in opts.format.
func matrixCommand(ctx context.Context, w io.Writer, path string, instances []string, opts computeOptions) error {
	store, err := loadStore(path)
	if err != nil {
		return err
	}
	instances, err = selectInstances(store, instances, opts.byPredicate)
	if err != nil {
		return err
	}

	start := time.Now()
	sess, err := kernel.NewSession(ctx, store, instances, opts.depth, opts.sessionOptions()...)
	if err != nil {
		return err
	}
	m, err := sess.Matrix(ctx, instances, opts.iterations)
	if err != nil {
		return err
	}
	if opts.normalize {
		m = kernel.Normalize(m)
	}
	slog.Info("matrix computed",
		slog.Int("instances", len(instances)),
		slog.Int("max_depth", opts.depth),
		slog.Int("iterations", opts.iterations),
		slog.Duration("duration", time.Since(start)),
	)

	switch opts.format {
	case "csv":
		return export.WriteMatrixCSV(w, instances, m)
	case "json":
		return export.WriteMatrixJSON(w, instances, m)
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, opts.format)
	}
}

// sweepCommand writes one summary row per (depth, iterations) pair.
func sweepCommand(ctx context.Context, w io.Writer, path string, instances []string, opts computeOptions) error {
	write := export.WriteSweepCSV
	switch opts.format {
	case "csv":
	case "latex":
		write = export.WriteSweepLaTeX
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, opts.format)
	}

	store, err := loadStore(path)
	if err != nil {
		return err
	}
	instances, err = selectInstances(store, instances, opts.byPredicate)
	if err != nil {
		return err
	}

	rows, err := sweep.Run(ctx, store, instances, opts.depths, opts.sweepIters,
		sweep.WithRaw(opts.raw),
		sweep.WithSessionOptions(opts.sessionOptions()...),
		sweep.WithProgress(func(r sweep.Row) {
			slog.Info("sweep row done", slog.Int("depth", r.Depth), slog.Int("iterations", r.Iterations))
		}),
	)
	if err != nil {
		return err
	}
	return write(w, rows)
}

func loadStore(path string) (*triples.Store, error) {
	start := time.Now()
	store, err := triples.LoadFile(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("triples loaded",
		slog.String("path", path),
		slog.Int("triples", store.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return store, nil
}

// selectInstances returns explicit when non-empty, else the subjects of
// predicates ending with suffix.
func selectInstances(store *triples.Store, explicit []string, suffix string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	if suffix == "" {
		return nil, errNoInstances
	}
	instances := store.SubjectsWithPredicateSuffix(suffix)
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: no predicate ends with %q", errNoInstances, suffix)
	}
	return instances, nil
}

// withOutput runs fn against --output when set, else stdout.
func withOutput(cmd *cobra.Command, fn func(io.Writer) error) error {
	if outputPath == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("output written", slog.String("path", outputPath))
	return nil
}
