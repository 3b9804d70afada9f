// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relabel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
)

var (
	tracer = otel.Tracer("wlkernel.relabel")
	meter  = otel.Meter("wlkernel.relabel")
)

var (
	refineLatency metric.Float64Histogram
	refineLabels  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		refineLatency, err = meter.Float64Histogram(
			"wl_relabel_duration_seconds",
			metric.WithDescription("Duration of one relabel round"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		refineLabels, err = meter.Int64Histogram(
			"wl_relabel_labels",
			metric.WithDescription("Distinct labels produced by one relabel round"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordRefineMetrics(ctx context.Context, duration time.Duration, distinct int) {
	if err := initMetrics(); err != nil {
		return
	}
	refineLatency.Record(ctx, duration.Seconds())
	refineLabels.Record(ctx, int64(distinct))
}

func startRefineSpan(ctx context.Context, f *forest.Forest) (context.Context, trace.Span) {
	return tracer.Start(ctx, "relabel.Relabeler.Refine",
		trace.WithAttributes(
			attribute.Int("forest.nodes", f.NodeCount()),
			attribute.Int("forest.edges", f.EdgeCount()),
		),
	)
}
