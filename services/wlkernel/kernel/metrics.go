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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("wlkernel.kernel")
	meter  = otel.Meter("wlkernel.kernel")
)

var (
	evaluationsTotal metric.Int64Counter
	matrixLatency    metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		evaluationsTotal, err = meter.Int64Counter(
			"wl_kernel_evaluations_total",
			metric.WithDescription("Kernel values computed, one per matrix cell"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		matrixLatency, err = meter.Float64Histogram(
			"wl_matrix_duration_seconds",
			metric.WithDescription("Duration of kernel matrix construction"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordEvaluations(ctx context.Context, n int64) {
	if initMetrics() != nil {
		return
	}
	evaluationsTotal.Add(ctx, n)
}

func recordMatrix(ctx context.Context, d time.Duration, success bool) {
	if initMetrics() != nil {
		return
	}
	matrixLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}
