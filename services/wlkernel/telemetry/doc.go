// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for wlkernel.
//
// Init installs the global TracerProvider and MeterProvider. Library
// packages (forest, relabel, kernel) obtain their tracer and meter through
// otel.Tracer and otel.Meter at package level, so they report through
// whatever providers Init installed, or through the no-op defaults when it
// was never called.
//
// # Exporters
//
// Traces: "otlp" (gRPC), "stdout" or "none".
// Metrics: "prometheus" (served by MetricsHandler), "stdout" or "none".
//
// # Environment
//
//   - WLKERNEL_ENV: deployment environment
//   - OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER: exporter overrides
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP gRPC endpoint
package telemetry
