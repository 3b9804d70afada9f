// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wlkernel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequests counts API requests by route and response status.
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wl_http_requests_total",
			Help: "Total kernel API requests by route and status code",
		},
		[]string{"route", "status"},
	)

	// cacheLookups counts matrix cache lookups by result (hit, miss, error).
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wl_cache_lookups_total",
			Help: "Total matrix cache lookups by result",
		},
		[]string{"result"},
	)

	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wl_http_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)
)
