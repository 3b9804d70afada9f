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
	"context"
	"errors"
	"net/http"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/kernel"
)

var (
	// ErrDatasetNotFound is returned for an unknown dataset name.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrDatasetExists is returned when a dataset name is registered twice.
	ErrDatasetExists = errors.New("dataset already registered")

	// ErrTooManyInstances is returned when a matrix request exceeds the
	// configured instance limit.
	ErrTooManyInstances = errors.New("too many instances")

	// ErrNoInstances is returned when a matrix request names no instances
	// and the dataset has no default instance predicate.
	ErrNoInstances = errors.New("no instances requested")
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeDatasetNotFound   = "DATASET_NOT_FOUND"
	CodeInstanceNotFound  = "INSTANCE_NOT_FOUND"
	CodeGraphConstruction = "GRAPH_CONSTRUCTION"
	CodeTooManyInstances  = "TOO_MANY_INSTANCES"
	CodeRateLimited       = "RATE_LIMITED"
	CodeTimeout           = "TIMEOUT"
	CodeInternal          = "INTERNAL"
)

// errorStatus maps a service error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	var gce *forest.GraphConstructionError
	switch {
	case errors.Is(err, ErrDatasetNotFound):
		return http.StatusNotFound, CodeDatasetNotFound
	case errors.Is(err, forest.ErrUnknownInstance):
		return http.StatusNotFound, CodeInstanceNotFound
	case errors.Is(err, ErrTooManyInstances):
		return http.StatusRequestEntityTooLarge, CodeTooManyInstances
	case errors.As(err, &gce):
		return http.StatusUnprocessableEntity, CodeGraphConstruction
	case errors.Is(err, ErrNoInstances), errors.Is(err, kernel.ErrNegativeIterations):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
