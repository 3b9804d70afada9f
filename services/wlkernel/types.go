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

// KernelRequest is the body of POST /v1/wlkernel/kernel.
type KernelRequest struct {
	Dataset   string `json:"dataset" binding:"required"`
	InstanceA string `json:"instance_a" binding:"required"`
	InstanceB string `json:"instance_b" binding:"required"`

	// MaxDepth defaults to the server's kernel.max_depth.
	MaxDepth *int `json:"max_depth,omitempty" binding:"omitempty,gte=0,lte=32"`

	// Iterations defaults to the server's kernel.iterations.
	Iterations *int `json:"iterations,omitempty" binding:"omitempty,gte=0,lte=64"`
}

// KernelResponse is the result of a kernel request.
type KernelResponse struct {
	Dataset    string  `json:"dataset"`
	InstanceA  string  `json:"instance_a"`
	InstanceB  string  `json:"instance_b"`
	Value      float64 `json:"value"`
	MaxDepth   int     `json:"max_depth"`
	Iterations int     `json:"iterations"`
}

// MatrixRequest is the body of POST /v1/wlkernel/matrix.
type MatrixRequest struct {
	Dataset string `json:"dataset" binding:"required"`

	// Instances lists rows in order. Empty selects the dataset's default
	// instances.
	Instances []string `json:"instances,omitempty" binding:"omitempty,dive,required"`

	MaxDepth   *int `json:"max_depth,omitempty" binding:"omitempty,gte=0,lte=32"`
	Iterations *int `json:"iterations,omitempty" binding:"omitempty,gte=0,lte=64"`

	// Normalize returns k(i,j)/sqrt(k(i,i)k(j,j)).
	Normalize bool `json:"normalize"`
}

// MatrixResponse is the result of a matrix request.
type MatrixResponse struct {
	Dataset    string      `json:"dataset"`
	Instances  []string    `json:"instances"`
	Matrix     [][]float64 `json:"matrix"`
	MaxDepth   int         `json:"max_depth"`
	Iterations int         `json:"iterations"`
	Normalized bool        `json:"normalized"`
	Cached     bool        `json:"cached"`
}

// DatasetInfo describes one loaded dataset.
type DatasetInfo struct {
	Name              string `json:"name"`
	Path              string `json:"path,omitempty"`
	Triples           int    `json:"triples"`
	Fingerprint       string `json:"fingerprint"`
	InstancePredicate string `json:"instance_predicate,omitempty"`
	DefaultInstances  int    `json:"default_instances"`
}

// DatasetsResponse is the body of GET /v1/wlkernel/datasets.
type DatasetsResponse struct {
	Datasets []DatasetInfo `json:"datasets"`
}

// HealthResponse is the body of GET /v1/wlkernel/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Datasets int    `json:"datasets"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is one of the Code* constants.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
