// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kernel computes Weisfeiler-Lehman subtree kernels between the
// instances of a labeled forest.
//
// The kernel of two instances sums, over iterations 0..k, the multiset
// overlap of their node labels plus the overlap of their edge labels,
// weighting iteration i by (i+1)/(k+1).
//
// # Components
//
//   - Evaluator computes single kernel values.
//   - MatrixBuilder computes the full symmetric kernel matrix.
//   - Session owns the forest, label table and relabeler of one batch.
//
// # Thread Safety
//
// Evaluator, MatrixBuilder and Session are safe for concurrent use. The
// label table serializes its own extension.
package kernel

import "errors"

var (
	// ErrNegativeIterations is returned when iterations < 0.
	ErrNegativeIterations = errors.New("iterations must be non-negative")

	// ErrEmptyMatrix is returned when a matrix is requested for no instances.
	ErrEmptyMatrix = errors.New("matrix requires at least one instance")
)
