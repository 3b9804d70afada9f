// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package labels holds the layered label table of a forest.
//
// Layer 0 is derived directly from the forest: node occurrences carry their
// resource (or "root" for instance roots) and edge occurrences carry their
// predicate. Every further layer is appended by a Refiner, typically the WL
// relabeler. Layers are never modified once appended.
//
// # Thread Safety
//
// Table is safe for concurrent use. Appends are serialized; readers always
// observe complete layers.
package labels

import (
	"errors"
	"fmt"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/forest"
)

var (
	// ErrOccurrenceNotFound is returned for an arena index out of range.
	ErrOccurrenceNotFound = errors.New("occurrence not found")

	// ErrDepthMismatch is returned when the requested depth differs from the
	// depth of the occurrence.
	ErrDepthMismatch = errors.New("depth does not match occurrence")

	// ErrIterationNotComputed is returned for a layer that does not exist
	// and cannot be computed because no refiner is attached.
	ErrIterationNotComputed = errors.New("iteration not computed")

	// ErrNegativeIteration is returned for iteration < 0.
	ErrNegativeIteration = errors.New("iteration must be non-negative")

	// ErrLayerShape is returned when a refiner produces a layer whose size
	// differs from the forest arenas.
	ErrLayerShape = errors.New("refined layer does not match forest")

	// ErrNoRefiner is returned by Extend when called with a nil refiner.
	ErrNoRefiner = errors.New("refiner is nil")
)

// LookupError reports a failed label lookup.
type LookupError struct {
	// Ref is the occurrence looked up. Zero for instance lookups.
	Ref forest.Ref

	// Instance is set for per-instance lookups.
	Instance string

	Depth     int
	Iteration int
	Err       error
}

func (e *LookupError) Error() string {
	if e.Instance != "" {
		return fmt.Sprintf("label lookup: instance %q at iteration %d: %v", e.Instance, e.Iteration, e.Err)
	}
	return fmt.Sprintf("label lookup: %s %d at depth %d, iteration %d: %v",
		e.Ref.Kind, e.Ref.Index, e.Depth, e.Iteration, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
