// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forest builds the shared occurrence forest that the WL kernel
// labels and compares.
//
// A Forest holds one node occurrence per (resource, depth) and one edge
// occurrence per (subject, predicate, object, depth), stored in two flat
// arenas and referenced by index. Depth counts down from MaxDepth at the
// roots to 0 at the farthest layer. Each root instance additionally records
// which occurrences belong to its own bounded subgraph (its Membership).
//
// # Thread Safety
//
// A Forest is immutable once Build returns and may be read from any number
// of goroutines.
//
// # Lifecycle
//
//  1. Create a Builder with NewBuilder(opts...)
//  2. Build(ctx, store, instances, maxDepth) once per comparison batch
//  3. Hand the Forest to labels.NewTable and relabel.New
package forest

import (
	"errors"
	"fmt"
)

// Sentinel errors for forest construction and lookups.
var (
	// ErrNegativeDepth is returned when maxDepth < 0.
	ErrNegativeDepth = errors.New("max depth must be non-negative")

	// ErrNoInstances is returned when the instance list is empty.
	ErrNoInstances = errors.New("at least one instance is required")

	// ErrUnknownInstance is returned when an instance has no corresponding
	// resource (strict mode) or is not part of a built forest.
	ErrUnknownInstance = errors.New("unknown instance")
)

// GraphConstructionError reports a forest that could not be built.
//
// The forest is unusable after this error; no partial result is returned.
type GraphConstructionError struct {
	// Instance is the offending root instance, empty for batch-level errors.
	Instance string
	Err      error
}

func (e *GraphConstructionError) Error() string {
	if e.Instance != "" {
		return fmt.Sprintf("graph construction: instance %q: %v", e.Instance, e.Err)
	}
	return fmt.Sprintf("graph construction: %v", e.Err)
}

func (e *GraphConstructionError) Unwrap() error {
	return e.Err
}
