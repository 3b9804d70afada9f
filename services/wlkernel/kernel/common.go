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

// Histogram counts label occurrences.
type Histogram map[string]int

// NewHistogram counts labels.
func NewHistogram(labels []string) Histogram {
	h := make(Histogram, len(labels))
	for _, l := range labels {
		h[l]++
	}
	return h
}

// Dot returns the multiset inner product of h and o.
func (h Histogram) Dot(o Histogram) int {
	if len(o) < len(h) {
		h, o = o, h
	}
	total := 0
	for label, n := range h {
		total += n * o[label]
	}
	return total
}

// Common returns the multiset inner product of x and y: for every value in
// both, the product of its counts.
//
// Example:
//
//	Common([]string{"a", "a", "b"}, []string{"a", "c"}) == 2
func Common(x, y []string) int {
	return NewHistogram(x).Dot(NewHistogram(y))
}

// profile is the per-iteration label histograms of one instance.
type profile struct {
	nodes []Histogram
	edges []Histogram
}

// overlap returns the unweighted overlap of p and o at iteration it.
func (p *profile) overlap(o *profile, it int) int {
	return p.nodes[it].Dot(o.nodes[it]) + p.edges[it].Dot(o.edges[it])
}

// weighted combines the overlaps at iterations 0..k.
func (p *profile) weighted(o *profile, k int) float64 {
	total := 0.0
	for it := 0; it <= k; it++ {
		total += float64(it+1) / float64(k+1) * float64(p.overlap(o, it))
	}
	return total
}
