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
	"slices"
	"strconv"
	"strings"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/labels"
)

// batch is the compression context of one refinement round.
type batch struct {
	nodes []string
	edges []string
	seen  map[string]struct{}
}

func newBatch(nodes, edges int) *batch {
	return &batch{
		nodes: make([]string, nodes),
		edges: make([]string, edges),
		seen:  make(map[string]struct{}, nodes+edges),
	}
}

// addNode records the expanded label of node i. multiset is sorted in place.
func (b *batch) addNode(i int, prev string, multiset []string) {
	slices.Sort(multiset)
	s := expand(prev, multiset...)
	b.nodes[i] = s
	b.seen[s] = struct{}{}
}

func (b *batch) addEdge(i int, prev, neighbor string) {
	s := expand(prev, neighbor)
	b.edges[i] = s
	b.seen[s] = struct{}{}
}

// compress numbers the distinct expanded labels in sorted order and maps
// every occurrence to its number.
func (b *batch) compress() labels.Layer {
	alphabet := make([]string, 0, len(b.seen))
	for s := range b.seen {
		alphabet = append(alphabet, s)
	}
	slices.Sort(alphabet)

	ids := make(map[string]string, len(alphabet))
	for i, s := range alphabet {
		ids[s] = strconv.Itoa(i)
	}

	layer := labels.Layer{
		Nodes: make([]string, len(b.nodes)),
		Edges: make([]string, len(b.edges)),
	}
	for i, s := range b.nodes {
		layer.Nodes[i] = ids[s]
	}
	for i, s := range b.edges {
		layer.Edges[i] = ids[s]
	}
	return layer
}

// expand joins parts as "<len>:<part>" so that distinct part lists never
// produce the same string.
func expand(prev string, multiset ...string) string {
	var sb strings.Builder
	size := len(prev) + 4
	for _, s := range multiset {
		size += len(s) + 4
	}
	sb.Grow(size)

	writePart(&sb, prev)
	for _, s := range multiset {
		writePart(&sb, s)
	}
	return sb.String()
}

func writePart(sb *strings.Builder, s string) {
	sb.WriteString(strconv.Itoa(len(s)))
	sb.WriteByte(':')
	sb.WriteString(s)
}
