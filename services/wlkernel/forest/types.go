// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forest

import (
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/triples"
)

// RootLabel is the layer-0 label of every root occurrence.
const RootLabel = "root"

// Kind distinguishes node and edge occurrences.
type Kind uint8

const (
	KindNode Kind = iota
	KindEdge
)

// String returns "node" or "edge".
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// Ref names one occurrence in either arena.
type Ref struct {
	Kind  Kind
	Index int
}

// NodeRef returns a Ref into the node arena.
func NodeRef(i int) Ref { return Ref{Kind: KindNode, Index: i} }

// EdgeRef returns a Ref into the edge arena.
func EdgeRef(i int) Ref { return Ref{Kind: KindEdge, Index: i} }

// Node is one resource as seen at one depth.
type Node struct {
	// Index is the position in the node arena.
	Index int

	// Resource is the RDF resource identifier.
	Resource string

	// Depth is the layer of this occurrence; roots sit at MaxDepth.
	Depth int

	// Root marks the root occurrence of an instance. Its layer-0 label is
	// RootLabel rather than Resource.
	Root bool

	// Neighbors are edge arena indices at the same depth whose object is
	// this node.
	Neighbors []int
}

// Edge is one triple as seen at the depth of its object.
type Edge struct {
	Index     int
	Subject   string
	Predicate string
	Object    string
	Depth     int

	// Target is the object node occurrence at Depth.
	Target int

	// Neighbor is the subject node occurrence at Depth+1, one hop closer
	// to the root.
	Neighbor int
}

// Member is one occurrence in an instance's subgraph, annotated with the
// depth at which that instance first reached it.
type Member struct {
	Ref   Ref
	Depth int
}

// Membership lists the occurrences of one instance's subgraph.
//
// Nodes are keyed by resource and edges by triple: the first depth at which
// the instance reaches a resource or triple wins. The root is always the
// first node member.
type Membership struct {
	Instance string
	Nodes    []Member
	Edges    []Member
}

// Size returns the number of node and edge members.
func (m *Membership) Size() (nodes, edges int) {
	return len(m.Nodes), len(m.Edges)
}

// Stats summarises a forest for logs and API responses.
type Stats struct {
	Instances int `json:"instances"`
	MaxDepth  int `json:"max_depth"`
	Nodes     int `json:"nodes"`
	Edges     int `json:"edges"`
}

type nodeKey struct {
	resource string
	depth    int
}

type edgeKey struct {
	triple triples.Triple
	depth  int
}

// Forest is the shared occurrence forest of one comparison batch.
type Forest struct {
	maxDepth  int
	nodes     []Node
	edges     []Edge
	instances []string
	members   map[string]*Membership

	nodeIndex map[nodeKey]int
	edgeIndex map[edgeKey]int
}

// MaxDepth returns the depth of the root layer.
func (f *Forest) MaxDepth() int { return f.maxDepth }

// Nodes returns the node arena. It must not be modified.
func (f *Forest) Nodes() []Node { return f.nodes }

// Edges returns the edge arena. It must not be modified.
func (f *Forest) Edges() []Edge { return f.edges }

// NodeCount returns the size of the node arena.
func (f *Forest) NodeCount() int { return len(f.nodes) }

// EdgeCount returns the size of the edge arena.
func (f *Forest) EdgeCount() int { return len(f.edges) }

// Instances returns the distinct root instances in build order.
func (f *Forest) Instances() []string { return f.instances }

// Membership returns the subgraph of instance.
func (f *Forest) Membership(instance string) (*Membership, bool) {
	m, ok := f.members[instance]
	return m, ok
}

// Depth returns the depth of the occurrence ref.
func (f *Forest) Depth(ref Ref) (int, bool) {
	switch ref.Kind {
	case KindNode:
		if ref.Index < 0 || ref.Index >= len(f.nodes) {
			return 0, false
		}
		return f.nodes[ref.Index].Depth, true
	case KindEdge:
		if ref.Index < 0 || ref.Index >= len(f.edges) {
			return 0, false
		}
		return f.edges[ref.Index].Depth, true
	default:
		return 0, false
	}
}

// LookupNode returns the arena index of resource at depth.
func (f *Forest) LookupNode(resource string, depth int) (int, bool) {
	i, ok := f.nodeIndex[nodeKey{resource: resource, depth: depth}]
	return i, ok
}

// LookupEdge returns the arena index of t at depth.
func (f *Forest) LookupEdge(t triples.Triple, depth int) (int, bool) {
	i, ok := f.edgeIndex[edgeKey{triple: t, depth: depth}]
	return i, ok
}

// Stats returns arena and instance counts.
func (f *Forest) Stats() Stats {
	return Stats{
		Instances: len(f.instances),
		MaxDepth:  f.maxDepth,
		Nodes:     len(f.nodes),
		Edges:     len(f.edges),
	}
}
