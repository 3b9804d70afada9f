// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package triples holds the (subject, predicate, object) input of the WL
// kernel pipeline.
//
// A Store is a deduplicated, insertion-ordered triple set with a subject
// index. It is populated once (from N-Triples or an in-memory slice) and then
// only read.
//
// # Thread Safety
//
// Store is NOT safe for concurrent mutation. Once populated, any number of
// goroutines may read it concurrently.
package triples

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"lukechampine.com/blake3"
)

// Triple is one RDF statement with every term rendered as a string.
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// String renders the triple for logs and error messages.
func (t Triple) String() string {
	return "(" + t.Subject + ", " + t.Predicate + ", " + t.Object + ")"
}

// Store is a deduplicated triple set indexed by subject.
type Store struct {
	triples   []Triple
	seen      map[Triple]struct{}
	bySubject map[string][]Triple
	resources map[string]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		seen:      make(map[Triple]struct{}),
		bySubject: make(map[string][]Triple),
		resources: make(map[string]struct{}),
	}
}

// FromSlice builds a Store from in-memory triples, dropping duplicates.
func FromSlice(ts []Triple) *Store {
	s := NewStore()
	for _, t := range ts {
		s.Add(t)
	}
	return s
}

// Add inserts t and reports whether it was new.
//
// Duplicate triples are ignored: the input is a set, so repeating a statement
// does not change any subgraph.
func (s *Store) Add(t Triple) bool {
	if _, ok := s.seen[t]; ok {
		return false
	}
	s.seen[t] = struct{}{}
	s.triples = append(s.triples, t)
	s.bySubject[t.Subject] = append(s.bySubject[t.Subject], t)
	s.resources[t.Subject] = struct{}{}
	s.resources[t.Object] = struct{}{}
	return true
}

// Len returns the number of distinct triples.
func (s *Store) Len() int {
	return len(s.triples)
}

// Triples returns the triples in insertion order. The slice must not be modified.
func (s *Store) Triples() []Triple {
	return s.triples
}

// Outgoing returns the triples whose subject is subject, in insertion order.
// The slice must not be modified.
func (s *Store) Outgoing(subject string) []Triple {
	return s.bySubject[subject]
}

// Has reports whether resource appears as a subject or an object.
func (s *Store) Has(resource string) bool {
	_, ok := s.resources[resource]
	return ok
}

// SubjectsWithPredicateSuffix returns the distinct subjects of triples whose
// predicate ends with suffix, in first-seen order.
//
// Description:
//
//	Selects kernel instances by a characteristic predicate, e.g. every
//	resource carrying an ".../hasLithology" statement. An empty suffix
//	selects every subject.
func (s *Store) SubjectsWithPredicateSuffix(suffix string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range s.triples {
		if !strings.HasSuffix(t.Predicate, suffix) {
			continue
		}
		if _, ok := seen[t.Subject]; ok {
			continue
		}
		seen[t.Subject] = struct{}{}
		out = append(out, t.Subject)
	}
	return out
}

// Fingerprint returns a hex BLAKE3 digest of the triple set.
//
// Description:
//
//	The digest is independent of insertion order: triples are encoded with
//	length-prefixed terms, sorted, and hashed. Two stores with the same set
//	of triples have the same fingerprint.
func (s *Store) Fingerprint() string {
	lines := make([]string, len(s.triples))
	for i, t := range s.triples {
		lines[i] = encodeTerms(t.Subject, t.Predicate, t.Object)
	}
	sort.Strings(lines)

	h := blake3.New(32, nil)
	for _, line := range lines {
		h.Write([]byte(line))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func encodeTerms(terms ...string) string {
	var b strings.Builder
	for _, term := range terms {
		b.WriteString(strconv.Itoa(len(term)))
		b.WriteByte(':')
		b.WriteString(term)
	}
	b.WriteByte('\n')
	return b.String()
}
