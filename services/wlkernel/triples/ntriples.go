// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package triples

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/graph/formats/rdf"
)

// maxLineBytes bounds a single N-Triples statement.
const maxLineBytes = 4 << 20

// ErrEmptyTerm is returned for a statement with an empty term.
var ErrEmptyTerm = errors.New("empty term")

// ParseError reports a statement that could not be decoded.
type ParseError struct {
	// Line is the 1-based line number in the input.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("n-triples line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReadNTriples decodes N-Triples (or N-Quads, ignoring the graph label) from r.
//
// Description:
//
//	Blank lines and # comments are skipped. Each statement is decoded with
//	the gonum RDF decoder. IRIs are stored without angle brackets, blank
//	nodes keep their "_:" form and literals keep their N-Triples lexical
//	form (quotes, language tag or datatype included), so two literals that
//	differ only in language or datatype stay distinct labels.
//
// Inputs:
//
//	r - The N-Triples stream.
//
// Outputs:
//
//	*Store - The decoded, deduplicated triples.
//	error - A *ParseError for the first malformed statement, or a read error.
func ReadNTriples(r io.Reader) (*Store, error) {
	store := NewStore()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		t, err := decodeStatement(text)
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		store.Add(t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read n-triples: %w", err)
	}
	return store, nil
}

// LoadFile reads an N-Triples file from disk.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	store, err := ReadNTriples(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return store, nil
}

func decodeStatement(text string) (Triple, error) {
	dec := rdf.NewDecoder(strings.NewReader(text + "\n"))
	st, err := dec.Unmarshal()
	if err != nil {
		return Triple{}, err
	}

	s, err := termString(st.Subject)
	if err != nil {
		return Triple{}, fmt.Errorf("subject: %w", err)
	}
	p, err := termString(st.Predicate)
	if err != nil {
		return Triple{}, fmt.Errorf("predicate: %w", err)
	}
	o, err := termString(st.Object)
	if err != nil {
		return Triple{}, fmt.Errorf("object: %w", err)
	}
	return Triple{Subject: s, Predicate: p, Object: o}, nil
}

func termString(t rdf.Term) (string, error) {
	if t.Value == "" {
		return "", ErrEmptyTerm
	}
	text, _, kind, err := t.Parts()
	if err != nil {
		return "", err
	}
	if kind == rdf.IRI {
		return text, nil
	}
	return t.Value, nil
}
